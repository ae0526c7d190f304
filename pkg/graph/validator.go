// Package graph provides structural validation for flow version graphs.
// Validation never mutates state; it is shared by the graph editing
// operations and the publish path.
package graph

import (
	"errors"
	"fmt"

	"github.com/resolvd/resolvd/pkg/models"
)

var (
	// ErrNoNodes indicates the graph is empty and therefore has no start node.
	ErrNoNodes = errors.New("graph has no nodes")

	// ErrNoStartNode indicates no node carries the is_start flag.
	ErrNoStartNode = errors.New("graph has no start node")

	// ErrMultipleStartNodes indicates more than one node carries the is_start flag.
	ErrMultipleStartNodes = errors.New("graph has more than one start node")
)

// Validate checks the structural invariants of a candidate node/edge set:
// exactly one start node, no dangling edge endpoints, endpoints scoped to
// the same version as the edge, and recognized node types only.
//
// Interactive editing fails loudly on these; bulk import self-heals the
// start-node invariant with Normalize before calling this.
func Validate(nodes []*models.Node, edges []*models.Edge) error {
	if len(nodes) == 0 {
		return ErrNoNodes
	}

	byID := make(map[string]*models.Node, len(nodes))
	starts := 0

	for _, n := range nodes {
		if !models.ValidNodeType(n.Type) {
			return fmt.Errorf("node %s has invalid type %q", n.ID, n.Type)
		}

		if n.IsStart {
			starts++
		}

		byID[n.ID] = n
	}

	if starts == 0 {
		return ErrNoStartNode
	}

	if starts > 1 {
		return ErrMultipleStartNodes
	}

	for _, e := range edges {
		src, ok := byID[e.SourceNodeID]
		if !ok {
			return fmt.Errorf("edge %s references unknown source node %s", e.ID, e.SourceNodeID)
		}

		tgt, ok := byID[e.TargetNodeID]
		if !ok {
			return fmt.Errorf("edge %s references unknown target node %s", e.ID, e.TargetNodeID)
		}

		if src.FlowVersionID != e.FlowVersionID || tgt.FlowVersionID != e.FlowVersionID {
			return fmt.Errorf("edge %s crosses version boundaries", e.ID)
		}
	}

	return nil
}

// FindStart returns the start node of the set, or nil if none is flagged.
func FindStart(nodes []*models.Node) *models.Node {
	for _, n := range nodes {
		if n.IsStart {
			return n
		}
	}

	return nil
}

// Normalize repairs the start-node invariant in place for bulk imports:
// with no start flagged the first node becomes the start, with several
// flagged only the first keeps the flag. Returns human-readable warnings
// describing each repair; an empty slice means the set was already valid.
func Normalize(nodes []*models.Node) []string {
	if len(nodes) == 0 {
		return nil
	}

	var warnings []string

	var first *models.Node

	for _, n := range nodes {
		if !n.IsStart {
			continue
		}

		if first == nil {
			first = n

			continue
		}

		n.IsStart = false

		warnings = append(warnings, fmt.Sprintf("multiple start nodes: %q demoted, keeping %q", n.Title, first.Title))
	}

	if first == nil {
		nodes[0].IsStart = true

		warnings = append(warnings, fmt.Sprintf("no start node flagged, defaulting to first node %q", nodes[0].Title))
	}

	return warnings
}
