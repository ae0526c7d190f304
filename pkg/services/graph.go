package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resolvd/resolvd/pkg/events"
	"github.com/resolvd/resolvd/pkg/graph"
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

var (
	// ErrNodeNotFound is returned when a node is not found in the version.
	ErrNodeNotFound = persistence.ErrNodeNotFound
	// ErrEdgeNotFound is returned when an edge is not found in the version.
	ErrEdgeNotFound = persistence.ErrEdgeNotFound
)

// Graph edits the node/edge set of a draft version. Published versions are
// immutable snapshots; every mutation here rejects them with a conflict.
type Graph struct {
	persistence persistence.Persistence
	audit       *Audit
}

// NewGraph creates a new graph editing service.
func NewGraph(persistence persistence.Persistence, audit *Audit) *Graph {
	return &Graph{
		persistence: persistence,
		audit:       audit,
	}
}

// NodeInput describes a node to create.
type NodeInput struct {
	Type     string
	Title    string
	Body     string
	Position *models.Position
	Metadata map[string]any
	IsStart  bool
}

// NodeUpdate carries a partial node update. Nil fields are left untouched.
type NodeUpdate struct {
	Type     *string
	Title    *string
	Body     *string
	Position *models.Position
	Metadata map[string]any
	IsStart  *bool
}

// EdgeInput describes an edge to create.
type EdgeInput struct {
	SourceNodeID   string
	TargetNodeID   string
	ConditionLabel string
	SortOrder      int
}

// EdgeUpdate carries a partial edge update. Nil fields are left untouched.
type EdgeUpdate struct {
	ConditionLabel *string
	SortOrder      *int
}

// AddNode creates a node in the version. When IsStart is set, any existing
// start node in the version loses its flag.
func (g *Graph) AddNode(ctx context.Context, flowID, versionID string, input NodeInput) (*models.Node, error) {
	if _, err := g.editableVersion(ctx, flowID, versionID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	nodeType := models.NodeType(input.Type)
	if !models.ValidNodeType(nodeType) {
		return nil, NewValidationError("AddNode", "INVALID_NODE_TYPE",
			fmt.Sprintf("invalid node type %q", input.Type), ErrInvalidNodeType)
	}

	node := &models.Node{
		ID:            uuid.New().String(),
		FlowVersionID: versionID,
		Type:          nodeType,
		Title:         title,
		Body:          input.Body,
		Metadata:      input.Metadata,
		IsStart:       input.IsStart,
		CreatedAt:     time.Now().UTC(),
	}

	if input.Position != nil {
		node.Position = *input.Position
	}

	err := g.persistence.GraphRepository().SaveNode(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}

	return node, nil
}

// UpdateNode applies a partial update to an existing node.
func (g *Graph) UpdateNode(ctx context.Context, flowID, versionID, nodeID string, update NodeUpdate) (*models.Node, error) {
	if _, err := g.editableVersion(ctx, flowID, versionID); err != nil {
		return nil, err
	}

	node, err := g.persistence.GraphRepository().GetNode(ctx, versionID, nodeID)
	if err != nil {
		return nil, err
	}

	if node == nil {
		return nil, ErrNodeNotFound
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}

		node.Title = title
	}

	if update.Type != nil {
		nodeType := models.NodeType(*update.Type)
		if !models.ValidNodeType(nodeType) {
			return nil, NewValidationError("UpdateNode", "INVALID_NODE_TYPE",
				fmt.Sprintf("invalid node type %q", *update.Type), ErrInvalidNodeType)
		}

		node.Type = nodeType
	}

	if update.Body != nil {
		node.Body = *update.Body
	}

	if update.Position != nil {
		node.Position = *update.Position
	}

	if update.Metadata != nil {
		node.Metadata = update.Metadata
	}

	if update.IsStart != nil {
		node.IsStart = *update.IsStart
	}

	err = g.persistence.GraphRepository().SaveNode(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}

	return node, nil
}

// DeleteNode removes a node and every edge that references it.
func (g *Graph) DeleteNode(ctx context.Context, flowID, versionID, nodeID string) error {
	if _, err := g.editableVersion(ctx, flowID, versionID); err != nil {
		return err
	}

	node, err := g.persistence.GraphRepository().GetNode(ctx, versionID, nodeID)
	if err != nil {
		return err
	}

	if node == nil {
		return ErrNodeNotFound
	}

	return g.persistence.GraphRepository().DeleteNode(ctx, versionID, nodeID)
}

// UpdatePositions applies editor layout positions in bulk, skipping ids that
// don't resolve to a node in the version. Returns the number updated.
func (g *Graph) UpdatePositions(ctx context.Context, flowID, versionID string, positions []persistence.NodePosition) (int, error) {
	if _, err := g.editableVersion(ctx, flowID, versionID); err != nil {
		return 0, err
	}

	updated, err := g.persistence.GraphRepository().UpdatePositions(ctx, versionID, positions)
	if err != nil {
		return 0, fmt.Errorf("failed to update positions: %w", err)
	}

	return updated, nil
}

// AddEdge creates an edge between two existing nodes of the version.
func (g *Graph) AddEdge(ctx context.Context, flowID, versionID string, input EdgeInput) (*models.Edge, error) {
	if _, err := g.editableVersion(ctx, flowID, versionID); err != nil {
		return nil, err
	}

	if input.SourceNodeID == input.TargetNodeID {
		return nil, ErrSelfLoop
	}

	for _, nodeID := range []string{input.SourceNodeID, input.TargetNodeID} {
		node, err := g.persistence.GraphRepository().GetNode(ctx, versionID, nodeID)
		if err != nil {
			return nil, err
		}

		if node == nil {
			return nil, ErrNodeNotFound
		}
	}

	edge := &models.Edge{
		ID:             uuid.New().String(),
		FlowVersionID:  versionID,
		SourceNodeID:   input.SourceNodeID,
		TargetNodeID:   input.TargetNodeID,
		ConditionLabel: input.ConditionLabel,
		SortOrder:      input.SortOrder,
	}

	err := g.persistence.GraphRepository().SaveEdge(ctx, edge)
	if err != nil {
		return nil, err
	}

	return edge, nil
}

// UpdateEdge applies a partial update to an existing edge.
func (g *Graph) UpdateEdge(ctx context.Context, flowID, versionID, edgeID string, update EdgeUpdate) (*models.Edge, error) {
	if _, err := g.editableVersion(ctx, flowID, versionID); err != nil {
		return nil, err
	}

	edge, err := g.persistence.GraphRepository().GetEdge(ctx, versionID, edgeID)
	if err != nil {
		return nil, err
	}

	if edge == nil {
		return nil, ErrEdgeNotFound
	}

	if update.ConditionLabel != nil {
		edge.ConditionLabel = *update.ConditionLabel
	}

	if update.SortOrder != nil {
		edge.SortOrder = *update.SortOrder
	}

	err = g.persistence.GraphRepository().UpdateEdge(ctx, edge)
	if err != nil {
		return nil, fmt.Errorf("failed to update edge: %w", err)
	}

	return edge, nil
}

// DeleteEdge removes an edge from the version.
func (g *Graph) DeleteEdge(ctx context.Context, flowID, versionID, edgeID string) error {
	if _, err := g.editableVersion(ctx, flowID, versionID); err != nil {
		return err
	}

	edge, err := g.persistence.GraphRepository().GetEdge(ctx, versionID, edgeID)
	if err != nil {
		return err
	}

	if edge == nil {
		return ErrEdgeNotFound
	}

	return g.persistence.GraphRepository().DeleteEdge(ctx, versionID, edgeID)
}

// ImportNode is one node of a bulk import payload. TempID (or ID, or the
// node's index in the payload) is how the payload's edges reference it.
type ImportNode struct {
	TempID   string
	ID       string
	Type     string
	Title    string
	Body     string
	Position *models.Position
	Metadata map[string]any
	IsStart  bool
}

// ImportEdge is one edge of a bulk import payload, referencing nodes by
// their temporary ids.
type ImportEdge struct {
	Source         string
	Target         string
	ConditionLabel string
	SortOrder      int
}

// SkippedEdge reports an import edge that was dropped and why.
type SkippedEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	NodesCreated int           `json:"nodes_created"`
	EdgesCreated int           `json:"edges_created"`
	SkippedEdges []SkippedEdge `json:"skipped_edges"`
	Warnings     []string      `json:"warnings"`
}

// Import replaces the version's entire graph with the given payload in one
// all-or-nothing transaction. Unlike interactive editing it self-heals
// instead of rejecting: invalid node types fall back to question, blank
// titles get a placeholder, edges with unresolvable endpoints go on the
// skip list, self-loops and duplicates are dropped, and the single-start
// invariant is restored by demoting extras or promoting the first node.
func (g *Graph) Import(ctx context.Context, flowID, versionID string, inNodes []ImportNode, inEdges []ImportEdge, actorID string) (*ImportResult, error) {
	if _, err := g.editableVersion(ctx, flowID, versionID); err != nil {
		return nil, err
	}

	if len(inNodes) == 0 {
		return nil, ErrNoNodesProvided
	}

	result := &ImportResult{
		SkippedEdges: []SkippedEdge{},
		Warnings:     []string{},
	}

	idMap := make(map[string]string, len(inNodes))
	nodes := make([]*models.Node, 0, len(inNodes))

	now := time.Now().UTC()

	for i, in := range inNodes {
		tempID := in.TempID
		if tempID == "" {
			tempID = in.ID
		}

		if tempID == "" {
			tempID = strconv.Itoa(i)
		}

		title := strings.TrimSpace(in.Title)
		if title == "" {
			title = "Untitled step"
		}

		nodeType := models.NodeType(in.Type)
		if !models.ValidNodeType(nodeType) {
			nodeType = models.NodeTypeQuestion
		}

		node := &models.Node{
			ID:            uuid.New().String(),
			FlowVersionID: versionID,
			Type:          nodeType,
			Title:         title,
			Body:          in.Body,
			Metadata:      in.Metadata,
			IsStart:       in.IsStart,
			CreatedAt:     now,
		}

		if in.Position != nil {
			node.Position = *in.Position
		}

		idMap[tempID] = node.ID
		nodes = append(nodes, node)
	}

	edges := make([]*models.Edge, 0, len(inEdges))
	seen := make(map[string]bool, len(inEdges))

	for _, in := range inEdges {
		sourceID, sourceOK := idMap[in.Source]
		targetID, targetOK := idMap[in.Target]

		if !sourceOK || !targetOK {
			result.SkippedEdges = append(result.SkippedEdges, SkippedEdge{
				Source: in.Source,
				Target: in.Target,
				Reason: "unknown node reference",
			})

			continue
		}

		if sourceID == targetID {
			continue
		}

		key := sourceID + "\x00" + targetID + "\x00" + in.ConditionLabel
		if seen[key] {
			continue
		}

		seen[key] = true

		edges = append(edges, &models.Edge{
			ID:             uuid.New().String(),
			FlowVersionID:  versionID,
			SourceNodeID:   sourceID,
			TargetNodeID:   targetID,
			ConditionLabel: in.ConditionLabel,
			SortOrder:      in.SortOrder,
		})
	}

	result.Warnings = append(result.Warnings, graph.Normalize(nodes)...)
	result.NodesCreated = len(nodes)
	result.EdgesCreated = len(edges)

	audit := g.audit.Entry(events.VersionImportedEvent, "flow_version", versionID, actorID,
		map[string]any{
			"flow_id":       flowID,
			"nodes_created": len(nodes),
			"edges_created": len(edges),
		})

	err := g.persistence.GraphRepository().ReplaceGraph(ctx, versionID, nodes, edges, audit)
	if err != nil {
		return nil, fmt.Errorf("failed to replace graph: %w", err)
	}

	g.audit.Publish(ctx, audit)

	return result, nil
}

func (g *Graph) editableVersion(ctx context.Context, flowID, versionID string) (*models.FlowVersion, error) {
	version, err := g.persistence.VersionRepository().GetByFlowAndID(ctx, flowID, versionID)
	if err != nil {
		return nil, err
	}

	if version == nil {
		return nil, ErrVersionNotFound
	}

	if version.IsPublished() {
		return nil, ErrCannotModifyPublished
	}

	return version, nil
}
