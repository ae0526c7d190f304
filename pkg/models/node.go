package models

import "time"

// NodeType represents the kind of step a node is.
type NodeType string

const (
	NodeTypeQuestion NodeType = "question" // Agent picks an outgoing edge
	NodeTypeResult   NodeType = "result"   // Terminal: completes the session
)

// ValidNodeType reports whether t is a recognized node type.
func ValidNodeType(t NodeType) bool {
	return t == NodeTypeQuestion || t == NodeTypeResult
}

// EscalateToKey is the metadata key that marks a result node as an
// escalation outcome rather than a resolution.
const EscalateToKey = "escalate_to"

// Position is editor layout only; it has no traversal semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one step in a version's graph.
type Node struct {
	ID            string         `json:"id"`
	FlowVersionID string         `json:"flow_version_id"`
	Type          NodeType       `json:"type"`
	Title         string         `json:"title"           validate:"required"`
	Body          string         `json:"body,omitempty"`
	Position      Position       `json:"position"`
	Metadata      map[string]any `json:"metadata"`
	IsStart       bool           `json:"is_start"`
	CreatedAt     time.Time      `json:"created_at"`
}

// IsResult reports whether the node terminates a traversal.
func (n *Node) IsResult() bool {
	return n.Type == NodeTypeResult
}

// IsEscalation reports whether reaching this result node should mark the
// session as escalated. Any non-empty truthy value under EscalateToKey counts.
func (n *Node) IsEscalation() bool {
	if n.Metadata == nil {
		return false
	}

	v, ok := n.Metadata[EscalateToKey]
	if !ok || v == nil {
		return false
	}

	switch value := v.(type) {
	case string:
		return value != ""
	case bool:
		return value
	default:
		return true
	}
}

// Edge is a directed, labeled transition between two nodes of the same
// version. The (version, source, target, label) tuple is unique. Edges out
// of result nodes may exist but are never offered to agents.
type Edge struct {
	ID             string `json:"id"`
	FlowVersionID  string `json:"flow_version_id"`
	SourceNodeID   string `json:"source"`
	TargetNodeID   string `json:"target"`
	ConditionLabel string `json:"condition_label"`
	SortOrder      int    `json:"sort_order"`
}
