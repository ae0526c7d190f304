// Package web provides the HTTP handlers and request/response types for the
// flow management and session API.
package web

import (
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/services"
)

// CreateFlowRequest is the request body for creating a new flow.
type CreateFlowRequest struct {
	Name        string   `json:"name"        validate:"required,max=255"`
	Description string   `json:"description"`
	Category    string   `json:"category"    validate:"max=100"`
	Tags        []string `json:"tags"`
}

// UpdateFlowRequest is the request body for updating a flow's metadata.
// All fields are optional to support partial updates; a nil tags slice
// leaves the existing tags untouched.
type UpdateFlowRequest struct {
	Name        *string  `json:"name,omitempty"        validate:"omitempty,max=255"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"    validate:"omitempty,max=100"`
	Tags        []string `json:"tags,omitempty"`
}

// DuplicateFlowRequest optionally names the copy.
type DuplicateFlowRequest struct {
	Name string `json:"name" validate:"omitempty,max=255"`
}

// CreateVersionRequest is the request body for creating a new draft version.
type CreateVersionRequest struct {
	ChangeNotes string `json:"change_notes"`
}

// PublishVersionRequest optionally overrides the version's change notes.
type PublishVersionRequest struct {
	ChangeNotes string `json:"change_notes"`
}

// CreateNodeRequest is the request body for adding a node to a draft version.
type CreateNodeRequest struct {
	Type     string           `json:"type"     validate:"required,oneof=question result"`
	Title    string           `json:"title"    validate:"required,max=500"`
	Body     string           `json:"body"`
	Position *models.Position `json:"position"`
	Metadata map[string]any   `json:"metadata"`
	IsStart  bool             `json:"is_start"`
}

// UpdateNodeRequest is the request body for updating a node. Only provided
// fields change.
type UpdateNodeRequest struct {
	Type     *string          `json:"type,omitempty"     validate:"omitempty,oneof=question result"`
	Title    *string          `json:"title,omitempty"    validate:"omitempty,max=500"`
	Body     *string          `json:"body,omitempty"`
	Position *models.Position `json:"position,omitempty"`
	Metadata map[string]any   `json:"metadata,omitempty"`
	IsStart  *bool            `json:"is_start,omitempty"`
}

// BulkPositionRequest carries editor layout positions for many nodes at once.
type BulkPositionRequest struct {
	Positions []PositionEntry `json:"positions" validate:"required,min=1,dive"`
}

// PositionEntry is one node's new canvas position.
type PositionEntry struct {
	ID string  `json:"id" validate:"required"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// CreateEdgeRequest is the request body for connecting two nodes.
type CreateEdgeRequest struct {
	Source         string `json:"source"          validate:"required"`
	Target         string `json:"target"          validate:"required"`
	ConditionLabel string `json:"condition_label" validate:"max=255"`
	SortOrder      int    `json:"sort_order"`
}

// UpdateEdgeRequest is the request body for changing an edge's label or order.
type UpdateEdgeRequest struct {
	ConditionLabel *string `json:"condition_label,omitempty" validate:"omitempty,max=255"`
	SortOrder      *int    `json:"sort_order,omitempty"`
}

// ImportRequest is the bulk graph replacement payload. Node ids may be
// caller-supplied temporary identifiers that edges reference.
type ImportRequest struct {
	Nodes []ImportNodeRequest `json:"nodes" validate:"required"`
	Edges []ImportEdgeRequest `json:"edges"`
}

// ImportNodeRequest is one node of a bulk import.
type ImportNodeRequest struct {
	TempID   string           `json:"temp_id"`
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Title    string           `json:"title"`
	Body     string           `json:"body"`
	Position *models.Position `json:"position"`
	Metadata map[string]any   `json:"metadata"`
	IsStart  bool             `json:"is_start"`
}

// ImportEdgeRequest is one edge of a bulk import, referencing nodes by
// temporary or persistent id.
type ImportEdgeRequest struct {
	Source         string `json:"source"`
	Target         string `json:"target"`
	ConditionLabel string `json:"condition_label"`
	SortOrder      int    `json:"sort_order"`
}

// StartSessionRequest is the request body for starting a traversal session.
type StartSessionRequest struct {
	FlowID    string `json:"flow_id"    validate:"required"`
	VersionID string `json:"version_id"`
	TicketID  string `json:"ticket_id"  validate:"max=255"`
	AgentID   string `json:"agent_id"   validate:"max=255"`
	AgentName string `json:"agent_name" validate:"max=255"`
}

// StepRequest is the request body for advancing a session along an edge.
type StepRequest struct {
	EdgeID string `json:"edge_id" validate:"required"`
}

// FeedbackRequest is the request body for rating a completed session. Both
// fields are optional; a note may be left without a rating.
type FeedbackRequest struct {
	Rating *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Note   *string `json:"note"`
}

func (r ImportRequest) toServiceInput() ([]services.ImportNode, []services.ImportEdge) {
	nodes := make([]services.ImportNode, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		node := services.ImportNode{
			TempID:   n.TempID,
			ID:       n.ID,
			Type:     n.Type,
			Title:    n.Title,
			Body:     n.Body,
			Metadata: n.Metadata,
			IsStart:  n.IsStart,
		}
		if n.Position != nil {
			node.Position = n.Position
		}

		nodes = append(nodes, node)
	}

	edges := make([]services.ImportEdge, 0, len(r.Edges))
	for _, e := range r.Edges {
		edges = append(edges, services.ImportEdge{
			Source:         e.Source,
			Target:         e.Target,
			ConditionLabel: e.ConditionLabel,
			SortOrder:      e.SortOrder,
		})
	}

	return nodes, edges
}
