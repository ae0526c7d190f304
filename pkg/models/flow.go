// Package models defines the core domain models for versioned support decision flows.
package models

import "time"

// Flow is a named decision-tree template. Its graph content lives on its
// versions; the flow itself only carries metadata and the pointer to the
// version agents currently run against.
type Flow struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"                        validate:"required,max=255"`
	Description     string     `json:"description,omitempty"`
	Category        string     `json:"category,omitempty"`
	Tags            []string   `json:"tags"`
	ActiveVersionID *string    `json:"active_version_id"` // Nil while the flow is draft-only
	IsArchived      bool       `json:"is_archived"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// IsLive reports whether the flow has a published version agents can run.
func (f *Flow) IsLive() bool {
	return f.ActiveVersionID != nil && *f.ActiveVersionID != ""
}

// FlowStats is the optional per-flow rollup attached to list/detail responses.
type FlowStats struct {
	TotalSessions      int  `json:"total_sessions"`
	CompletedSessions  int  `json:"completed_sessions"`
	AvgDurationSeconds *int `json:"avg_duration_seconds"`
	NodeCount          int  `json:"node_count"`
}

// CategoryCount is one entry of the category listing.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
