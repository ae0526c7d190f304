package models

import "time"

// VersionStatus represents the lifecycle state of a flow version.
type VersionStatus string

const (
	VersionStatusDraft     VersionStatus = "draft"     // Editable, graph may change
	VersionStatusPublished VersionStatus = "published" // Immutable snapshot, executable
)

// FlowVersion is one snapshot of a flow's graph. Version numbers are
// monotonically increasing per flow, starting at 1. Once published, the
// version's node/edge set must never be mutated again: completed sessions
// are only interpretable against the exact graph they ran on.
type FlowVersion struct {
	ID            string        `json:"id"`
	FlowID        string        `json:"flow_id"`
	VersionNumber int           `json:"version_number"`
	Status        VersionStatus `json:"status"`
	ChangeNotes   string        `json:"change_notes,omitempty"`
	PublishedAt   *time.Time    `json:"published_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// IsPublished reports whether the version is the immutable published form.
func (v *FlowVersion) IsPublished() bool {
	return v.Status == VersionStatusPublished
}
