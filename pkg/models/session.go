package models

import "time"

// SessionStatus represents the lifecycle state of a session. There is no
// abandoned or expired state: a session lives until explicitly completed.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// ResolutionType classifies how a completed session ended.
type ResolutionType string

const (
	ResolutionResolved  ResolutionType = "resolved"
	ResolutionEscalated ResolutionType = "escalated"
)

// Session is one agent's traversal of exactly one flow version. The version
// reference is fixed at creation and never changes mid-session.
//
// Invariants: len(PathTaken) >= 1, PathTaken[0] is the version's start node,
// and CurrentNodeID always equals the last path element.
type Session struct {
	ID              string          `json:"id"`
	FlowVersionID   string          `json:"flow_version_id"`
	TicketID        string          `json:"ticket_id,omitempty"`
	AgentID         string          `json:"agent_id,omitempty"`
	AgentName       string          `json:"agent_name,omitempty"`
	Status          SessionStatus   `json:"status"`
	CurrentNodeID   string          `json:"current_node_id"`
	PathTaken       []string        `json:"path_taken"`
	FinalNodeID     *string         `json:"final_node_id"`
	ResolutionType  *ResolutionType `json:"resolution_type"`
	FeedbackRating  *int            `json:"feedback_rating"`
	FeedbackNote    *string         `json:"feedback_note"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	DurationSeconds *int            `json:"duration_seconds"`
}

// IsCompleted reports whether the session reached a result node.
func (s *Session) IsCompleted() bool {
	return s.Status == SessionStatusCompleted
}

// SessionStep is an append-only record of one transition taken. The answer
// label is denormalized from the edge so breadcrumbs survive later edge
// edits or deletions.
type SessionStep struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	NodeID      string    `json:"node_id"` // Node departed, not arrived at
	EdgeID      string    `json:"edge_id"`
	AnswerLabel string    `json:"answer_label"`
	StepNumber  int       `json:"step_number"` // Zero-based, unique per session
	CreatedAt   time.Time `json:"created_at"`
}

// StepOption is one outgoing choice offered to the agent.
type StepOption struct {
	EdgeID string `json:"edge_id"`
	Label  string `json:"label"`
}

// BreadcrumbEntry is one past question/answer pair of a session's history.
type BreadcrumbEntry struct {
	NodeID   string `json:"node_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Label    string `json:"label"`
}

// SessionState is the read model returned after every session mutation.
type SessionState struct {
	SessionID       string            `json:"session_id"`
	TicketID        string            `json:"ticket_id,omitempty"`
	AgentID         string            `json:"agent_id,omitempty"`
	AgentName       string            `json:"agent_name,omitempty"`
	Status          SessionStatus     `json:"status"`
	ResolutionType  *ResolutionType   `json:"resolution_type"`
	StepNumber      int               `json:"step_number"`
	CurrentNode     *Node             `json:"current_node"`
	Breadcrumb      []string          `json:"breadcrumb"`
	BreadcrumbFull  []BreadcrumbEntry `json:"breadcrumb_structured"`
	Options         []StepOption      `json:"options"`
	DurationSeconds *int              `json:"duration_seconds"`
	FeedbackRating  *int              `json:"feedback_rating"`
}

// TranscriptEntry is one line of an exported session transcript.
type TranscriptEntry struct {
	Step      int       `json:"step"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionTranscript is the full structured export of a session.
type SessionTranscript struct {
	SessionID       string            `json:"session_id"`
	TicketID        string            `json:"ticket_id,omitempty"`
	AgentID         string            `json:"agent_id,omitempty"`
	AgentName       string            `json:"agent_name,omitempty"`
	Status          SessionStatus     `json:"status"`
	ResolutionType  *ResolutionType   `json:"resolution_type"`
	DurationSeconds *int              `json:"duration_seconds"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at"`
	Transcript      []TranscriptEntry `json:"transcript"`
	Resolution      *Node             `json:"resolution"`
	FeedbackRating  *int              `json:"feedback_rating"`
	FeedbackNote    *string           `json:"feedback_note"`
}
