package persistence

import (
	"context"
	"time"

	"github.com/resolvd/resolvd/pkg/models"
)

// Persistence bundles the repositories the service layer depends on.
type Persistence interface {
	FlowRepository() FlowRepository
	VersionRepository() VersionRepository
	GraphRepository() GraphRepository
	SessionRepository() SessionRepository
	AuditRepository() AuditRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListFlowsOptions filters and paginates the flow listing.
type ListFlowsOptions struct {
	Search   string // Case-insensitive match against name and description
	Category string
	Status   string // "live", "draft", or "" for all
	Sort     string // "newest" (default), "oldest", "name"
	Page     int
	Limit    int
}

// FlowListResult is a page of flows plus the unpaginated total.
type FlowListResult struct {
	Flows []*models.Flow
	Total int
}

// FlowCounts is the flow-level rollup for the analytics overview.
type FlowCounts struct {
	Total int
	Live  int
}

type FlowRepository interface {
	List(ctx context.Context, opts ListFlowsOptions) (*FlowListResult, error)
	ListArchived(ctx context.Context) ([]*models.Flow, error)

	// GetByID returns nil, nil when no flow exists with the given id.
	GetByID(ctx context.Context, id string) (*models.Flow, error)

	// Save upserts the flow. A non-nil audit entry is written in the same
	// transaction as the flow row.
	Save(ctx context.Context, flow *models.Flow, audit *models.AuditLog) error

	// CreateWithVersion atomically creates a new flow together with its
	// first version. When sourceVersionID is non-empty the version's graph
	// is deep-copied (ids remapped) from it.
	CreateWithVersion(ctx context.Context, flow *models.Flow, version *models.FlowVersion, sourceVersionID string, audit *models.AuditLog) error

	// Purge hard-deletes the flow and everything under it in dependency
	// order: steps, sessions, edges, nodes, versions, flow. All-or-nothing.
	Purge(ctx context.Context, flowID string, audit *models.AuditLog) error

	Categories(ctx context.Context) ([]models.CategoryCount, error)
	Counts(ctx context.Context) (*FlowCounts, error)
}

type VersionRepository interface {
	// GetByID returns nil, nil when no version exists with the given id.
	GetByID(ctx context.Context, id string) (*models.FlowVersion, error)

	// GetByFlowAndID returns nil, nil when the version does not exist or
	// does not belong to the given flow.
	GetByFlowAndID(ctx context.Context, flowID, versionID string) (*models.FlowVersion, error)

	// ListByFlow returns the flow's versions ordered by version number descending.
	ListByFlow(ctx context.Context, flowID string) ([]*models.FlowVersion, error)

	// Create inserts the version and, when cloneFromVersionID is non-empty,
	// deep-copies that version's nodes and edges into it with fresh ids.
	// The clone is part of the same transaction: no partially copied graph
	// is ever visible.
	Create(ctx context.Context, version *models.FlowVersion, cloneFromVersionID string, audit *models.AuditLog) error

	// Publish persists the already-transitioned version and repoints the
	// owning flow's active version in one transaction.
	Publish(ctx context.Context, version *models.FlowVersion, audit *models.AuditLog) error
}

// NodePosition is one entry of a bulk position update.
type NodePosition struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type GraphRepository interface {
	GetNodes(ctx context.Context, versionID string) ([]*models.Node, error)
	GetEdges(ctx context.Context, versionID string) ([]*models.Edge, error)

	// GetNode returns nil, nil when the node does not exist in the version.
	GetNode(ctx context.Context, versionID, nodeID string) (*models.Node, error)

	// GetStartNode returns nil, nil when the version has no start node.
	GetStartNode(ctx context.Context, versionID string) (*models.Node, error)

	// SaveNode upserts the node. When node.IsStart is set, any other start
	// node in the version is cleared first, inside the same transaction.
	SaveNode(ctx context.Context, node *models.Node) error

	// DeleteNode removes the node and every edge referencing it as source
	// or target, atomically.
	DeleteNode(ctx context.Context, versionID, nodeID string) error

	// UpdatePositions applies editor layout positions, skipping unknown
	// nodes, and returns the number updated.
	UpdatePositions(ctx context.Context, versionID string, positions []NodePosition) (int, error)

	// GetEdge returns nil, nil when the edge does not exist in the version.
	GetEdge(ctx context.Context, versionID, edgeID string) (*models.Edge, error)

	// SaveEdge inserts the edge, returning ErrDuplicateEdge when an edge
	// with identical source, target, and label exists in the version.
	SaveEdge(ctx context.Context, edge *models.Edge) error

	UpdateEdge(ctx context.Context, edge *models.Edge) error
	DeleteEdge(ctx context.Context, versionID, edgeID string) error

	// ReplaceGraph swaps the version's entire node/edge set in one
	// all-or-nothing transaction. A non-nil audit entry commits with it.
	ReplaceGraph(ctx context.Context, versionID string, nodes []*models.Node, edges []*models.Edge, audit *models.AuditLog) error
}

// ListSessionsOptions filters and paginates the session listing.
type ListSessionsOptions struct {
	VersionIDs []string // Scope to these versions (resolved from a flow id)
	Status     models.SessionStatus
	TicketID   string // Substring match
	Page       int
	Limit      int
}

// SessionListResult is a page of sessions plus the unpaginated total.
type SessionListResult struct {
	Sessions []*models.Session
	Total    int
}

// SessionOverview is the service-wide session rollup for analytics.
type SessionOverview struct {
	Total              int
	Completed          int
	Escalated          int
	AvgDurationSeconds *float64
	AvgRating          *float64
}

// DayCount is one bucket of the sessions-per-day time series.
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

type SessionRepository interface {
	// GetByID returns nil, nil when no session exists with the given id.
	GetByID(ctx context.Context, id string) (*models.Session, error)

	List(ctx context.Context, opts ListSessionsOptions) (*SessionListResult, error)

	// ListByVersionIDs returns every session run against the given versions.
	ListByVersionIDs(ctx context.Context, versionIDs []string) ([]*models.Session, error)

	Create(ctx context.Context, session *models.Session) error

	// Save persists session field changes without touching steps.
	Save(ctx context.Context, session *models.Session) error

	// Advance appends the step and persists the advanced session atomically.
	Advance(ctx context.Context, session *models.Session, step *models.SessionStep) error

	// Rewind deletes the session's highest-numbered step (if any) and
	// persists the rewound session atomically.
	Rewind(ctx context.Context, session *models.Session) error

	// Reset deletes all of the session's steps and persists the reset
	// session atomically.
	Reset(ctx context.Context, session *models.Session) error

	// Steps returns the session's steps ordered by step number ascending.
	Steps(ctx context.Context, sessionID string) ([]*models.SessionStep, error)

	Overview(ctx context.Context) (*SessionOverview, error)
	PerDay(ctx context.Context, since time.Time) ([]DayCount, error)
}

// ListAuditOptions filters and paginates the audit log listing.
type ListAuditOptions struct {
	ResourceType string
	ResourceID   string
	Page         int
	Limit        int
}

// AuditListResult is a page of audit entries plus the unpaginated total.
type AuditListResult struct {
	Entries []*models.AuditLog
	Total   int
}

type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, opts ListAuditOptions) (*AuditListResult, error)
}
