package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resolvd/resolvd/pkg/events"
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

var (
	// ErrFlowNotFound is returned when a flow is not found.
	ErrFlowNotFound = persistence.ErrFlowNotFound
)

// Flow handles flow container operations: metadata CRUD, archive lifecycle,
// duplication, and hard deletion.
type Flow struct {
	persistence persistence.Persistence
	audit       *Audit
}

// NewFlow creates a new flow service.
func NewFlow(persistence persistence.Persistence, audit *Audit) *Flow {
	return &Flow{
		persistence: persistence,
		audit:       audit,
	}
}

// HealthCheck checks the health of the persistence layer.
func (f *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if f.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := f.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListFlowsRequest contains options for listing flows.
type ListFlowsRequest struct {
	Search       string
	Category     string
	Status       string // "live", "draft", or empty
	Sort         string // "newest", "oldest", "name"
	Page         int
	Limit        int
	IncludeStats bool
}

// FlowWithMeta is one flow of a listing, optionally annotated with its
// versions and session stats.
type FlowWithMeta struct {
	*models.Flow

	Versions []*models.FlowVersion `json:"versions,omitempty"`
	Stats    *models.FlowStats     `json:"stats,omitempty"`
}

// ListFlowsResponse contains the result of listing flows.
type ListFlowsResponse struct {
	Flows []*FlowWithMeta `json:"data"`
	Total int             `json:"total"`
}

// ListFlows retrieves active flows with filtering, sorting, and pagination.
func (f *Flow) ListFlows(ctx context.Context, req ListFlowsRequest) (*ListFlowsResponse, error) {
	if err := f.validateListFlowsRequest(&req); err != nil {
		return nil, err
	}

	result, err := f.persistence.FlowRepository().List(ctx, persistence.ListFlowsOptions{
		Search:   req.Search,
		Category: req.Category,
		Status:   req.Status,
		Sort:     req.Sort,
		Page:     req.Page,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	flows := make([]*FlowWithMeta, 0, len(result.Flows))

	for _, flow := range result.Flows {
		entry, err := f.annotate(ctx, flow, req.IncludeStats)
		if err != nil {
			return nil, err
		}

		flows = append(flows, entry)
	}

	return &ListFlowsResponse{Flows: flows, Total: result.Total}, nil
}

func (f *Flow) validateListFlowsRequest(req *ListFlowsRequest) error {
	if req.Page < 1 {
		req.Page = 1
	}

	if req.Limit <= 0 {
		req.Limit = 50
	}

	if req.Limit > 200 {
		req.Limit = 200
	}

	if req.Sort == "" {
		req.Sort = "newest"
	}

	allowedSorts := []string{"newest", "oldest", "name"}
	if !slices.Contains(allowedSorts, req.Sort) {
		return NewValidationError(
			"validateListFlowsRequest",
			"INVALID_SORT",
			fmt.Sprintf("invalid sort %q, allowed: %s", req.Sort, strings.Join(allowedSorts, ", ")),
			ErrInvalidRequest,
		)
	}

	if req.Status != "" && req.Status != "live" && req.Status != "draft" {
		return NewValidationError(
			"validateListFlowsRequest",
			"INVALID_STATUS",
			fmt.Sprintf("invalid status %q, allowed: live, draft", req.Status),
			ErrInvalidRequest,
		)
	}

	return nil
}

// ListArchived returns archived flows, most recently touched first.
func (f *Flow) ListArchived(ctx context.Context) ([]*FlowWithMeta, error) {
	flows, err := f.persistence.FlowRepository().ListArchived(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived flows: %w", err)
	}

	result := make([]*FlowWithMeta, 0, len(flows))

	for _, flow := range flows {
		entry, err := f.annotate(ctx, flow, false)
		if err != nil {
			return nil, err
		}

		result = append(result, entry)
	}

	return result, nil
}

// FetchByID retrieves a flow by its ID.
func (f *Flow) FetchByID(ctx context.Context, id string) (*models.Flow, error) {
	flow, err := f.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if flow == nil {
		return nil, ErrFlowNotFound
	}

	return flow, nil
}

// Detail returns the flow annotated with its versions and session stats.
func (f *Flow) Detail(ctx context.Context, id string) (*FlowWithMeta, error) {
	flow, err := f.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return f.annotate(ctx, flow, true)
}

// CreateFlowRequest contains the fields for creating a flow.
type CreateFlowRequest struct {
	Name        string
	Description string
	Category    string
	Tags        []string
}

// Create adds a new flow together with its initial draft version.
func (f *Flow) Create(ctx context.Context, req CreateFlowRequest, actorID string) (*models.Flow, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	if len(name) > 255 {
		return nil, NewValidationError("CreateFlow", "NAME_TOO_LONG",
			"name must be 255 characters or fewer", ErrInvalidRequest)
	}

	now := time.Now().UTC()
	flow := &models.Flow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		Tags:        req.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if flow.Tags == nil {
		flow.Tags = []string{}
	}

	version := &models.FlowVersion{
		ID:            uuid.New().String(),
		FlowID:        flow.ID,
		VersionNumber: 1,
		Status:        models.VersionStatusDraft,
		CreatedAt:     now,
	}

	audit := f.audit.Entry(events.FlowCreatedEvent, "flow", flow.ID, actorID,
		map[string]any{"name": flow.Name})

	err := f.persistence.FlowRepository().CreateWithVersion(ctx, flow, version, "", audit)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	f.audit.Publish(ctx, audit)

	return flow, nil
}

// UpdateFlowRequest contains partial updates; nil fields are untouched.
type UpdateFlowRequest struct {
	Name        *string
	Description *string
	Category    *string
	Tags        []string
}

// Update modifies a flow's metadata.
func (f *Flow) Update(ctx context.Context, id string, req UpdateFlowRequest, actorID string) (*models.Flow, error) {
	flow, err := f.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var fields []string

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrNameRequired
		}

		flow.Name = name
		fields = append(fields, "name")
	}

	if req.Description != nil {
		flow.Description = strings.TrimSpace(*req.Description)
		fields = append(fields, "description")
	}

	if req.Category != nil {
		flow.Category = *req.Category
		fields = append(fields, "category")
	}

	if req.Tags != nil {
		flow.Tags = req.Tags
		fields = append(fields, "tags")
	}

	flow.UpdatedAt = time.Now().UTC()

	audit := f.audit.Entry(events.FlowUpdatedEvent, "flow", flow.ID, actorID,
		map[string]any{"fields": fields})

	err = f.persistence.FlowRepository().Save(ctx, flow, audit)
	if err != nil {
		return nil, fmt.Errorf("failed to update flow: %w", err)
	}

	f.audit.Publish(ctx, audit)

	return flow, nil
}

// Archive soft-deletes a flow. Reversible with Restore.
func (f *Flow) Archive(ctx context.Context, id, actorID string) error {
	return f.setArchived(ctx, id, actorID, true)
}

// Restore brings an archived flow back.
func (f *Flow) Restore(ctx context.Context, id, actorID string) (*models.Flow, error) {
	err := f.setArchived(ctx, id, actorID, false)
	if err != nil {
		return nil, err
	}

	return f.FetchByID(ctx, id)
}

func (f *Flow) setArchived(ctx context.Context, id, actorID string, archived bool) error {
	flow, err := f.FetchByID(ctx, id)
	if err != nil {
		return err
	}

	flow.IsArchived = archived
	flow.UpdatedAt = time.Now().UTC()

	action := events.FlowArchivedEvent
	if !archived {
		action = events.FlowRestoredEvent
	}

	audit := f.audit.Entry(action, "flow", flow.ID, actorID, nil)

	err = f.persistence.FlowRepository().Save(ctx, flow, audit)
	if err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}

	f.audit.Publish(ctx, audit)

	return nil
}

// Purge hard-deletes a flow and all its versions, graphs, and sessions.
func (f *Flow) Purge(ctx context.Context, id, actorID string) error {
	flow, err := f.FetchByID(ctx, id)
	if err != nil {
		return err
	}

	audit := f.audit.Entry(events.FlowPurgedEvent, "flow", flow.ID, actorID,
		map[string]any{"name": flow.Name})

	err = f.persistence.FlowRepository().Purge(ctx, id, audit)
	if err != nil {
		return fmt.Errorf("failed to purge flow: %w", err)
	}

	f.audit.Publish(ctx, audit)

	return nil
}

// Duplicate creates a new flow whose first draft clones the source flow's
// active version, or its newest version when nothing is published.
func (f *Flow) Duplicate(ctx context.Context, id, name, actorID string) (*models.Flow, *models.FlowVersion, error) {
	source, err := f.FetchByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	sourceVersion, err := f.duplicateSourceVersion(ctx, source)
	if err != nil {
		return nil, nil, err
	}

	if name == "" {
		name = "Copy of " + source.Name
	}

	now := time.Now().UTC()
	flow := &models.Flow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: source.Description,
		Category:    source.Category,
		Tags:        slices.Clone(source.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if flow.Tags == nil {
		flow.Tags = []string{}
	}

	version := &models.FlowVersion{
		ID:            uuid.New().String(),
		FlowID:        flow.ID,
		VersionNumber: 1,
		Status:        models.VersionStatusDraft,
		ChangeNotes:   fmt.Sprintf("Duplicated from %q v%d", source.Name, sourceVersion.VersionNumber),
		CreatedAt:     now,
	}

	audit := f.audit.Entry(events.FlowDuplicatedEvent, "flow", flow.ID, actorID,
		map[string]any{"source_flow_id": source.ID})

	err = f.persistence.FlowRepository().CreateWithVersion(ctx, flow, version, sourceVersion.ID, audit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to duplicate flow: %w", err)
	}

	f.audit.Publish(ctx, audit)

	return flow, version, nil
}

func (f *Flow) duplicateSourceVersion(ctx context.Context, source *models.Flow) (*models.FlowVersion, error) {
	if source.IsLive() {
		version, err := f.persistence.VersionRepository().GetByID(ctx, *source.ActiveVersionID)
		if err != nil {
			return nil, err
		}

		if version != nil {
			return version, nil
		}
	}

	versions, err := f.persistence.VersionRepository().ListByFlow(ctx, source.ID)
	if err != nil {
		return nil, err
	}

	if len(versions) == 0 {
		return nil, NewValidationError("DuplicateFlow", "NO_VERSION",
			"no version found to duplicate", ErrInvalidRequest)
	}

	return versions[0], nil
}

// Categories returns the distinct categories of active flows with counts.
func (f *Flow) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	return f.persistence.FlowRepository().Categories(ctx)
}

// annotate attaches the version list and, optionally, session stats.
func (f *Flow) annotate(ctx context.Context, flow *models.Flow, includeStats bool) (*FlowWithMeta, error) {
	versions, err := f.persistence.VersionRepository().ListByFlow(ctx, flow.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}

	entry := &FlowWithMeta{Flow: flow, Versions: versions}

	if !includeStats {
		return entry, nil
	}

	stats, err := f.buildStats(ctx, versions)
	if err != nil {
		return nil, err
	}

	entry.Stats = stats

	return entry, nil
}

func (f *Flow) buildStats(ctx context.Context, versions []*models.FlowVersion) (*models.FlowStats, error) {
	versionIDs := make([]string, 0, len(versions))
	for _, v := range versions {
		versionIDs = append(versionIDs, v.ID)
	}

	stats := &models.FlowStats{}

	if len(versionIDs) == 0 {
		return stats, nil
	}

	sessions, err := f.persistence.SessionRepository().ListByVersionIDs(ctx, versionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	stats.TotalSessions = len(sessions)

	durationSum, durationCount := 0, 0

	for _, s := range sessions {
		if !s.IsCompleted() {
			continue
		}

		stats.CompletedSessions++

		if s.DurationSeconds != nil {
			durationSum += *s.DurationSeconds
			durationCount++
		}
	}

	if stats.CompletedSessions > 0 && durationCount > 0 {
		avg := int(float64(durationSum)/float64(stats.CompletedSessions) + 0.5)
		stats.AvgDurationSeconds = &avg
	}

	for _, id := range versionIDs {
		nodes, err := f.persistence.GraphRepository().GetNodes(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load nodes: %w", err)
		}

		stats.NodeCount += len(nodes)
	}

	return stats, nil
}
