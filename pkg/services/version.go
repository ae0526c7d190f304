package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/resolvd/resolvd/pkg/events"
	"github.com/resolvd/resolvd/pkg/graph"
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

var (
	// ErrVersionNotFound is returned when a version is not found under the
	// expected flow.
	ErrVersionNotFound = persistence.ErrVersionNotFound
)

// Version handles the draft/published lifecycle of flow versions. Publishing
// is one-way: a published version is an immutable snapshot and the only kind
// a flow's active pointer may reference.
type Version struct {
	persistence persistence.Persistence
	audit       *Audit
}

// NewVersion creates a new version lifecycle service.
func NewVersion(persistence persistence.Persistence, audit *Audit) *Version {
	return &Version{
		persistence: persistence,
		audit:       audit,
	}
}

// VersionDetail is a version together with its full graph.
type VersionDetail struct {
	*models.FlowVersion

	Nodes []*models.Node `json:"nodes"`
	Edges []*models.Edge `json:"edges"`
}

// Fetch returns the version with its graph, scoped to the given flow.
func (v *Version) Fetch(ctx context.Context, flowID, versionID string) (*VersionDetail, error) {
	version, err := v.fetchOwned(ctx, flowID, versionID)
	if err != nil {
		return nil, err
	}

	nodes, err := v.persistence.GraphRepository().GetNodes(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}

	edges, err := v.persistence.GraphRepository().GetEdges(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}

	return &VersionDetail{FlowVersion: version, Nodes: nodes, Edges: edges}, nil
}

// Create branches a new draft from the flow's newest version. The new
// version gets the next version number and a deep copy of the source graph;
// a flow with no versions yet starts empty at number 1.
func (v *Version) Create(ctx context.Context, flowID, changeNotes, actorID string) (*models.FlowVersion, error) {
	flow, err := v.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow == nil {
		return nil, ErrFlowNotFound
	}

	versions, err := v.persistence.VersionRepository().ListByFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	nextNumber := 1
	cloneFrom := ""

	if len(versions) > 0 {
		nextNumber = versions[0].VersionNumber + 1
		cloneFrom = versions[0].ID
	}

	version := &models.FlowVersion{
		ID:            uuid.New().String(),
		FlowID:        flowID,
		VersionNumber: nextNumber,
		Status:        models.VersionStatusDraft,
		ChangeNotes:   changeNotes,
		CreatedAt:     time.Now().UTC(),
	}

	audit := v.audit.Entry(events.VersionCreatedEvent, "flow_version", version.ID, actorID,
		map[string]any{"flow_id": flowID})

	err = v.persistence.VersionRepository().Create(ctx, version, cloneFrom, audit)
	if err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	v.audit.Publish(ctx, audit)

	return version, nil
}

// Publish promotes a draft to the published, immutable state and repoints
// the flow's active version at it. Fails with a conflict when the version is
// already published and with a validation error when the graph has no valid
// start node.
func (v *Version) Publish(ctx context.Context, flowID, versionID, changeNotes, actorID string) (*models.FlowVersion, error) {
	version, err := v.fetchOwned(ctx, flowID, versionID)
	if err != nil {
		return nil, err
	}

	if version.IsPublished() {
		return nil, ErrAlreadyPublished
	}

	nodes, err := v.persistence.GraphRepository().GetNodes(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}

	edges, err := v.persistence.GraphRepository().GetEdges(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}

	if err := graph.Validate(nodes, edges); err != nil {
		if errors.Is(err, graph.ErrNoNodes) || errors.Is(err, graph.ErrNoStartNode) {
			return nil, ErrNoStartNode
		}

		return nil, NewValidationError("PublishVersion", "INVALID_GRAPH", err.Error(), ErrInvalidRequest)
	}

	now := time.Now().UTC()
	version.Status = models.VersionStatusPublished
	version.PublishedAt = &now

	if changeNotes != "" {
		version.ChangeNotes = changeNotes
	}

	audit := v.audit.Entry(events.VersionPublishedEvent, "flow_version", version.ID, actorID,
		map[string]any{"flow_id": flowID, "version_number": version.VersionNumber})

	err = v.persistence.VersionRepository().Publish(ctx, version, audit)
	if err != nil {
		return nil, fmt.Errorf("failed to publish version: %w", err)
	}

	v.audit.Publish(ctx, audit)

	return version, nil
}

func (v *Version) fetchOwned(ctx context.Context, flowID, versionID string) (*models.FlowVersion, error) {
	version, err := v.persistence.VersionRepository().GetByFlowAndID(ctx, flowID, versionID)
	if err != nil {
		return nil, err
	}

	if version == nil {
		return nil, ErrVersionNotFound
	}

	return version, nil
}
