package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence/memory"
	"github.com/stretchr/testify/require"
)

func newTestAudit() *Audit {
	return NewAudit(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// seedFlow creates a flow with a single empty draft version and returns both.
func seedFlow(t *testing.T, p *memory.Persistence, name string) (*models.Flow, *models.FlowVersion) {
	t.Helper()

	service := NewFlow(p, newTestAudit())

	flow, err := service.Create(t.Context(), CreateFlowRequest{Name: name}, "tester")
	require.NoError(t, err)

	versions, err := p.VersionRepository().ListByFlow(t.Context(), flow.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	return flow, versions[0]
}

// seedGraph builds a minimal traversable graph on the version: one start
// question with yes/no edges to a resolved and an escalated result node.
// Returns the start node and the two edges.
func seedGraph(t *testing.T, p *memory.Persistence, versionID string) (*models.Node, *models.Edge, *models.Edge) {
	t.Helper()

	now := time.Now().UTC()

	start := &models.Node{
		ID:            uuid.New().String(),
		FlowVersionID: versionID,
		Type:          models.NodeTypeQuestion,
		Title:         "Is the device powered on?",
		IsStart:       true,
		CreatedAt:     now,
	}

	resolved := &models.Node{
		ID:            uuid.New().String(),
		FlowVersionID: versionID,
		Type:          models.NodeTypeResult,
		Title:         "Issue resolved",
		CreatedAt:     now.Add(time.Millisecond),
	}

	escalated := &models.Node{
		ID:            uuid.New().String(),
		FlowVersionID: versionID,
		Type:          models.NodeTypeResult,
		Title:         "Escalate to level 2",
		Metadata:      map[string]any{models.EscalateToKey: "tier-2"},
		CreatedAt:     now.Add(2 * time.Millisecond),
	}

	for _, node := range []*models.Node{start, resolved, escalated} {
		require.NoError(t, p.GraphRepository().SaveNode(t.Context(), node))
	}

	yes := &models.Edge{
		ID:             uuid.New().String(),
		FlowVersionID:  versionID,
		SourceNodeID:   start.ID,
		TargetNodeID:   resolved.ID,
		ConditionLabel: "Yes",
		SortOrder:      0,
	}

	no := &models.Edge{
		ID:             uuid.New().String(),
		FlowVersionID:  versionID,
		SourceNodeID:   start.ID,
		TargetNodeID:   escalated.ID,
		ConditionLabel: "No",
		SortOrder:      1,
	}

	require.NoError(t, p.GraphRepository().SaveEdge(t.Context(), yes))
	require.NoError(t, p.GraphRepository().SaveEdge(t.Context(), no))

	return start, yes, no
}

// publishVersion pushes a seeded version through the publish path.
func publishVersion(t *testing.T, p *memory.Persistence, flowID, versionID string) *models.FlowVersion {
	t.Helper()

	service := NewVersion(p, newTestAudit())

	published, err := service.Publish(t.Context(), flowID, versionID, "", "tester")
	require.NoError(t, err)

	return published
}
