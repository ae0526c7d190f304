package services

import (
	"testing"

	"github.com/resolvd/resolvd/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFlow(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	assert.NotNil(t, service)
}

func TestFlow_Create(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	flow, err := service.Create(t.Context(), CreateFlowRequest{
		Name:        "  Password Reset  ",
		Description: "Walks an agent through a reset",
		Category:    "accounts",
	}, "tester")
	require.NoError(t, err)

	assert.NotEmpty(t, flow.ID)
	assert.Equal(t, "Password Reset", flow.Name)
	assert.False(t, flow.IsLive())
	assert.False(t, flow.CreatedAt.IsZero())

	// The initial draft version is created atomically with the flow
	versions, err := persistence.VersionRepository().ListByFlow(t.Context(), flow.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.False(t, versions[0].IsPublished())
}

func TestFlow_Create_EmptyName(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	_, err := service.Create(t.Context(), CreateFlowRequest{Name: "   "}, "tester")
	require.ErrorIs(t, err, ErrNameRequired)
	assert.True(t, IsValidationError(err))
}

func TestFlow_Update(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	flow, _ := seedFlow(t, persistence, "Original")

	name := "Renamed"
	category := "billing"

	updated, err := service.Update(t.Context(), flow.ID, UpdateFlowRequest{
		Name:     &name,
		Category: &category,
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "billing", updated.Category)
}

func TestFlow_Update_NotFound(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	name := "Renamed"

	_, err := service.Update(t.Context(), "missing", UpdateFlowRequest{Name: &name}, "tester")
	require.ErrorIs(t, err, ErrFlowNotFound)
}

func TestFlow_ArchiveAndRestore(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	flow, _ := seedFlow(t, persistence, "Archivable")

	err := service.Archive(t.Context(), flow.ID, "tester")
	require.NoError(t, err)

	// Archived flows drop out of the active listing
	listed, err := service.ListFlows(t.Context(), ListFlowsRequest{})
	require.NoError(t, err)
	assert.Empty(t, listed.Flows)

	archived, err := service.ListArchived(t.Context())
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, flow.ID, archived[0].ID)

	restored, err := service.Restore(t.Context(), flow.ID, "tester")
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)

	listed, err = service.ListFlows(t.Context(), ListFlowsRequest{})
	require.NoError(t, err)
	assert.Len(t, listed.Flows, 1)
}

func TestFlow_Purge(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Doomed")
	seedGraph(t, persistence, version.ID)

	err := service.Purge(t.Context(), flow.ID, "tester")
	require.NoError(t, err)

	_, err = service.FetchByID(t.Context(), flow.ID)
	require.ErrorIs(t, err, ErrFlowNotFound)

	// Versions and graph rows go with the flow
	versions, err := persistence.VersionRepository().ListByFlow(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	nodes, err := persistence.GraphRepository().GetNodes(t.Context(), version.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestFlow_Duplicate(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Source")
	seedGraph(t, persistence, version.ID)

	dup, dupVersion, err := service.Duplicate(t.Context(), flow.ID, "", "tester")
	require.NoError(t, err)

	assert.Equal(t, "Copy of Source", dup.Name)
	assert.NotEqual(t, flow.ID, dup.ID)
	assert.Equal(t, 1, dupVersion.VersionNumber)
	assert.False(t, dup.IsLive())

	// The graph is deep-copied with fresh ids
	nodes, err := persistence.GraphRepository().GetNodes(t.Context(), dupVersion.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	sourceNodes, err := persistence.GraphRepository().GetNodes(t.Context(), version.ID)
	require.NoError(t, err)

	for _, node := range nodes {
		for _, sourceNode := range sourceNodes {
			assert.NotEqual(t, sourceNode.ID, node.ID)
		}
	}

	edges, err := persistence.GraphRepository().GetEdges(t.Context(), dupVersion.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestFlow_ListFlows_Filters(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	_, _ = seedFlow(t, persistence, "Password Reset")
	billing, _ := seedFlow(t, persistence, "Billing Dispute")

	category := "billing"
	_, err := service.Update(t.Context(), billing.ID, UpdateFlowRequest{Category: &category}, "tester")
	require.NoError(t, err)

	bySearch, err := service.ListFlows(t.Context(), ListFlowsRequest{Search: "password"})
	require.NoError(t, err)
	require.Len(t, bySearch.Flows, 1)
	assert.Equal(t, "Password Reset", bySearch.Flows[0].Name)

	byCategory, err := service.ListFlows(t.Context(), ListFlowsRequest{Category: "billing"})
	require.NoError(t, err)
	require.Len(t, byCategory.Flows, 1)
	assert.Equal(t, "Billing Dispute", byCategory.Flows[0].Name)

	byName, err := service.ListFlows(t.Context(), ListFlowsRequest{Sort: "name"})
	require.NoError(t, err)
	require.Len(t, byName.Flows, 2)
	assert.Equal(t, "Billing Dispute", byName.Flows[0].Name)
}

func TestFlow_ListFlows_InvalidSort(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	_, err := service.ListFlows(t.Context(), ListFlowsRequest{Sort: "sideways"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestFlow_ListFlows_StatusFilter(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	draftFlow, _ := seedFlow(t, persistence, "Draft Only")
	liveFlow, liveVersion := seedFlow(t, persistence, "Live One")
	seedGraph(t, persistence, liveVersion.ID)
	publishVersion(t, persistence, liveFlow.ID, liveVersion.ID)

	live, err := service.ListFlows(t.Context(), ListFlowsRequest{Status: "live"})
	require.NoError(t, err)
	require.Len(t, live.Flows, 1)
	assert.Equal(t, liveFlow.ID, live.Flows[0].ID)

	draft, err := service.ListFlows(t.Context(), ListFlowsRequest{Status: "draft"})
	require.NoError(t, err)
	require.Len(t, draft.Flows, 1)
	assert.Equal(t, draftFlow.ID, draft.Flows[0].ID)
}

func TestFlow_Detail_IncludesStats(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Detailed")
	seedGraph(t, persistence, version.ID)

	detail, err := service.Detail(t.Context(), flow.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Stats)

	assert.Equal(t, 3, detail.Stats.NodeCount)
	assert.Equal(t, 0, detail.Stats.TotalSessions)
	assert.Len(t, detail.Versions, 1)
}

func TestFlow_Categories(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewFlow(persistence, newTestAudit())

	for _, name := range []string{"A", "B"} {
		flow, _ := seedFlow(t, persistence, name)
		category := "hardware"
		_, err := service.Update(t.Context(), flow.ID, UpdateFlowRequest{Category: &category}, "tester")
		require.NoError(t, err)
	}

	categories, err := service.Categories(t.Context())
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "hardware", categories[0].Name)
	assert.Equal(t, 2, categories[0].Count)
}
