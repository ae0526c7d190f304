package services

import (
	"testing"

	"github.com/resolvd/resolvd/pkg/models"
	store "github.com/resolvd/resolvd/pkg/persistence"
	"github.com/resolvd/resolvd/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_Fetch(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewVersion(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Fetchable")
	seedGraph(t, persistence, version.ID)

	detail, err := service.Fetch(t.Context(), flow.ID, version.ID)
	require.NoError(t, err)

	assert.Equal(t, version.ID, detail.ID)
	assert.Len(t, detail.Nodes, 3)
	assert.Len(t, detail.Edges, 2)
}

func TestVersion_Fetch_WrongFlow(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewVersion(persistence, newTestAudit())

	_, version := seedFlow(t, persistence, "Owner")
	other, _ := seedFlow(t, persistence, "Other")

	// A version is only reachable through its own flow
	_, err := service.Fetch(t.Context(), other.ID, version.ID)
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestVersion_Create(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewVersion(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Versioned")
	seedGraph(t, persistence, version.ID)

	next, err := service.Create(t.Context(), flow.ID, "second draft", "tester")
	require.NoError(t, err)

	assert.Equal(t, 2, next.VersionNumber)
	assert.Equal(t, models.VersionStatusDraft, next.Status)
	assert.Equal(t, "second draft", next.ChangeNotes)

	// The newest version's graph is cloned into the new draft
	nodes, err := persistence.GraphRepository().GetNodes(t.Context(), next.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	edges, err := persistence.GraphRepository().GetEdges(t.Context(), next.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	// Cloned edges point at the cloned nodes, not the source's
	for _, edge := range edges {
		found := false

		for _, node := range nodes {
			if edge.SourceNodeID == node.ID {
				found = true
			}
		}

		assert.True(t, found, "edge source should resolve within the new version")
	}
}

func TestVersion_Create_FlowNotFound(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewVersion(persistence, newTestAudit())

	_, err := service.Create(t.Context(), "missing", "", "tester")
	require.ErrorIs(t, err, ErrFlowNotFound)
}

func TestVersion_Publish(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewVersion(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Publishable")
	seedGraph(t, persistence, version.ID)

	published, err := service.Publish(t.Context(), flow.ID, version.ID, "go live", "tester")
	require.NoError(t, err)

	assert.True(t, published.IsPublished())
	assert.NotNil(t, published.PublishedAt)
	assert.Equal(t, "go live", published.ChangeNotes)

	// Publishing repoints the flow's active version
	stored, err := persistence.FlowRepository().GetByID(t.Context(), flow.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ActiveVersionID)
	assert.Equal(t, version.ID, *stored.ActiveVersionID)
}

func TestVersion_Publish_AlreadyPublished(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewVersion(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Once")
	seedGraph(t, persistence, version.ID)
	publishVersion(t, persistence, flow.ID, version.ID)

	_, err := service.Publish(t.Context(), flow.ID, version.ID, "", "tester")
	require.ErrorIs(t, err, ErrAlreadyPublished)
	assert.True(t, IsConflictError(err))
}

func TestVersion_Publish_NoStartNode(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewVersion(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Empty")

	_, err := service.Publish(t.Context(), flow.ID, version.ID, "", "tester")
	require.ErrorIs(t, err, ErrNoStartNode)
	assert.True(t, IsValidationError(err))
}

func TestVersion_Publish_AuditRecorded(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewVersion(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Audited")
	seedGraph(t, persistence, version.ID)

	_, err := service.Publish(t.Context(), flow.ID, version.ID, "", "tester")
	require.NoError(t, err)

	logs, err := persistence.AuditRepository().List(t.Context(), store.ListAuditOptions{ResourceID: version.ID})
	require.NoError(t, err)
	require.Len(t, logs.Entries, 1)
	assert.Equal(t, "version.published", logs.Entries[0].Action)
	assert.Equal(t, "tester", logs.Entries[0].ActorID)
}
