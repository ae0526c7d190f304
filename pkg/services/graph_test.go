package services

import (
	"testing"

	"github.com/resolvd/resolvd/pkg/models"
	store "github.com/resolvd/resolvd/pkg/persistence"
	"github.com/resolvd/resolvd/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddNode(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")

	node, err := service.AddNode(t.Context(), flow.ID, version.ID, NodeInput{
		Type:    "question",
		Title:   "  Does it boot?  ",
		IsStart: true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, node.ID)
	assert.Equal(t, "Does it boot?", node.Title)
	assert.True(t, node.IsStart)
}

func TestGraph_AddNode_EmptyTitle(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")

	_, err := service.AddNode(t.Context(), flow.ID, version.ID, NodeInput{Type: "question", Title: "   "})
	require.ErrorIs(t, err, ErrTitleRequired)
}

func TestGraph_AddNode_InvalidType(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")

	_, err := service.AddNode(t.Context(), flow.ID, version.ID, NodeInput{Type: "decision", Title: "Pick one"})
	require.ErrorIs(t, err, ErrInvalidNodeType)
}

func TestGraph_AddNode_StartIsExclusive(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")

	first, err := service.AddNode(t.Context(), flow.ID, version.ID, NodeInput{
		Type: "question", Title: "First", IsStart: true,
	})
	require.NoError(t, err)

	second, err := service.AddNode(t.Context(), flow.ID, version.ID, NodeInput{
		Type: "question", Title: "Second", IsStart: true,
	})
	require.NoError(t, err)

	// Flagging a new start clears the old one
	start, err := persistence.GraphRepository().GetStartNode(t.Context(), version.ID)
	require.NoError(t, err)
	require.NotNil(t, start)
	assert.Equal(t, second.ID, start.ID)

	old, err := persistence.GraphRepository().GetNode(t.Context(), version.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsStart)
}

func TestGraph_AddNode_PublishedVersionRejected(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Frozen")
	seedGraph(t, persistence, version.ID)
	publishVersion(t, persistence, flow.ID, version.ID)

	_, err := service.AddNode(t.Context(), flow.ID, version.ID, NodeInput{Type: "question", Title: "Late edit"})
	require.ErrorIs(t, err, ErrCannotModifyPublished)
	assert.True(t, IsConflictError(err))
}

func TestGraph_UpdateNode(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")
	start, _, _ := seedGraph(t, persistence, version.ID)

	title := "Is it plugged in?"
	body := "Check the power cable first."

	updated, err := service.UpdateNode(t.Context(), flow.ID, version.ID, start.ID, NodeUpdate{
		Title: &title,
		Body:  &body,
	})
	require.NoError(t, err)

	assert.Equal(t, title, updated.Title)
	assert.Equal(t, body, updated.Body)
	assert.True(t, updated.IsStart, "untouched fields keep their values")
}

func TestGraph_UpdateNode_NotFound(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")

	title := "anything"

	_, err := service.UpdateNode(t.Context(), flow.ID, version.ID, "missing", NodeUpdate{Title: &title})
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestGraph_DeleteNode_CascadesEdges(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")
	start, _, _ := seedGraph(t, persistence, version.ID)

	err := service.DeleteNode(t.Context(), flow.ID, version.ID, start.ID)
	require.NoError(t, err)

	edges, err := persistence.GraphRepository().GetEdges(t.Context(), version.ID)
	require.NoError(t, err)
	assert.Empty(t, edges, "edges touching the deleted node are removed")
}

func TestGraph_UpdatePositions(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")
	start, _, _ := seedGraph(t, persistence, version.ID)

	updated, err := service.UpdatePositions(t.Context(), flow.ID, version.ID, []store.NodePosition{
		{ID: start.ID, X: 120, Y: 40},
		{ID: "missing", X: 1, Y: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated, "unknown ids are skipped, not errors")

	node, err := persistence.GraphRepository().GetNode(t.Context(), version.ID, start.ID)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, node.Position.X, 0.001)
}

func TestGraph_AddEdge_SelfLoop(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")
	start, _, _ := seedGraph(t, persistence, version.ID)

	_, err := service.AddEdge(t.Context(), flow.ID, version.ID, EdgeInput{
		SourceNodeID: start.ID,
		TargetNodeID: start.ID,
	})
	require.ErrorIs(t, err, ErrSelfLoop)
}

func TestGraph_AddEdge_Duplicate(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")
	start, yes, _ := seedGraph(t, persistence, version.ID)

	_, err := service.AddEdge(t.Context(), flow.ID, version.ID, EdgeInput{
		SourceNodeID:   start.ID,
		TargetNodeID:   yes.TargetNodeID,
		ConditionLabel: "Yes",
	})
	require.ErrorIs(t, err, ErrDuplicateEdge)
	assert.True(t, IsConflictError(err))
}

func TestGraph_AddEdge_SameNodesDifferentLabel(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")
	start, yes, _ := seedGraph(t, persistence, version.ID)

	// Uniqueness is on (source, target, label), not (source, target)
	edge, err := service.AddEdge(t.Context(), flow.ID, version.ID, EdgeInput{
		SourceNodeID:   start.ID,
		TargetNodeID:   yes.TargetNodeID,
		ConditionLabel: "Probably",
		SortOrder:      2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID)
}

func TestGraph_UpdateEdge(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")
	_, yes, _ := seedGraph(t, persistence, version.ID)

	label := "Definitely"
	order := 5

	updated, err := service.UpdateEdge(t.Context(), flow.ID, version.ID, yes.ID, EdgeUpdate{
		ConditionLabel: &label,
		SortOrder:      &order,
	})
	require.NoError(t, err)

	assert.Equal(t, "Definitely", updated.ConditionLabel)
	assert.Equal(t, 5, updated.SortOrder)
}

func TestGraph_DeleteEdge(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Editable")
	_, yes, _ := seedGraph(t, persistence, version.ID)

	err := service.DeleteEdge(t.Context(), flow.ID, version.ID, yes.ID)
	require.NoError(t, err)

	err = service.DeleteEdge(t.Context(), flow.ID, version.ID, yes.ID)
	require.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestGraph_Import(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Importable")
	seedGraph(t, persistence, version.ID)

	result, err := service.Import(t.Context(), flow.ID, version.ID, []ImportNode{
		{TempID: "a", Type: "question", Title: "Which OS?", IsStart: true},
		{TempID: "b", Type: "result", Title: "Use the macOS guide"},
		{TempID: "c", Type: "result", Title: "Use the Windows guide"},
	}, []ImportEdge{
		{Source: "a", Target: "b", ConditionLabel: "macOS"},
		{Source: "a", Target: "c", ConditionLabel: "Windows"},
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, 3, result.NodesCreated)
	assert.Equal(t, 2, result.EdgesCreated)
	assert.Empty(t, result.SkippedEdges)
	assert.Empty(t, result.Warnings)

	// Import replaces the previous graph entirely
	nodes, err := persistence.GraphRepository().GetNodes(t.Context(), version.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	for _, node := range nodes {
		assert.NotEqual(t, "Is the device powered on?", node.Title)
	}
}

func TestGraph_Import_SelfHealing(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Messy")

	result, err := service.Import(t.Context(), flow.ID, version.ID, []ImportNode{
		{TempID: "a", Type: "router", Title: "  "},
		{TempID: "b", Type: "result", Title: "Done"},
	}, []ImportEdge{
		{Source: "a", Target: "b"},
		{Source: "a", Target: "ghost"},
		{Source: "a", Target: "a"},
		{Source: "a", Target: "b"},
	}, "tester")
	require.NoError(t, err)

	// Blank title and unknown type are coerced, not rejected
	nodes, err := persistence.GraphRepository().GetNodes(t.Context(), version.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	var healed *models.Node

	for _, node := range nodes {
		if node.Title == "Untitled step" {
			healed = node
		}
	}

	require.NotNil(t, healed)
	assert.Equal(t, models.NodeTypeQuestion, healed.Type)

	// Unknown refs are reported; self-loops and duplicates are dropped silently
	assert.Equal(t, 1, result.EdgesCreated)
	require.Len(t, result.SkippedEdges, 1)
	assert.Equal(t, "ghost", result.SkippedEdges[0].Target)

	// No node was flagged as start, so the first one is promoted
	start, err := persistence.GraphRepository().GetStartNode(t.Context(), version.ID)
	require.NoError(t, err)
	require.NotNil(t, start)
	assert.NotEmpty(t, result.Warnings)
}

func TestGraph_Import_MultipleStarts(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Contested")

	result, err := service.Import(t.Context(), flow.ID, version.ID, []ImportNode{
		{TempID: "a", Type: "question", Title: "First", IsStart: true},
		{TempID: "b", Type: "question", Title: "Second", IsStart: true},
	}, nil, "tester")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warnings)

	// Only the first flagged node keeps the start marker
	start, err := persistence.GraphRepository().GetStartNode(t.Context(), version.ID)
	require.NoError(t, err)
	require.NotNil(t, start)
	assert.Equal(t, "First", start.Title)
}

func TestGraph_Import_NoNodes(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Empty")

	_, err := service.Import(t.Context(), flow.ID, version.ID, nil, nil, "tester")
	require.ErrorIs(t, err, ErrNoNodesProvided)
}
