package graph

import (
	"testing"

	"github.com/resolvd/resolvd/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNodes() []*models.Node {
	return []*models.Node{
		{ID: "a", FlowVersionID: "v1", Type: models.NodeTypeQuestion, Title: "Start", IsStart: true},
		{ID: "b", FlowVersionID: "v1", Type: models.NodeTypeResult, Title: "Done"},
	}
}

func TestValidate_OK(t *testing.T) {
	edges := []*models.Edge{
		{ID: "e1", FlowVersionID: "v1", SourceNodeID: "a", TargetNodeID: "b"},
	}

	require.NoError(t, Validate(testNodes(), edges))
}

func TestValidate_NoNodes(t *testing.T) {
	err := Validate(nil, nil)
	require.ErrorIs(t, err, ErrNoNodes)
}

func TestValidate_NoStartNode(t *testing.T) {
	nodes := testNodes()
	nodes[0].IsStart = false

	err := Validate(nodes, nil)
	require.ErrorIs(t, err, ErrNoStartNode)
}

func TestValidate_MultipleStartNodes(t *testing.T) {
	nodes := testNodes()
	nodes[1].IsStart = true

	err := Validate(nodes, nil)
	require.ErrorIs(t, err, ErrMultipleStartNodes)
}

func TestValidate_InvalidNodeType(t *testing.T) {
	nodes := testNodes()
	nodes[1].Type = "router"

	err := Validate(nodes, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid type")
}

func TestValidate_DanglingEdge(t *testing.T) {
	edges := []*models.Edge{
		{ID: "e1", FlowVersionID: "v1", SourceNodeID: "a", TargetNodeID: "ghost"},
	}

	err := Validate(testNodes(), edges)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")
}

func TestValidate_CrossVersionEdge(t *testing.T) {
	edges := []*models.Edge{
		{ID: "e1", FlowVersionID: "v2", SourceNodeID: "a", TargetNodeID: "b"},
	}

	err := Validate(testNodes(), edges)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version boundaries")
}

func TestFindStart(t *testing.T) {
	nodes := testNodes()

	start := FindStart(nodes)
	require.NotNil(t, start)
	assert.Equal(t, "a", start.ID)

	nodes[0].IsStart = false
	assert.Nil(t, FindStart(nodes))
}

func TestNormalize_AlreadyValid(t *testing.T) {
	nodes := testNodes()

	warnings := Normalize(nodes)
	assert.Empty(t, warnings)
	assert.True(t, nodes[0].IsStart)
}

func TestNormalize_PromotesFirstNode(t *testing.T) {
	nodes := testNodes()
	nodes[0].IsStart = false

	warnings := Normalize(nodes)
	require.Len(t, warnings, 1)
	assert.True(t, nodes[0].IsStart)
}

func TestNormalize_DemotesExtraStarts(t *testing.T) {
	nodes := testNodes()
	nodes[1].IsStart = true

	warnings := Normalize(nodes)
	require.Len(t, warnings, 1)
	assert.True(t, nodes[0].IsStart)
	assert.False(t, nodes[1].IsStart)
}

func TestNormalize_Empty(t *testing.T) {
	assert.Nil(t, Normalize(nil))
}
