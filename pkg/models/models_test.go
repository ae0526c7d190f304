package models

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlow_IsLive(t *testing.T) {
	flow := &Flow{Name: "Printer offline"}
	assert.False(t, flow.IsLive())

	versionID := "v1"
	flow.ActiveVersionID = &versionID
	assert.True(t, flow.IsLive())

	empty := ""
	flow.ActiveVersionID = &empty
	assert.False(t, flow.IsLive())
}

func TestFlow_Validation_MissingName(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	err := validate.Struct(&Flow{})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
	assert.Equal(t, "Name", validationErrors[0].Field())
}

func TestValidNodeType(t *testing.T) {
	assert.True(t, ValidNodeType(NodeTypeQuestion))
	assert.True(t, ValidNodeType(NodeTypeResult))
	assert.False(t, ValidNodeType("router"))
	assert.False(t, ValidNodeType(""))
}

func TestNode_IsEscalation(t *testing.T) {
	node := &Node{Type: NodeTypeResult}
	assert.False(t, node.IsEscalation())

	node.Metadata = map[string]any{EscalateToKey: "hardware-team"}
	assert.True(t, node.IsEscalation())

	node.Metadata = map[string]any{EscalateToKey: ""}
	assert.False(t, node.IsEscalation())

	node.Metadata = map[string]any{EscalateToKey: true}
	assert.True(t, node.IsEscalation())

	node.Metadata = map[string]any{EscalateToKey: false}
	assert.False(t, node.IsEscalation())

	node.Metadata = map[string]any{EscalateToKey: nil}
	assert.False(t, node.IsEscalation())
}

func TestSession_IsCompleted(t *testing.T) {
	session := &Session{Status: SessionStatusInProgress}
	assert.False(t, session.IsCompleted())

	session.Status = SessionStatusCompleted
	assert.True(t, session.IsCompleted())
}

func TestVersion_IsPublished(t *testing.T) {
	version := &FlowVersion{Status: VersionStatusDraft}
	assert.False(t, version.IsPublished())

	version.Status = VersionStatusPublished
	assert.True(t, version.IsPublished())
}
