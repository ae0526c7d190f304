package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImportPayload_Valid(t *testing.T) {
	payload := []byte(`{
		"nodes": [
			{"id": "a", "type": "question", "title": "First?", "is_start": true},
			{"id": "b", "type": "result", "title": "Done"}
		],
		"edges": [
			{"source": "a", "target": "b", "condition_label": "Yes"}
		]
	}`)

	require.NoError(t, validateImportPayload(payload))
}

func TestValidateImportPayload_MissingNodes(t *testing.T) {
	err := validateImportPayload([]byte(`{"edges": []}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nodes")
}

func TestValidateImportPayload_EdgeWithoutTarget(t *testing.T) {
	payload := []byte(`{
		"nodes": [{"id": "a", "type": "question", "title": "First?"}],
		"edges": [{"source": "a"}]
	}`)

	err := validateImportPayload(payload)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "target")
}

func TestValidateImportPayload_MalformedJSON(t *testing.T) {
	require.Error(t, validateImportPayload([]byte(`{not json`)))
}
