package web

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// importSchema describes the shape of a bulk import payload. The structural
// check runs before the body is unmarshalled so malformed generator output is
// rejected with a precise message instead of a partial self-heal.
const importSchema = `{
	"type": "object",
	"required": ["nodes"],
	"properties": {
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"temp_id": {"type": "string"},
					"id": {"type": "string"},
					"type": {"type": "string"},
					"title": {"type": "string"},
					"body": {"type": "string"},
					"position": {
						"type": "object",
						"properties": {
							"x": {"type": "number"},
							"y": {"type": "number"}
						}
					},
					"metadata": {"type": "object"},
					"is_start": {"type": "boolean"}
				}
			}
		},
		"edges": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["source", "target"],
				"properties": {
					"source": {"type": "string"},
					"target": {"type": "string"},
					"condition_label": {"type": "string"},
					"sort_order": {"type": "integer"}
				}
			}
		}
	}
}`

var importSchemaLoader = gojsonschema.NewStringLoader(importSchema)

// validateImportPayload checks the raw import body against the payload schema.
func validateImportPayload(body []byte) error {
	result, err := gojsonschema.Validate(importSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("invalid import payload: %s", strings.Join(messages, "; "))
	}

	return nil
}
