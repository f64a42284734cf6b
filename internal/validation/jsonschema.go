package validation

import (
	"bytes"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/flowsim/pkg/schema"
)

const graphSchemaURL = "https://flowsim.dev/schemas/graph.json"

// graphSchemaJSON is the JSON Schema for serialized workflow graphs.
// Embedded as a constant to avoid filesystem dependencies.
const graphSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowsim.dev/schemas/graph.json",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "name": { "type": "string" },
    "nodes": { "type": "array", "items": { "$ref": "#/$defs/node" } },
    "edges": { "type": "array", "items": { "$ref": "#/$defs/edge" } }
  },
  "$defs": {
    "fields": {
      "type": "object",
      "additionalProperties": { "type": "string" }
    },
    "node": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "type": { "enum": ["start", "task", "approval", "automated", "end"] },
        "data": { "type": ["object", "null"] }
      },
      "allOf": [
        {
          "if": { "properties": { "type": { "const": "start" } } },
          "then": { "properties": { "data": { "properties": {
            "title": { "type": "string" },
            "metadata": { "$ref": "#/$defs/fields" }
          } } } }
        },
        {
          "if": { "properties": { "type": { "const": "task" } } },
          "then": { "properties": { "data": { "properties": {
            "title": { "type": "string" },
            "description": { "type": "string" },
            "assignee": { "type": "string" },
            "dueDate": { "type": "string", "pattern": "^$|^[0-9]{4}-[0-9]{2}-[0-9]{2}" },
            "customFields": { "$ref": "#/$defs/fields" }
          } } } }
        },
        {
          "if": { "properties": { "type": { "const": "approval" } } },
          "then": { "properties": { "data": { "properties": {
            "title": { "type": "string" },
            "approverRole": { "enum": ["", "Manager", "HRBP", "Director", "VP"] },
            "autoApproveThreshold": { "type": "integer", "minimum": 0 }
          } } } }
        },
        {
          "if": { "properties": { "type": { "const": "automated" } } },
          "then": { "properties": { "data": { "properties": {
            "title": { "type": "string" },
            "actionId": { "type": "string" },
            "actionParams": { "$ref": "#/$defs/fields" }
          } } } }
        },
        {
          "if": { "properties": { "type": { "const": "end" } } },
          "then": { "properties": { "data": { "properties": {
            "endMessage": { "type": "string" },
            "showSummary": { "type": "boolean" }
          } } } }
        }
      ]
    },
    "edge": {
      "type": "object",
      "required": ["source", "target"],
      "properties": {
        "id": { "type": "string" },
        "source": { "type": "string" },
        "target": { "type": "string" },
        "priority": { "type": "integer" }
      }
    }
  }
}`

// JSONSchemaValidator checks raw graph documents against the graph JSON
// Schema (Draft 2020-12) before they are decoded. It is safe for concurrent use.
type JSONSchemaValidator struct {
	graphSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the graph schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(graphSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal graph schema: %w", err)
	}
	if err := c.AddResource(graphSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add graph schema resource: %w", err)
	}

	compiled, err := c.Compile(graphSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile graph schema: %w", err)
	}

	return &JSONSchemaValidator{graphSchema: compiled}, nil
}

// ValidateDocument validates a JSON graph document.
func (v *JSONSchemaValidator) ValidateDocument(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return schema.NewError(schema.ErrCodeDecode, "graph document is not valid JSON").WithCause(err)
	}

	if err := v.graphSchema.Validate(doc); err != nil {
		return toFlowsimError(err)
	}
	return nil
}

// toFlowsimError converts a jsonschema.ValidationError into a FlowsimError
// listing every leaf violation.
func toFlowsimError(err error) *schema.FlowsimError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeDecode, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeDecode, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeDecode, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("graph document has %d structural errors", len(violations))
	return schema.NewError(schema.ErrCodeDecode, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
