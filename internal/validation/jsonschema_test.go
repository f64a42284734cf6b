package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowsim/pkg/schema"
)

func newSchemaValidator(t *testing.T) *JSONSchemaValidator {
	t.Helper()
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	return v
}

func TestJSONSchema_ValidDocument(t *testing.T) {
	v := newSchemaValidator(t)
	doc := `{
	  "nodes": [
	    {"id": "s", "type": "start", "data": {"title": "Go", "metadata": {"k": "v"}}},
	    {"id": "a", "type": "approval", "data": {"approverRole": "VP", "autoApproveThreshold": 2}},
	    {"id": "e", "type": "end", "data": {"showSummary": true}}
	  ],
	  "edges": [{"id": "1", "source": "s", "target": "a"}]
	}`
	assert.NoError(t, v.ValidateDocument([]byte(doc)))
}

func TestJSONSchema_EmptyGraphIsStructurallyValid(t *testing.T) {
	v := newSchemaValidator(t)
	assert.NoError(t, v.ValidateDocument([]byte(`{"nodes": [], "edges": []}`)))
}

func TestJSONSchema_Violations(t *testing.T) {
	v := newSchemaValidator(t)

	tests := []struct {
		name string
		doc  string
	}{
		{"missing edges", `{"nodes": []}`},
		{"unknown node type", `{"nodes": [{"id": "x", "type": "gateway"}], "edges": []}`},
		{"empty node id", `{"nodes": [{"id": "", "type": "task"}], "edges": []}`},
		{"negative threshold", `{"nodes": [{"id": "a", "type": "approval", "data": {"autoApproveThreshold": -1}}], "edges": []}`},
		{"unknown role", `{"nodes": [{"id": "a", "type": "approval", "data": {"approverRole": "CEO"}}], "edges": []}`},
		{"non-string metadata", `{"nodes": [{"id": "s", "type": "start", "data": {"metadata": {"n": 1}}}], "edges": []}`},
		{"edge without target", `{"nodes": [], "edges": [{"id": "1", "source": "s"}]}`},
		{"summary flag type", `{"nodes": [{"id": "e", "type": "end", "data": {"showSummary": "yes"}}], "edges": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDocument([]byte(tt.doc))
			require.Error(t, err)

			var fe *schema.FlowsimError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, schema.ErrCodeDecode, fe.Code)
			assert.NotEmpty(t, fe.Details["violations"])
		})
	}
}

func TestJSONSchema_NotJSON(t *testing.T) {
	v := newSchemaValidator(t)
	err := v.ValidateDocument([]byte(`{nodes:`))

	var fe *schema.FlowsimError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeDecode, fe.Code)
	assert.Nil(t, fe.Details)
}
