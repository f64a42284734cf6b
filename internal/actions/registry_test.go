package actions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowsim/pkg/schema"
)

func TestRegistry_New_Success(t *testing.T) {
	reg, err := NewRegistry(Action{ID: "ping", Label: "Ping", Params: []string{"host"}})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Count())
	_, ok := reg.Lookup("ping")
	assert.True(t, ok)
}

func TestRegistry_New_Duplicate(t *testing.T) {
	_, err := NewRegistry(Action{ID: "dup"}, Action{ID: "dup"})
	require.Error(t, err)

	var fe *schema.FlowsimError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeConflict, fe.Code)
}

func TestRegistry_New_EmptyID(t *testing.T) {
	_, err := NewRegistry(Action{Label: "nameless"})
	require.Error(t, err)

	var fe *schema.FlowsimError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)
}

func TestRegistry_MustRegistryPanics(t *testing.T) {
	assert.Panics(t, func() { MustRegistry(Action{ID: "a"}, Action{ID: "a"}) })
}

func TestRegistry_Lookup_Idempotent(t *testing.T) {
	reg := Builtin()

	first, ok := reg.Lookup("send_email")
	require.True(t, ok)
	second, ok := reg.Lookup("send_email")
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, "Send Email", first.Label)
	assert.Equal(t, []string{"to", "subject", "body"}, first.Params)
}

func TestRegistry_Lookup_ReturnsCopy(t *testing.T) {
	reg := Builtin()

	a, _ := reg.Lookup("generate_doc")
	a.Params[0] = "mutated"
	a.Label = "mutated"

	again, _ := reg.Lookup("generate_doc")
	assert.Equal(t, "template", again.Params[0])
	assert.Equal(t, "Generate Document", again.Label)
}

func TestRegistry_Lookup_NotFound(t *testing.T) {
	reg := Builtin()

	_, ok := reg.Lookup("")
	assert.False(t, ok)
	_, ok = reg.Lookup("launch_rocket")
	assert.False(t, ok)

	_, err := reg.Get("launch_rocket")
	var fe *schema.FlowsimError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeNotFound, fe.Code)
}

func TestRegistry_ListKeepsCatalogOrder(t *testing.T) {
	reg := Builtin()
	list := reg.List()
	require.Len(t, list, 5)

	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"send_email", "generate_doc", "update_record", "create_notification", "schedule_reminder"}, ids)

	list[0].ID = "changed"
	_, ok := reg.Lookup("send_email")
	assert.True(t, ok)
}

func TestRegistry_NilParamsBecomeEmpty(t *testing.T) {
	reg := MustRegistry(Action{ID: "noop"})
	a, _ := reg.Lookup("noop")
	assert.NotNil(t, a.Params)
	assert.Empty(t, a.Params)
}

func TestParseCatalog(t *testing.T) {
	data := []byte(`
actions:
  - id: open_ticket
    label: Open Ticket
    description: Open a support ticket
    params: [queue, summary]
  - id: close_ticket
    label: Close Ticket
`)
	reg, err := ParseCatalog(data)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Count())

	a, ok := reg.Lookup("open_ticket")
	require.True(t, ok)
	assert.Equal(t, []string{"queue", "summary"}, a.Params)
}

func TestParseCatalog_Invalid(t *testing.T) {
	_, err := ParseCatalog([]byte("actions: [unterminated"))
	var fe *schema.FlowsimError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeDecode, fe.Code)

	_, err = ParseCatalog([]byte("actions:\n  - id: a\n  - id: a\n"))
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeConflict, fe.Code)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("actions:\n  - id: a\n    label: A\n"), 0o644))

	reg, err := LoadCatalog(path)
	require.NoError(t, err)
	a, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "A", a.Label)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRegistry_NilIsEmpty(t *testing.T) {
	var reg *Registry

	_, ok := reg.Lookup("send_email")
	assert.False(t, ok)
	assert.Zero(t, reg.Count())
	assert.Empty(t, reg.List())

	_, err := reg.Get("send_email")
	var fe *schema.FlowsimError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeNotFound, fe.Code)
}
