package actions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rendis/flowsim/pkg/schema"
)

// Registry is an immutable action catalog. It is built once at startup and
// shared by the simulator, the validator and every outer surface, so an id
// chosen in the editor always resolves during simulation. A nil *Registry
// is an empty catalog.
type Registry struct {
	order []string
	byID  map[string]Action
}

// NewRegistry builds a Registry from the given actions, preserving their
// order for List. Empty or duplicate ids are rejected.
func NewRegistry(acts ...Action) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(acts)),
		byID:  make(map[string]Action, len(acts)),
	}
	for i, a := range acts {
		if a.ID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "action at index %d has empty id", i)
		}
		if _, exists := r.byID[a.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeConflict, "action %q already registered", a.ID)
		}
		r.byID[a.ID] = a.clone()
		r.order = append(r.order, a.ID)
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error. Intended for static catalogs.
func MustRegistry(acts ...Action) *Registry {
	r, err := NewRegistry(acts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns a copy of the action with the given id.
func (r *Registry) Lookup(id string) (Action, bool) {
	if r == nil {
		return Action{}, false
	}
	a, ok := r.byID[id]
	if !ok {
		return Action{}, false
	}
	return a.clone(), true
}

// Get is Lookup with a NOT_FOUND error for callers that want one.
func (r *Registry) Get(id string) (Action, error) {
	a, ok := r.Lookup(id)
	if !ok {
		return Action{}, schema.NewErrorf(schema.ErrCodeNotFound, "action %q not registered", id)
	}
	return a, nil
}

// List returns copies of all actions in catalog order.
func (r *Registry) List() []Action {
	if r == nil {
		return []Action{}
	}
	out := make([]Action, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// Count returns the number of registered actions.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// catalogFile is the on-disk YAML catalog format.
type catalogFile struct {
	Actions []Action `yaml:"actions"`
}

// LoadCatalog reads a YAML action catalog from path.
func LoadCatalog(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a YAML action catalog.
func ParseCatalog(data []byte) (*Registry, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "invalid action catalog").WithCause(err)
	}
	return NewRegistry(f.Actions...)
}

var _ Catalog = (*Registry)(nil)
