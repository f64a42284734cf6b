package actions

import "slices"

// Action describes an automation capability an automated node can reference.
// Actions are catalog entries only; nothing is ever executed.
type Action struct {
	ID          string   `json:"id" yaml:"id"`
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description" yaml:"description"`
	Params      []string `json:"params" yaml:"params"`
}

func (a Action) clone() Action {
	a.Params = slices.Clone(a.Params)
	if a.Params == nil {
		a.Params = []string{}
	}
	return a
}

// Lookup resolves action ids. Satisfied by *Registry and test fakes.
type Lookup interface {
	Lookup(id string) (Action, bool)
}

// Catalog is the full read-only surface of a registry.
type Catalog interface {
	Lookup
	Get(id string) (Action, error)
	List() []Action
	Count() int
}
