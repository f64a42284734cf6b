package validation

import "github.com/rendis/flowsim/pkg/schema"

// Validator checks workflow graphs for well-formedness before simulation.
type Validator interface {
	Validate(g *schema.Graph) *schema.ValidationResult
}

// Validate returns the violation messages for g, in rule order. An empty
// slice means the graph is valid. Validate is a pure function of its input.
func Validate(g *schema.Graph) []string {
	if g == nil {
		g = &schema.Graph{}
	}
	return validateStructure(g).Messages()
}
