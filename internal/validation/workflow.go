package validation

import (
	"github.com/rendis/flowsim/internal/actions"
	"github.com/rendis/flowsim/pkg/schema"
)

// GraphValidator runs the validation pipeline:
// 1. Structure (start/end cardinality, connectivity) - errors
// 2. Reachability (dangling edges, unreachable nodes) - warnings
// 3. Action references - warnings
//
// Only stage 1 decides validity. Warnings never block a simulation.
type GraphValidator struct {
	actions actions.Lookup
}

// NewGraphValidator creates a GraphValidator.
// lookup may be nil to skip action reference checks.
func NewGraphValidator(lookup actions.Lookup) *GraphValidator {
	return &GraphValidator{actions: lookup}
}

// Validate runs every stage and returns the aggregated result.
func (gv *GraphValidator) Validate(g *schema.Graph) *schema.ValidationResult {
	if g == nil {
		g = &schema.Graph{}
	}

	result := validateStructure(g)
	result.Merge(checkReachability(g))
	result.Merge(checkActions(g, gv.actions))
	return result
}

var _ Validator = (*GraphValidator)(nil)
