package expressions

import "context"

// Engine evaluates an expression against a JSON-shaped document.
// Three implementations: CEL and Expr (boolean gates), GoJQ (queries).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
