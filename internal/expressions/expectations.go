package expressions

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rendis/flowsim/pkg/schema"
)

// Engine identifiers accepted in expectations.
const (
	EngineCEL  = "cel"
	EngineExpr = "expr"
	EngineJQ   = "jq"
)

// Variables exposed to the boolean engines.
const (
	VarResult = "result"
	VarGraph  = "graph"
)

// Expectation is a gate attached to a simulation: an expression that must
// hold for the run to pass.
type Expectation struct {
	Engine     string `json:"engine" yaml:"engine"`
	Expression string `json:"expression" yaml:"expression"`
}

// Outcome is the verdict on one expectation.
type Outcome struct {
	Expression string `json:"expression"`
	Engine     string `json:"engine"`
	Passed     bool   `json:"passed"`
	Error      string `json:"error,omitempty"`
}

// Checker evaluates expectations against simulation reports.
// It is safe for concurrent use.
type Checker struct {
	engines map[string]Engine
	jq      *GoJQEngine
}

// NewChecker creates a Checker with all three engines.
func NewChecker() (*Checker, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	jq := NewGoJQEngine()
	return &Checker{
		engines: map[string]Engine{
			EngineCEL:  celEngine,
			EngineExpr: NewExprEngine(),
			EngineJQ:   jq,
		},
		jq: jq,
	}, nil
}

// Check evaluates every expectation in order. Failures to compile or
// evaluate are reported as failed outcomes, never as errors.
//
// cel and expr must produce a boolean over `result` and `graph`. jq runs
// over the report and passes when its first output is neither false nor null.
func (c *Checker) Check(ctx context.Context, result *schema.SimulationResult, g *schema.Graph, exps []Expectation) []Outcome {
	outcomes := make([]Outcome, 0, len(exps))
	if len(exps) == 0 {
		return outcomes
	}

	report, err := Document(result)
	if err != nil {
		for _, exp := range exps {
			outcomes = append(outcomes, Outcome{Expression: exp.Expression, Engine: exp.Engine, Error: err.Error()})
		}
		return outcomes
	}
	graphDoc, err := Document(g)
	if err != nil {
		graphDoc = map[string]any{}
	}

	for _, exp := range exps {
		out := Outcome{Expression: exp.Expression, Engine: exp.Engine}
		passed, err := c.evaluate(ctx, exp, report, graphDoc)
		if err != nil {
			out.Error = err.Error()
		}
		out.Passed = passed
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (c *Checker) evaluate(ctx context.Context, exp Expectation, report, graphDoc map[string]any) (bool, error) {
	name := exp.Engine
	if name == "" {
		name = EngineCEL
	}
	engine, ok := c.engines[name]
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeValidation, "unknown expression engine %q", exp.Engine)
	}

	if name == EngineJQ {
		outputs, err := c.jq.EvaluateAll(ctx, exp.Expression, report)
		if err != nil {
			return false, err
		}
		return len(outputs) > 0 && truthy(outputs[0]), nil
	}

	v, err := engine.Evaluate(ctx, exp.Expression, map[string]any{VarResult: report, VarGraph: graphDoc})
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"expression %q produced %T, want bool", exp.Expression, v)
	}
	return b, nil
}

// Query runs a jq program over the report and returns every output.
func (c *Checker) Query(ctx context.Context, expression string, result *schema.SimulationResult) ([]any, error) {
	report, err := Document(result)
	if err != nil {
		return nil, err
	}
	return c.jq.EvaluateAll(ctx, expression, report)
}

// Failed returns the outcomes that did not pass.
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if !o.Passed {
			failed = append(failed, o)
		}
	}
	return failed
}

// FailureError summarizes failed outcomes as an EXPECTATION_FAILED error,
// or returns nil when everything passed.
func FailureError(outcomes []Outcome) error {
	failed := Failed(outcomes)
	if len(failed) == 0 {
		return nil
	}
	exprs := make([]string, len(failed))
	for i, o := range failed {
		exprs[i] = o.Expression
	}
	return schema.NewErrorf(schema.ErrCodeExpectation, "%d of %d expectations failed", len(failed), len(outcomes)).
		WithDetails(map[string]any{"failed": exprs})
}

// Document converts v to its JSON shape: objects become map[string]any and
// integral numbers become int so engines compare them as integers.
func Document(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	normalized, _ := normalizeNumbers(doc).(map[string]any)
	return normalized, nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int(val)
		}
		return val
	default:
		return v
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}
