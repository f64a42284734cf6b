package expressions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowsim/pkg/schema"
)

func TestExprEngine_ImplementsEngine(t *testing.T) {
	var _ Engine = (*ExprEngine)(nil)
	assert.Equal(t, "expr", NewExprEngine().Name())
}

func TestExpr_ReportGates(t *testing.T) {
	e := NewExprEngine()
	tests := []struct {
		expr string
		want any
	}{
		{`result.success`, true},
		{`len(result.log) == 2`, true},
		{`all(result.log, .status != "error")`, true},
		{`count(result.log, .status == "approved")`, 1},
		{`result.summary?.status ?? "none"`, "partial"},
		{`result.missing?.status ?? "none"`, "none"},
		{`map(result.log, .nodeId)`, []any{"s", "a"}},
		{`graph.name startsWith "onboard"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, reportData())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestExpr_Errors(t *testing.T) {
	e := NewExprEngine()
	var fe *schema.FlowsimError

	_, err := e.Evaluate(context.Background(), "", nil)
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)

	_, err = e.Evaluate(context.Background(), "result.success ==", reportData())
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Evaluate(ctx, "true", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpr_NilData(t *testing.T) {
	out, err := NewExprEngine().Evaluate(context.Background(), "1 + 1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, out)
}
