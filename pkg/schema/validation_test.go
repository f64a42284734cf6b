package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
	assert.NotNil(t, r.Messages())
	assert.Empty(t, r.Messages())
}

func TestValidationResult_AddError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("nodes[0]", IssueNotConnected, `Node "Review" is not connected`)

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "nodes[0]", r.Errors[0].Path)
	assert.Equal(t, IssueNotConnected, r.Errors[0].Code)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
}

func TestValidationResult_AddWarning(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("nodes[1]", IssueUnreachable, "unreachable")

	assert.True(t, r.Valid(), "warnings alone should not make result invalid")
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
}

func TestValidationResult_MessagesKeepOrder(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("nodes", IssueMultipleStart, "first")
	r.AddWarning("edges[0]", IssueDanglingEdge, "ignored")
	r.AddError("nodes", IssueMissingEnd, "second")

	assert.Equal(t, []string{"first", "second"}, r.Messages())
}

func TestValidationResult_Merge(t *testing.T) {
	r1 := &ValidationResult{}
	r1.AddError("/", ErrCodeValidation, "err1")
	r1.AddWarning("/", ErrCodeValidation, "warn1")

	r2 := &ValidationResult{}
	r2.AddError("nodes[0]", IssueNotConnected, "err2")
	r2.AddWarning("nodes[1]", IssueUnreachable, "warn2")

	r1.Merge(r2)
	r1.Merge(nil)

	assert.Len(t, r1.Errors, 2)
	assert.Len(t, r1.Warnings, 2)
}

func TestFlowsimError_Format(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorf(ErrCodeDecode, "bad %s", "node").WithNode("n1").WithCause(cause)

	assert.Equal(t, "[DECODE_ERROR] node n1: bad node", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[NOT_FOUND] missing", NewError(ErrCodeNotFound, "missing").Error())
}
