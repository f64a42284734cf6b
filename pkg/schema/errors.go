package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeDecode            = "DECODE_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeExpression        = "EXPRESSION_ERROR"
	ErrCodeExpectation       = "EXPECTATION_FAILED"
)

// FlowsimError is the structured error type for all flowsim operations.
type FlowsimError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FlowsimError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FlowsimError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FlowsimError.
func NewError(code, message string) *FlowsimError {
	return &FlowsimError{Code: code, Message: message}
}

// NewErrorf creates a new FlowsimError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowsimError {
	return &FlowsimError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *FlowsimError) WithNode(nodeID string) *FlowsimError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowsimError) WithCause(err error) *FlowsimError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowsimError) WithDetails(details map[string]any) *FlowsimError {
	e.Details = details
	return e
}
