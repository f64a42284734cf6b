package schema

import "time"

// Status is a descriptive tag on a log entry. Values have no total order.
type Status string

const (
	StatusExecuting Status = "executing"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusApproved  Status = "approved"
	StatusSkipped   Status = "skipped"
	StatusError     Status = "error"
)

// Counted reports whether the status counts as a completed node in a summary.
func (s Status) Counted() bool {
	return s == StatusCompleted || s == StatusApproved
}

// Summary outcome values.
const (
	SummarySuccess = "success"
	SummaryPartial = "partial"
)

// Result error messages. Consumers compare these strings verbatim.
const (
	MsgNoStartNode      = "No start node found"
	MsgValidationFailed = "Workflow validation failed"
	MsgCancelled        = "Simulation cancelled"
	MsgNoOutgoing       = "No outgoing connection found"
)

// LogEntry is one step of a simulated execution.
type LogEntry struct {
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"nodeId"`
	NodeType  NodeType  `json:"nodeType"`
	// NodeTitle is absent on synthesized dead-end entries.
	NodeTitle string `json:"nodeTitle,omitempty"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
}

// Summary is produced only when the reached end node asks for it.
type Summary struct {
	TotalNodes     int    `json:"totalNodes"`
	CompletedNodes int    `json:"completedNodes"`
	ExecutionTime  string `json:"executionTime"`
	Status         string `json:"status"`
}

// SimulationResult is the outcome of one simulation run. Exactly one of
// Error (single message) or a populated Log describes the outcome; Errors
// is set alongside Error when validation failed. Summary is nil, and
// omitted on the wire, unless the end node requested it.
type SimulationResult struct {
	RunID   string     `json:"runId,omitempty"`
	Success bool       `json:"success"`
	Log     []LogEntry `json:"log"`
	Summary *Summary   `json:"summary,omitempty"`
	Error   string     `json:"error,omitempty"`
	Errors  []string   `json:"errors,omitempty"`
}
