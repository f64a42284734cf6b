package schema

// Event type constants published on the streaming hub during a simulation.
const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventRunRejected  = "run_rejected"
	EventRunCancelled = "run_cancelled"

	EventNodeTransition = "node_transition"
	EventNodeLogged     = "node_logged"
	EventDeadEnd        = "dead_end"
)
