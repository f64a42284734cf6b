package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/flowsim/internal/actions"
	"github.com/rendis/flowsim/internal/logging"
	"github.com/rendis/flowsim/internal/metrics"
	"github.com/rendis/flowsim/internal/streaming"
	"github.com/rendis/flowsim/internal/validation"
	"github.com/rendis/flowsim/pkg/schema"
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithDelays sets the simulated per-type delays.
func WithDelays(d Delays) Option {
	return func(s *Simulator) { s.delays = d }
}

// WithPacer replaces the pacer that performs delays.
func WithPacer(p Pacer) Option {
	return func(s *Simulator) { s.pacer = p }
}

// WithEdgeStrategy sets how the walk picks among several outgoing edges.
func WithEdgeStrategy(st EdgeStrategy) Option {
	return func(s *Simulator) { s.strategy = st }
}

// WithHub publishes run and node events to hub.
func WithHub(hub streaming.EventHub) Option {
	return func(s *Simulator) { s.hub = hub }
}

// WithMetrics records run outcomes and entries in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// WithLogger sets the logger. Correlation IDs are added from the context.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithClock overrides the timestamp source for log entries. The default
// clock reads UTC at millisecond precision.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithHaltBefore ends runs unsuccessfully when a node of one of the given
// types is about to change status. The log keeps every earlier entry.
func WithHaltBefore(types ...schema.NodeType) Option {
	return func(s *Simulator) { s.halts = append(s.halts, types...) }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(next func() string) Option {
	return func(s *Simulator) { s.newRunID = next }
}

// Simulator walks a workflow graph and produces an execution log without
// side effects. A Simulator holds only configuration, so one instance can
// serve concurrent runs.
type Simulator struct {
	actions  actions.Lookup
	delays   Delays
	pacer    Pacer
	strategy EdgeStrategy
	hub      streaming.EventHub
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string
	halts    []schema.NodeType
	fsm      *NodeFSM
}

// NewSimulator creates a Simulator that resolves automated actions through
// lookup. A nil lookup resolves nothing.
func NewSimulator(lookup actions.Lookup, opts ...Option) *Simulator {
	if lookup == nil {
		lookup = actions.MustRegistry()
	}
	s := &Simulator{
		actions:  lookup,
		delays:   DefaultDelays(),
		pacer:    SleepPacer{},
		strategy: FirstOutgoing,
		logger:   logging.Discard(),
		now:      nowMillis,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	var publisher EventPublisher
	if s.hub != nil {
		publisher = s.hub
	}
	var recorder TransitionRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	s.fsm = NewNodeFSM(publisher, recorder)
	for _, t := range s.halts {
		halt := errors.New("halted before " + string(t) + " node")
		for _, to := range ValidNodeTransitions[t][schema.StatusExecuting] {
			s.fsm.OnBefore(t, schema.StatusExecuting, to, func(_, _ schema.Status) error { return halt })
		}
	}
	return s
}

func nowMillis() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Simulate runs one simulation of g. It never fails: every outcome,
// including cancellation, is reported in the returned result.
func (s *Simulator) Simulate(ctx context.Context, g *schema.Graph) *schema.SimulationResult {
	return s.SimulateRun(ctx, "", g)
}

// SimulateRun is Simulate under a caller-chosen run id, so a client can
// subscribe to the run's events before starting it. An empty id gets a
// generated one.
func (s *Simulator) SimulateRun(ctx context.Context, runID string, g *schema.Graph) *schema.SimulationResult {
	if g == nil {
		g = &schema.Graph{}
	}

	if runID == "" {
		runID = s.newRunID()
	}
	ctx = logging.WithRunID(ctx, runID)
	if g.Name != "" {
		ctx = logging.WithGraph(ctx, g.Name)
	}

	starts := g.NodesOfType(schema.NodeTypeStart)
	if len(starts) == 0 {
		s.reject(ctx, runID, schema.MsgNoStartNode, nil)
		return &schema.SimulationResult{
			RunID:   runID,
			Success: false,
			Error:   schema.MsgNoStartNode,
			Log:     []schema.LogEntry{},
		}
	}

	if violations := validation.Validate(g); len(violations) > 0 {
		s.reject(ctx, runID, schema.MsgValidationFailed, violations)
		return &schema.SimulationResult{
			RunID:   runID,
			Success: false,
			Error:   schema.MsgValidationFailed,
			Errors:  violations,
			Log:     []schema.LogEntry{},
		}
	}

	r := &run{
		sim:     s,
		id:      runID,
		graph:   g,
		log:     []schema.LogEntry{},
		visited: make(map[string]bool, len(g.Nodes)),
	}

	began := time.Now()
	s.metrics.RunStarted()
	s.publish(ctx, streaming.StreamEvent{RunID: runID, EventType: schema.EventRunStarted,
		Payload: map[string]any{"graph": g.Name, "nodes": len(g.Nodes)}})
	s.logger.InfoContext(ctx, "simulation started", "nodes", len(g.Nodes), "edges", len(g.Edges))

	result, outcome := r.walk(ctx, starts[0])
	result.RunID = runID

	s.metrics.RunFinished(outcome, time.Since(began))
	s.finish(ctx, result, outcome)
	return result
}

func (s *Simulator) reject(ctx context.Context, runID, reason string, violations []string) {
	s.metrics.RunRejected()
	s.logger.WarnContext(ctx, "simulation rejected", "reason", reason, "violations", len(violations))
	s.publish(ctx, streaming.StreamEvent{RunID: runID, EventType: schema.EventRunRejected,
		Payload: map[string]any{"error": reason, "errors": violations}})
}

func (s *Simulator) finish(ctx context.Context, result *schema.SimulationResult, outcome string) {
	switch outcome {
	case metrics.OutcomeCancelled:
		s.logger.WarnContext(ctx, "simulation cancelled", "steps", len(result.Log))
		s.publish(context.WithoutCancel(ctx), streaming.StreamEvent{RunID: result.RunID,
			EventType: schema.EventRunCancelled, Payload: result})
	default:
		s.logger.InfoContext(ctx, "simulation finished", "outcome", outcome,
			"steps", len(result.Log), "success", result.Success)
		s.publish(ctx, streaming.StreamEvent{RunID: result.RunID,
			EventType: schema.EventRunCompleted, Payload: result})
	}
}

func (s *Simulator) publish(ctx context.Context, evt streaming.StreamEvent) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Publish(ctx, evt); err != nil {
		s.logger.DebugContext(ctx, "event dropped", "event", evt.EventType, "error", err)
	}
}

// run is the state of a single walk.
type run struct {
	sim     *Simulator
	id      string
	graph   *schema.Graph
	log     []schema.LogEntry
	visited map[string]bool
	step    int
}

// walk follows the graph from start until it reaches an end node, a dead
// end, an unresolved edge target, or a node it has already executed.
func (r *run) walk(ctx context.Context, start schema.Node) (*schema.SimulationResult, string) {
	current, ok := start, true
	r.step = 1

	for ok && !r.visited[current.ID] {
		if err := ctx.Err(); err != nil {
			return r.abort(ctx, err)
		}
		r.visited[current.ID] = true
		nodeCtx := logging.WithNodeID(ctx, current.ID)

		entry := schema.LogEntry{
			Step:      r.step,
			Timestamp: r.sim.now(),
			NodeID:    current.ID,
			NodeType:  current.Type(),
			NodeTitle: current.DisplayTitle(),
			Status:    schema.StatusExecuting,
		}

		if err := r.execute(nodeCtx, current, &entry); err != nil {
			return r.abort(ctx, err)
		}
		r.append(nodeCtx, entry)

		if end, isEnd := current.Data.(*schema.EndData); isEnd {
			result := &schema.SimulationResult{Success: true, Log: r.log}
			if end.ShowSummary {
				result.Summary = summarize(r.graph, r.log)
			}
			return result, metrics.OutcomeCompleted
		}

		edge, found := r.sim.strategy.Select(r.graph.Outgoing(current.ID))
		if !found {
			r.deadEnd(nodeCtx, current)
			return &schema.SimulationResult{Success: true, Log: r.log}, metrics.OutcomeDeadEnd
		}

		current, ok = r.graph.NodeByID(edge.Target)
		if !ok {
			r.sim.logger.DebugContext(nodeCtx, "edge target not found", "edge", edge.ID, "target", edge.Target)
		}
		r.step++
	}

	// A revisited node or an unresolved edge target ends the walk quietly.
	return &schema.SimulationResult{Success: true, Log: r.log}, metrics.OutcomeIncomplete
}

// execute computes the status and message of one node.
func (r *run) execute(ctx context.Context, n schema.Node, entry *schema.LogEntry) error {
	switch d := n.Data.(type) {
	case *schema.StartData:
		title := d.Title
		if title == "" {
			title = "Start"
		}
		entry.Message = "Workflow started: " + title
		return r.transition(ctx, entry, schema.StatusCompleted)

	case *schema.TaskData:
		assignee := d.Assignee
		if assignee == "" {
			assignee = "Unassigned"
		}
		entry.Message = "Task assigned to: " + assignee
		if err := r.transition(ctx, entry, schema.StatusPending); err != nil {
			return err
		}
		if err := r.pause(ctx, schema.NodeTypeTask); err != nil {
			return err
		}
		if err := r.transition(ctx, entry, schema.StatusCompleted); err != nil {
			return err
		}
		entry.Message += " - Task completed"
		return nil

	case *schema.ApprovalData:
		if d.AutoApproveThreshold > 0 {
			// Status intentionally stays executing.
			entry.Message = "Auto-approved by " + d.Role() +
				" (threshold: " + strconv.Itoa(d.AutoApproveThreshold) + ")"
			return nil
		}
		entry.Message = "Approval required from " + d.Role()
		if err := r.transition(ctx, entry, schema.StatusPending); err != nil {
			return err
		}
		if err := r.pause(ctx, schema.NodeTypeApproval); err != nil {
			return err
		}
		if err := r.transition(ctx, entry, schema.StatusApproved); err != nil {
			return err
		}
		entry.Message += " - Approved"
		return nil

	case *schema.AutomatedData:
		action, found := r.sim.actions.Lookup(d.ActionID)
		if d.ActionID == "" || !found {
			entry.Message = "No action selected"
			return r.transition(ctx, entry, schema.StatusSkipped)
		}
		entry.Message = "Executing: " + action.Label
		if err := r.pause(ctx, schema.NodeTypeAutomated); err != nil {
			return err
		}
		if err := r.transition(ctx, entry, schema.StatusCompleted); err != nil {
			return err
		}
		entry.Message += " - Action completed successfully"
		return nil

	case *schema.EndData:
		entry.Message = d.EndMessage
		if entry.Message == "" {
			entry.Message = "Workflow completed"
		}
		return r.transition(ctx, entry, schema.StatusCompleted)

	default:
		// A node without data keeps its initial status and an empty message.
		return nil
	}
}

func (r *run) transition(ctx context.Context, entry *schema.LogEntry, to schema.Status) error {
	return r.sim.fsm.Transition(ctx, r.id, entry, to)
}

func (r *run) pause(ctx context.Context, t schema.NodeType) error {
	d := r.sim.delays.For(t)
	r.sim.logger.DebugContext(ctx, "simulated delay", "node_type", t, "delay", d)
	return r.sim.pacer.Pause(ctx, d)
}

func (r *run) append(ctx context.Context, entry schema.LogEntry) {
	r.log = append(r.log, entry)
	r.sim.metrics.EntryLogged(string(entry.NodeType), string(entry.Status))
	r.sim.publish(ctx, streaming.StreamEvent{RunID: r.id, NodeID: entry.NodeID,
		EventType: schema.EventNodeLogged, Payload: entry})
}

// deadEnd records the synthesized error entry for a node with no outgoing
// edge. The entry takes the next step number and carries no title.
func (r *run) deadEnd(ctx context.Context, n schema.Node) {
	entry := schema.LogEntry{
		Step:      r.step + 1,
		Timestamp: r.sim.now(),
		NodeID:    n.ID,
		NodeType:  n.Type(),
		Status:    schema.StatusError,
		Message:   schema.MsgNoOutgoing,
	}
	r.log = append(r.log, entry)
	r.sim.metrics.EntryLogged(string(entry.NodeType), string(entry.Status))
	r.sim.logger.InfoContext(ctx, "dead end reached")
	r.sim.publish(ctx, streaming.StreamEvent{RunID: r.id, NodeID: n.ID,
		EventType: schema.EventDeadEnd, Payload: entry})
}

// abort ends a walk that was cancelled or whose transition was vetoed.
// The log holds every entry completed so far.
func (r *run) abort(ctx context.Context, err error) (*schema.SimulationResult, string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &schema.SimulationResult{Success: false, Error: schema.MsgCancelled, Log: r.log},
			metrics.OutcomeCancelled
	}
	r.sim.logger.ErrorContext(ctx, "simulation aborted", "error", err)
	return &schema.SimulationResult{Success: false, Error: err.Error(), Log: r.log},
		metrics.OutcomeAborted
}

// summarize counts completed and approved entries against every node in the
// graph, visited or not. The execution time is cosmetic.
func summarize(g *schema.Graph, log []schema.LogEntry) *schema.Summary {
	completed := 0
	for _, e := range log {
		if e.Status.Counted() {
			completed++
		}
	}

	status := schema.SummaryPartial
	if completed == len(g.Nodes) {
		status = schema.SummarySuccess
	}

	return &schema.Summary{
		TotalNodes:     len(g.Nodes),
		CompletedNodes: completed,
		ExecutionTime:  strconv.FormatFloat(float64(len(log))*0.5, 'f', -1, 64) + "s (simulated)",
		Status:         status,
	}
}
