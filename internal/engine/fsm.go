package engine

import (
	"context"
	"slices"
	"sync"

	"github.com/rendis/flowsim/internal/streaming"
	"github.com/rendis/flowsim/pkg/schema"
)

// TransitionHook is called before a status transition. Returning an error
// vetoes it.
type TransitionHook func(from, to schema.Status) error

// EventPublisher is satisfied by streaming.EventHub; the FSM publishes every
// transition through it.
type EventPublisher interface {
	Publish(ctx context.Context, event streaming.StreamEvent) error
}

// TransitionRecorder counts transitions. *metrics.Metrics satisfies it.
type TransitionRecorder interface {
	Transition(nodeType, from, to string)
}

type transitionKey struct {
	nodeType schema.NodeType
	from, to schema.Status
}

// TransitionPayload is the payload of a node_transition stream event.
type TransitionPayload struct {
	Step     int             `json:"step"`
	NodeType schema.NodeType `json:"nodeType"`
	From     schema.Status   `json:"from"`
	To       schema.Status   `json:"to"`
}

// NodeFSM enforces the per-node-type status progression of log entries.
// Each node type has its own table; there is no shared progression.
type NodeFSM struct {
	mu        sync.RWMutex
	publisher EventPublisher
	recorder  TransitionRecorder
	before    map[transitionKey][]TransitionHook
}

// NewNodeFSM creates a NodeFSM. Both publisher and recorder may be nil.
func NewNodeFSM(publisher EventPublisher, recorder TransitionRecorder) *NodeFSM {
	return &NodeFSM{
		publisher: publisher,
		recorder:  recorder,
		before:    make(map[transitionKey][]TransitionHook),
	}
}

// OnBefore registers a hook called before a transition of the given node type.
func (f *NodeFSM) OnBefore(nodeType schema.NodeType, from, to schema.Status, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := transitionKey{nodeType, from, to}
	f.before[key] = append(f.before[key], hook)
}

// Transition moves entry to the given status. It rejects moves the node
// type's table does not allow, runs hooks, and publishes a node_transition
// event for runID.
func (f *NodeFSM) Transition(ctx context.Context, runID string, entry *schema.LogEntry, to schema.Status) error {
	from := entry.Status
	if !isValidNodeTransition(entry.NodeType, from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid %s transition: %s -> %s", entry.NodeType, from, to).
			WithNode(entry.NodeID).
			WithDetails(map[string]any{"run_id": runID, "from": string(from), "to": string(to)})
	}

	f.mu.RLock()
	key := transitionKey{entry.NodeType, from, to}
	before := f.before[key]
	f.mu.RUnlock()

	for _, hook := range before {
		if err := hook(from, to); err != nil {
			return err
		}
	}

	entry.Status = to

	if f.recorder != nil {
		f.recorder.Transition(string(entry.NodeType), string(from), string(to))
	}
	if f.publisher != nil {
		// Delivery is best effort; a cancelled context only drops the event.
		_ = f.publisher.Publish(ctx, streaming.StreamEvent{
			RunID:     runID,
			NodeID:    entry.NodeID,
			EventType: schema.EventNodeTransition,
			Payload: TransitionPayload{
				Step:     entry.Step,
				NodeType: entry.NodeType,
				From:     from,
				To:       to,
			},
		})
	}
	return nil
}

func isValidNodeTransition(nodeType schema.NodeType, from, to schema.Status) bool {
	table, ok := ValidNodeTransitions[nodeType]
	if !ok {
		return false
	}
	return slices.Contains(table[from], to)
}

// ValidNodeTransitions defines the allowed status transitions per node type.
// Every entry starts as executing. Auto-approved approvals never leave
// executing; dead-end entries are created directly in error.
var ValidNodeTransitions = map[schema.NodeType]map[schema.Status][]schema.Status{
	schema.NodeTypeStart: {
		schema.StatusExecuting: {schema.StatusCompleted},
	},
	schema.NodeTypeTask: {
		schema.StatusExecuting: {schema.StatusPending},
		schema.StatusPending:   {schema.StatusCompleted},
	},
	schema.NodeTypeApproval: {
		schema.StatusExecuting: {schema.StatusPending},
		schema.StatusPending:   {schema.StatusApproved},
	},
	schema.NodeTypeAutomated: {
		schema.StatusExecuting: {schema.StatusCompleted, schema.StatusSkipped},
	},
	schema.NodeTypeEnd: {
		schema.StatusExecuting: {schema.StatusCompleted},
	},
}
