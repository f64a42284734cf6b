package engine

import (
	"context"
	"time"

	"github.com/rendis/flowsim/pkg/schema"
)

// Delays are the simulated processing times per node type.
type Delays struct {
	Task      time.Duration `json:"task" yaml:"task"`
	Approval  time.Duration `json:"approval" yaml:"approval"`
	Automated time.Duration `json:"automated" yaml:"automated"`
}

// DefaultDelays returns the stock per-type delays.
func DefaultDelays() Delays {
	return Delays{
		Task:      200 * time.Millisecond,
		Approval:  300 * time.Millisecond,
		Automated: 400 * time.Millisecond,
	}
}

// For returns the delay for a node type. Types without a delay return 0.
func (d Delays) For(t schema.NodeType) time.Duration {
	switch t {
	case schema.NodeTypeTask:
		return d.Task
	case schema.NodeTypeApproval:
		return d.Approval
	case schema.NodeTypeAutomated:
		return d.Automated
	default:
		return 0
	}
}

// Pacer suspends a run for a simulated delay. Pause checks ctx before
// waiting and returns ctx.Err() if the run was cancelled.
type Pacer interface {
	Pause(ctx context.Context, d time.Duration) error
}

// SleepPacer waits on a timer.
type SleepPacer struct{}

func (SleepPacer) Pause(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InstantPacer skips every delay but still honours cancellation.
type InstantPacer struct{}

func (InstantPacer) Pause(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
