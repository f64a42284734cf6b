package engine

import (
	"context"

	"github.com/rendis/flowsim/pkg/schema"
)

// RunBatch simulates independent graphs concurrently, at most poolSize at a
// time. Results are index-aligned with graphs. A graph that could not be
// scheduled because ctx ended gets a cancelled result.
func RunBatch(ctx context.Context, sim *Simulator, graphs []*schema.Graph, poolSize int) []*schema.SimulationResult {
	results := make([]*schema.SimulationResult, len(graphs))
	pool := NewWorkerPool(poolSize)
	defer pool.Shutdown()

	for i, g := range graphs {
		err := pool.Submit(ctx, func(ctx context.Context) error {
			results[i] = sim.Simulate(ctx, g)
			return nil
		})
		if err != nil {
			results[i] = &schema.SimulationResult{
				Success: false,
				Error:   schema.MsgCancelled,
				Log:     []schema.LogEntry{},
			}
		}
	}

	_ = pool.Wait()
	return results
}
