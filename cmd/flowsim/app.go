package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rendis/flowsim/internal/actions"
	"github.com/rendis/flowsim/internal/engine"
	"github.com/rendis/flowsim/internal/expressions"
	"github.com/rendis/flowsim/internal/loader"
	"github.com/rendis/flowsim/internal/logging"
	"github.com/rendis/flowsim/internal/metrics"
	"github.com/rendis/flowsim/internal/streaming"
	"github.com/rendis/flowsim/internal/validation"
	"github.com/rendis/flowsim/pkg/schema"
)

// shared holds what outlives a config reload: subscribers stay attached to
// the hub and counters keep accumulating.
type shared struct {
	hub      *streaming.MemoryHub
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func newShared() *shared {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &shared{
		hub:      streaming.NewMemoryHub(),
		registry: reg,
		metrics:  metrics.New(reg),
	}
}

// stack is the set of components built from one Config.
type stack struct {
	cfg       Config
	logger    *slog.Logger
	catalog   actions.Catalog
	loader    *loader.Loader
	checker   *expressions.Checker
	validator *validation.GraphValidator
	simulator *engine.Simulator
}

// buildStack wires the components for cfg. A nil pacer skips the delays;
// extra options are applied to the simulator last.
func buildStack(cfg Config, rt *shared, pacer engine.Pacer, logOut io.Writer, extra ...engine.Option) (*stack, error) {
	logger, err := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	var catalog actions.Catalog = actions.Builtin()
	if cfg.CatalogPath != "" {
		reg, err := actions.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load action catalog: %w", err)
		}
		catalog = reg
	}
	logger.Debug("action catalog loaded", "actions", catalog.Count(), "path", cfg.CatalogPath)

	strategy, err := engine.ParseEdgeStrategy(cfg.EdgeStrategy)
	if err != nil {
		return nil, err
	}

	ld, err := loader.New()
	if err != nil {
		return nil, err
	}
	checker, err := expressions.NewChecker()
	if err != nil {
		return nil, err
	}

	if pacer == nil {
		pacer = engine.InstantPacer{}
	}
	opts := []engine.Option{
		engine.WithPacer(pacer),
		engine.WithDelays(cfg.Delays),
		engine.WithEdgeStrategy(strategy),
		engine.WithLogger(logger),
	}
	if rt != nil {
		opts = append(opts, engine.WithHub(rt.hub), engine.WithMetrics(rt.metrics))
	}
	opts = append(opts, extra...)

	return &stack{
		cfg:       cfg,
		logger:    logger,
		catalog:   catalog,
		loader:    ld,
		checker:   checker,
		validator: validation.NewGraphValidator(catalog),
		simulator: engine.NewSimulator(catalog, opts...),
	}, nil
}

// simulatorRef lets long-lived consumers such as the scheduler follow a
// simulator swapped in by a reload.
type simulatorRef struct {
	p atomic.Pointer[engine.Simulator]
}

func newSimulatorRef(sim *engine.Simulator) *simulatorRef {
	r := &simulatorRef{}
	r.p.Store(sim)
	return r
}

func (r *simulatorRef) Store(sim *engine.Simulator) { r.p.Store(sim) }

func (r *simulatorRef) Simulate(ctx context.Context, g *schema.Graph) *schema.SimulationResult {
	return r.p.Load().Simulate(ctx, g)
}
