package panel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rendis/flowsim/internal/actions"
	"github.com/rendis/flowsim/internal/engine"
	"github.com/rendis/flowsim/internal/expressions"
	"github.com/rendis/flowsim/internal/loader"
	"github.com/rendis/flowsim/internal/scheduler"
	"github.com/rendis/flowsim/internal/streaming"
	"github.com/rendis/flowsim/internal/validation"
)

// Deps holds the dependencies for the HTTP API.
type Deps struct {
	Simulator *engine.Simulator
	Validator *validation.GraphValidator
	Loader    *loader.Loader
	Checker   *expressions.Checker
	Catalog   actions.Catalog
	Hub       streaming.EventHub
	// Schedules is optional; without it the schedule routes are not mounted.
	Schedules Schedules
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	// ASCIIBinDir optionally holds a mermaid-ascii binary.
	ASCIIBinDir string
	// PoolSize bounds concurrent simulations in batch requests.
	PoolSize int
	// MaxBodyBytes caps API request bodies. Default 1 MiB.
	MaxBodyBytes int64
}

// Schedules is the slice of *scheduler.Scheduler the API exposes.
type Schedules interface {
	Jobs() []scheduler.JobStatus
	RunNow(ctx context.Context, name string) (*scheduler.Report, error)
}

// Server serves the flowsim JSON API.
type Server struct {
	deps Deps
}

// NewServer creates a Server. Catalog, Hub and Logger get defaults when nil.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Catalog == nil {
		deps.Catalog = actions.Builtin()
	}
	if deps.Hub == nil {
		deps.Hub = streaming.NewMemoryHub()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.PoolSize <= 0 {
		deps.PoolSize = 4
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 1 << 20
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestSize(s.deps.MaxBodyBytes))
		r.Post("/validate", s.handleValidate)
		r.Post("/simulate", s.handleSimulate)
		r.Post("/simulate/batch", s.handleSimulateBatch)
		r.Get("/actions", s.handleListActions)
		r.Get("/actions/{id}", s.handleGetAction)
		r.Post("/diagram", s.handleDiagram)
		if s.deps.Schedules != nil {
			r.Get("/schedules", s.handleListSchedules)
			r.Post("/schedules/{name}/run", s.handleRunSchedule)
		}
	})

	// A run started with a client-chosen runId can be followed live by id.
	r.Get("/sse/runs", s.handleSSEGlobal)
	r.Get("/sse/runs/{id}", s.handleSSERun)

	return r
}

// ListenAndServe serves h on addr until ctx is done, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("http server stopped")
	return nil
}
