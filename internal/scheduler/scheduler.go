// Package scheduler re-simulates workflow files on cron schedules. Each run
// goes through the shared simulator, so results reach the event hub and the
// metrics like any other run.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowsim/internal/expressions"
	"github.com/rendis/flowsim/pkg/schema"
)

// GraphSource loads workflow files. Satisfied by *loader.Loader.
type GraphSource interface {
	LoadFile(path string) (*schema.Graph, error)
}

// Runner simulates graphs. Satisfied by *engine.Simulator.
type Runner interface {
	Simulate(ctx context.Context, g *schema.Graph) *schema.SimulationResult
}

// Job is a scheduled dry run of one workflow file.
type Job struct {
	Name   string                    `json:"name" yaml:"name" validate:"required"`
	Spec   string                    `json:"spec" yaml:"spec" validate:"required"`
	Path   string                    `json:"path" yaml:"path" validate:"required"`
	Expect []expressions.Expectation `json:"expect,omitempty" yaml:"expect"`
}

// JobStatus is a job with its last and next run.
type JobStatus struct {
	Job
	NextRunAt time.Time  `json:"next_run_at"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastRun   *Report    `json:"last_run,omitempty"`
}

// Report is the outcome of one scheduled run.
type Report struct {
	Job          string                `json:"job"`
	RunID        string                `json:"run_id,omitempty"`
	Success      bool                  `json:"success"`
	Error        string                `json:"error,omitempty"`
	Expectations []expressions.Outcome `json:"expectations,omitempty"`
}

// Passed reports whether the run succeeded and met every expectation.
func (r *Report) Passed() bool {
	return r.Success && len(expressions.Failed(r.Expectations)) == 0
}

type entry struct {
	job      Job
	schedule cron.Schedule
	next     time.Time
	last     *time.Time
	report   *Report
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithInterval sets how often due jobs are checked. Default one minute.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithChecker enables expectation checks on job results.
func WithChecker(c *expressions.Checker) Option {
	return func(s *Scheduler) { s.checker = c }
}

// Scheduler runs due jobs from an in-memory table.
type Scheduler struct {
	source   GraphSource
	runner   Runner
	checker  *expressions.Checker
	parser   cron.Parser
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	mu     sync.Mutex
	jobs   map[string]*entry
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job names currently executing (dedup)
}

// New creates a Scheduler.
func New(source GraphSource, runner Runner, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:   source,
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:   logger,
		now:      time.Now,
		interval: time.Minute,
		jobs:     make(map[string]*entry),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job. Names are unique.
func (s *Scheduler) Add(job Job) error {
	if strings.TrimSpace(job.Name) == "" {
		return schema.NewError(schema.ErrCodeValidation, "job name is required")
	}
	if job.Path == "" {
		return schema.NewErrorf(schema.ErrCodeValidation, "job %q has no workflow path", job.Name)
	}
	sched, err := s.parser.Parse(job.Spec)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "job %q: parse cron expression %q", job.Name, job.Spec).WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "job %q already scheduled", job.Name)
	}
	s.jobs[job.Name] = &entry{job: job, schedule: sched, next: sched.Next(s.now().UTC())}
	return nil
}

// Remove unregisters a job.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "job %q not scheduled", name)
	}
	delete(s.jobs, name)
	return nil
}

// Jobs returns every job ordered by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, JobStatus{Job: e.job, NextRunAt: e.next, LastRunAt: e.last, LastRun: e.report})
	}
	slices.SortFunc(out, func(a, b JobStatus) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.Jobs())))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every job whose next run is due.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()

	s.mu.Lock()
	var due []Job
	for _, e := range s.jobs {
		if !e.next.After(now) {
			due = append(due, e.job)
		}
	}
	s.mu.Unlock()
	slices.SortFunc(due, func(a, b Job) int { return strings.Compare(a.Name, b.Name) })

	for _, job := range due {
		if !s.tryAcquire(job.Name) {
			continue
		}
		report := s.execute(ctx, job)
		s.record(job.Name, now, report)
		s.releaseJob(job.Name)
	}
}

// RunNow runs a job immediately without moving its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*Report, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	var job Job
	if ok {
		job = e.job
	}
	s.mu.Unlock()
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "job %q not scheduled", name)
	}
	if !s.tryAcquire(name) {
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "job %q is already running", name)
	}
	defer s.releaseJob(name)
	return s.execute(ctx, job), nil
}

func (s *Scheduler) execute(ctx context.Context, job Job) *Report {
	log := s.logger.With(slog.String("job", job.Name), slog.String("path", job.Path))
	log.InfoContext(ctx, "running scheduled simulation")

	report := &Report{Job: job.Name}
	g, err := s.source.LoadFile(job.Path)
	if err != nil {
		report.Error = err.Error()
		log.ErrorContext(ctx, "scheduled workflow failed to load", slog.String("error", err.Error()))
		return report
	}

	result := s.runner.Simulate(ctx, g)
	report.RunID = result.RunID
	report.Success = result.Success
	report.Error = result.Error
	if s.checker != nil && len(job.Expect) > 0 {
		report.Expectations = s.checker.Check(ctx, result, g, job.Expect)
	}

	if report.Passed() {
		log.InfoContext(ctx, "scheduled simulation passed", slog.String("run_id", report.RunID))
	} else {
		log.WarnContext(ctx, "scheduled simulation failed",
			slog.String("run_id", report.RunID),
			slog.String("error", report.Error),
			slog.Int("failed_expectations", len(expressions.Failed(report.Expectations))),
		)
	}
	return report
}

func (s *Scheduler) record(name string, ranAt time.Time, report *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok {
		return // removed while running
	}
	e.last = &ranAt
	e.report = report
	e.next = e.schedule.Next(ranAt)
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *Scheduler) releaseJob(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.done = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
	return nil
}
