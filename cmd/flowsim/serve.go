package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/flowsim/internal/engine"
	"github.com/rendis/flowsim/internal/panel"
	"github.com/rendis/flowsim/internal/scheduler"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, event streams, metrics and scheduled runs",
		Long: `Starts the HTTP API with the configured per-node delays. Runs stream over
server-sent events under /sse/runs. Workflows listed under "schedules" in the
settings file are re-simulated on their cron schedules.

SIGHUP reloads the settings file. Schedule changes are applied to the
running scheduler. A listen_addr change needs a restart; everything else
takes effect for the next request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDaemon(c, cmd)
			if err != nil {
				return err
			}
			return d.run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("listen-addr", "", "TCP listen address (default :4100)")
	f.Int("pool-size", 0, "maximum concurrent simulations per batch request")
	f.String("edge-strategy", "", "outgoing edge selection: first or priority")
	f.String("ascii-bin-dir", "", "directory holding the mermaid-ascii binary")
	return cmd
}

// daemon is a running serve command.
type daemon struct {
	c      *cli
	cmd    *cobra.Command
	logOut io.Writer

	shared  *shared
	current *stack
	ref     *simulatorRef
	sched   *scheduler.Scheduler
	swapper *handlerSwapper
}

func newDaemon(c *cli, cmd *cobra.Command) (*daemon, error) {
	sh := newShared()
	st, err := c.stack(cmd, sh, engine.SleepPacer{})
	if err != nil {
		return nil, err
	}

	ref := newSimulatorRef(st.simulator)
	sched := scheduler.New(st.loader, ref, st.logger, scheduler.WithChecker(st.checker))
	for _, job := range st.cfg.Schedules {
		if err := sched.Add(job); err != nil {
			return nil, err
		}
	}

	d := &daemon{
		c:       c,
		cmd:     cmd,
		logOut:  logWriter(cmd),
		shared:  sh,
		current: st,
		ref:     ref,
		sched:   sched,
	}
	d.swapper = newHandlerSwapper(d.handler(st))
	return d, nil
}

func (d *daemon) handler(st *stack) *panelHandler {
	srv := panel.NewServer(panel.Deps{
		Simulator:   st.simulator,
		Validator:   st.validator,
		Loader:      st.loader,
		Checker:     st.checker,
		Catalog:     st.catalog,
		Hub:         d.shared.hub,
		Schedules:   d.sched,
		Gatherer:    d.shared.registry,
		Logger:      st.logger,
		ASCIIBinDir: st.cfg.ASCIIBinDir,
		PoolSize:    st.cfg.PoolSize,
	})
	return &panelHandler{Handler: srv.Handler(), cfg: st.cfg}
}

func (d *daemon) run(ctx context.Context) error {
	logger := d.current.logger

	if err := d.sched.Start(ctx); err != nil {
		return err
	}
	defer d.sched.Stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("SIGHUP received, reloading settings")
				d.reload()
			}
		}
	}()

	return panel.ListenAndServe(ctx, d.current.cfg.ListenAddr, d.swapper, logger)
}

// reload re-reads the configuration and swaps in a handler built from it.
// Fields that need a restart keep their running values.
func (d *daemon) reload() {
	logger := d.current.logger
	cfg, err := d.c.resolve(d.cmd)
	if err != nil {
		logger.Error("reload failed, keeping current settings", "error", err)
		return
	}
	d.apply(cfg)
}

func (d *daemon) apply(cfg Config) {
	logger := d.current.logger
	old := d.current.cfg

	diff := diffConfigs(old, cfg)
	for _, field := range diff.RestartNeeded {
		logger.Warn("setting change needs a restart", "field", field)
	}
	cfg.ListenAddr = old.ListenAddr

	if diff.SchedulesChanged {
		d.syncSchedules(old.Schedules, cfg.Schedules)
		d.current.cfg.Schedules = cfg.Schedules
	}

	if !diff.HandlerChanged {
		if !diff.SchedulesChanged {
			logger.Info("settings reloaded, nothing to apply")
		}
		return
	}

	st, err := buildStack(cfg, d.shared, engine.SleepPacer{}, d.logOut)
	if err != nil {
		logger.Error("reload failed, keeping current settings", "error", err)
		return
	}
	d.current = st
	d.ref.Store(st.simulator)
	d.swapper.Swap(d.handler(st))
	st.logger.Info("settings reloaded")
}

// syncSchedules removes jobs that disappeared or changed and adds the new
// versions. A job that fails to parse is logged and left out.
func (d *daemon) syncSchedules(old, next []scheduler.Job) {
	logger := d.current.logger
	kept := make(map[string]bool, len(next))
	for _, job := range next {
		for _, prev := range old {
			if sameJob(prev, job) {
				kept[job.Name] = true
			}
		}
	}

	for _, prev := range old {
		if kept[prev.Name] {
			continue
		}
		if err := d.sched.Remove(prev.Name); err != nil {
			logger.Warn("unschedule failed", "job", prev.Name, "error", err)
		}
	}
	for _, job := range next {
		if kept[job.Name] {
			continue
		}
		if err := d.sched.Add(job); err != nil {
			logger.Error("schedule failed", "job", job.Name, "error", err)
		}
	}
	logger.Info("schedules reloaded", "jobs", len(d.sched.Jobs()))
}
