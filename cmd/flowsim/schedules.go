package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/flowsim/internal/engine"
	"github.com/rendis/flowsim/internal/expressions"
	"github.com/rendis/flowsim/internal/scheduler"
	"github.com/rendis/flowsim/pkg/schema"
)

func newSchedulesCmd(c *cli) *cobra.Command {
	var (
		asJSON bool
		run    string
	)
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "List the scheduled workflow runs from the settings file",
		Long: `Lists every job under "schedules" in the settings file with the time it
would next run. --run executes one job immediately, the way serve would.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := c.stack(cmd, nil, engine.InstantPacer{})
			if err != nil {
				return err
			}
			sched := scheduler.New(st.loader, st.simulator, st.logger, scheduler.WithChecker(st.checker))
			w := cmd.OutOrStdout()

			if run != "" {
				for _, job := range st.cfg.Schedules {
					if err := sched.Add(job); err != nil {
						return err
					}
				}
				report, err := sched.RunNow(cmd.Context(), run)
				if err != nil {
					return err
				}
				if err := printJSON(w, report); err != nil {
					return err
				}
				if !report.Success {
					return schema.NewErrorf(schema.ErrCodeExpectation, "scheduled run %q did not pass: %s", run, report.Error)
				}
				if err := expressions.FailureError(report.Expectations); err != nil {
					return schema.NewErrorf(schema.ErrCodeExpectation, "scheduled run %q did not pass", run).WithCause(err)
				}
				return nil
			}

			now := time.Now().UTC()
			statuses := make([]scheduler.JobStatus, 0, len(st.cfg.Schedules))
			for _, job := range st.cfg.Schedules {
				next, err := sched.CalculateNextRun(job.Spec, now)
				if err != nil {
					return schema.NewErrorf(schema.ErrCodeValidation, "job %q: %v", job.Name, err).WithCause(err)
				}
				statuses = append(statuses, scheduler.JobStatus{Job: job, NextRunAt: next})
			}

			if asJSON {
				return printJSON(w, statuses)
			}
			if len(statuses) == 0 {
				fmt.Fprintln(w, "no schedules configured")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSPEC\tNEXT RUN\tPATH")
			for _, s := range statuses {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Spec, s.NextRunAt.Format(time.RFC3339), s.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().StringVar(&run, "run", "", "run the named job now and print its report")
	return cmd
}
