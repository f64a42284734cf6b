package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rendis/flowsim/internal/engine"
	"github.com/rendis/flowsim/internal/expressions"
	"github.com/rendis/flowsim/pkg/schema"
)

// simulateReport is one simulated workflow with its checks.
type simulateReport struct {
	File string `json:"file"`
	*schema.SimulationResult
	Expectations []expressions.Outcome `json:"expectations,omitempty"`
	Query        []any                 `json:"query,omitempty"`
}

func (r simulateReport) passed() bool {
	return r.failure() == nil
}

// failure explains why the report did not pass, or returns nil.
func (r simulateReport) failure() error {
	if !r.Success {
		return errors.New(r.Error)
	}
	return expressions.FailureError(r.Expectations)
}

func newSimulateCmd(c *cli) *cobra.Command {
	var (
		output     string
		expects    []string
		expectFile string
		query      string
		realtime   bool
		halts      []string
	)
	cmd := &cobra.Command{
		Use:   "simulate <workflow>...",
		Short: "Dry-run workflow graphs and print the execution log",
		Long: `Walks each workflow from its start node and prints the execution log.
Several files are simulated concurrently, bounded by --pool-size.

Expectations gate the run: --expect takes an expression, optionally prefixed
with its engine ("cel:", "expr:" or "jq:"; cel by default). cel and expr see
the report as "result" and the graph as "graph"; jq runs over the report.
The command fails when a run fails or an expectation does not hold.`,
		Example: `  flowsim simulate onboarding.yaml
  flowsim simulate onboarding.yaml --expect 'result.summary.completedNodes == 5'
  flowsim simulate onboarding.yaml --query '[.log[] | select(.status == "error")]'
  flowsim simulate onboarding.yaml --halt-before approval`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			exps, err := parseExpectations(expects)
			if err != nil {
				return err
			}
			if expectFile != "" {
				fromFile, err := loadExpectations(expectFile)
				if err != nil {
					return err
				}
				exps = append(exps, fromFile...)
			}

			haltTypes, err := parseNodeTypes(halts)
			if err != nil {
				return err
			}

			var pacer engine.Pacer
			if realtime {
				pacer = engine.SleepPacer{}
			}
			st, err := c.stack(cmd, nil, pacer, engine.WithHaltBefore(haltTypes...))
			if err != nil {
				return err
			}

			graphs := make([]*schema.Graph, len(args))
			for i, path := range args {
				if graphs[i], err = st.loader.LoadFile(path); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}

			ctx := cmd.Context()
			results := engine.RunBatch(ctx, st.simulator, graphs, st.cfg.PoolSize)

			reports := make([]simulateReport, len(results))
			failed := 0
			for i, res := range results {
				rep := simulateReport{File: args[i], SimulationResult: res}
				if query != "" {
					if rep.Query, err = st.checker.Query(ctx, query, res); err != nil {
						return err
					}
				}
				if len(exps) > 0 {
					rep.Expectations = st.checker.Check(ctx, res, graphs[i], exps)
				}
				if !rep.passed() {
					failed++
				}
				reports[i] = rep
			}

			w := cmd.OutOrStdout()
			switch output {
			case outputJSON:
				if err := printJSON(w, reports); err != nil {
					return err
				}
			case outputMarkdown:
				var md strings.Builder
				for _, rep := range reports {
					printRunMarkdown(&md, rep)
				}
				if err := writeMarkdown(w, md.String()); err != nil {
					return err
				}
			default:
				p := newPainter(w)
				for _, rep := range reports {
					printRunText(w, p, rep)
				}
			}

			if err := ctx.Err(); err != nil {
				return schema.NewError(schema.ErrCodeCancelled, "simulation interrupted").WithCause(err)
			}
			if failed > 0 {
				causes := make([]error, 0, failed)
				for _, rep := range reports {
					if err := rep.failure(); err != nil {
						causes = append(causes, fmt.Errorf("%s: %w", rep.File, err))
					}
				}
				return schema.NewErrorf(schema.ErrCodeExpectation, "%d of %d simulations did not pass", failed, len(reports)).
					WithCause(errors.Join(causes...))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", outputText, "output format: text, json or markdown")
	f.StringArrayVarP(&expects, "expect", "e", nil, "expectation that must hold, [engine:]expression (repeatable)")
	f.StringVar(&expectFile, "expect-file", "", "YAML list of {engine, expression} expectations")
	f.StringVarP(&query, "query", "q", "", "jq program run over each report")
	f.BoolVar(&realtime, "realtime", false, "honour the configured per-node delays")
	f.StringSliceVar(&halts, "halt-before", nil, "stop each run at the first node of these types")
	f.String("edge-strategy", "", "outgoing edge selection: first or priority")
	f.Int("pool-size", 0, "maximum concurrent simulations")
	return cmd
}

// parseExpectations reads [engine:]expression flags.
func parseExpectations(raw []string) ([]expressions.Expectation, error) {
	exps := make([]expressions.Expectation, 0, len(raw))
	for _, r := range raw {
		exp := expressions.Expectation{Engine: expressions.EngineCEL, Expression: r}
		if name, rest, ok := strings.Cut(r, ":"); ok {
			switch name {
			case expressions.EngineCEL, expressions.EngineExpr, expressions.EngineJQ:
				exp = expressions.Expectation{Engine: name, Expression: strings.TrimSpace(rest)}
			}
		}
		if strings.TrimSpace(exp.Expression) == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "empty expectation %q", r)
		}
		exps = append(exps, exp)
	}
	return exps, nil
}

func loadExpectations(path string) ([]expressions.Expectation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read expectations: %w", err)
	}
	var exps []expressions.Expectation
	if err := yaml.Unmarshal(data, &exps); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeDecode, "invalid expectations file %s", path).WithCause(err)
	}
	return exps, nil
}

func printRunText(w io.Writer, p *painter, rep simulateReport) {
	verdict := p.pass(rep.passed())
	if rep.RunID != "" {
		fmt.Fprintf(w, "%s  run %s  %s\n", rep.File, rep.RunID, verdict)
	} else {
		fmt.Fprintf(w, "%s  %s\n", rep.File, verdict)
	}
	if rep.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", rep.Error)
	}
	for _, e := range rep.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}

	if len(rep.Log) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  STEP\tSTATUS\tTYPE\tNODE\tMESSAGE")
		for _, e := range rep.Log {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n", e.Step, p.status(e.Status), e.NodeType, e.NodeTitle, e.Message)
		}
		tw.Flush()
	}

	if s := rep.Summary; s != nil {
		fmt.Fprintf(w, "  summary: %d/%d nodes completed in %s (%s)\n", s.CompletedNodes, s.TotalNodes, s.ExecutionTime, s.Status)
	}
	for _, o := range rep.Expectations {
		line := fmt.Sprintf("  %s  %s: %s", p.pass(o.Passed), o.Engine, o.Expression)
		if o.Error != "" {
			line += " (" + o.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
	for _, v := range rep.Query {
		data, err := json.Marshal(v)
		if err != nil {
			data = []byte(fmt.Sprint(v))
		}
		fmt.Fprintf(w, "  %s\n", data)
	}
	fmt.Fprintln(w)
}

func printRunMarkdown(w io.Writer, rep simulateReport) {
	fmt.Fprintf(w, "## %s\n\n", rep.File)
	verdict := "passed"
	if !rep.passed() {
		verdict = "failed"
	}
	if rep.RunID != "" {
		fmt.Fprintf(w, "Run `%s` **%s**\n\n", rep.RunID, verdict)
	} else {
		fmt.Fprintf(w, "**%s**\n\n", verdict)
	}
	if rep.Error != "" {
		fmt.Fprintf(w, "> %s\n\n", rep.Error)
	}
	for _, e := range rep.Errors {
		fmt.Fprintf(w, "- %s\n", e)
	}

	if len(rep.Log) > 0 {
		fmt.Fprintln(w, "| Step | Status | Type | Node | Message |")
		fmt.Fprintln(w, "|---:|---|---|---|---|")
		for _, e := range rep.Log {
			fmt.Fprintf(w, "| %d | %s | %s | %s | %s |\n", e.Step, e.Status, e.NodeType, mdEscape(e.NodeTitle), mdEscape(e.Message))
		}
		fmt.Fprintln(w)
	}
	if s := rep.Summary; s != nil {
		fmt.Fprintf(w, "%d of %d nodes completed in %s: **%s**\n\n", s.CompletedNodes, s.TotalNodes, s.ExecutionTime, s.Status)
	}
	for _, o := range rep.Expectations {
		mark := "x"
		if !o.Passed {
			mark = " "
		}
		fmt.Fprintf(w, "- [%s] `%s` (%s)\n", mark, o.Expression, o.Engine)
	}
	if len(rep.Expectations) > 0 {
		fmt.Fprintln(w)
	}
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// parseNodeTypes checks names against the known node types.
func parseNodeTypes(names []string) ([]schema.NodeType, error) {
	types := make([]schema.NodeType, 0, len(names))
	for _, name := range names {
		t := schema.NodeType(strings.TrimSpace(name))
		if !t.Valid() {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown node type %q, want one of %v", name, schema.NodeTypes)
		}
		types = append(types, t)
	}
	return types, nil
}
