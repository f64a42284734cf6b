package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/flowsim/internal/validation"
	"github.com/rendis/flowsim/pkg/schema"
)

// validateReport is the verdict on one workflow file.
type validateReport struct {
	File     string   `json:"file"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

func newValidateCmd(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "validate <workflow>...",
		Short: "Check workflow graphs for structural violations",
		Long: `Checks each workflow file (JSON or YAML) against the graph rules: exactly one
start node, at least one end node, and no disconnected intermediate nodes.
Reachability and unknown actions are reported as warnings.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			st, err := c.stack(cmd, nil, nil)
			if err != nil {
				return err
			}

			reports := make([]validateReport, 0, len(args))
			invalid := 0
			for _, path := range args {
				rep := validateFile(st, path)
				if !rep.Valid {
					invalid++
				}
				reports = append(reports, rep)
			}

			w := cmd.OutOrStdout()
			switch output {
			case outputJSON:
				if err := printJSON(w, reports); err != nil {
					return err
				}
			case outputMarkdown:
				var md strings.Builder
				printValidateMarkdown(&md, reports)
				if err := writeMarkdown(w, md.String()); err != nil {
					return err
				}
			default:
				printValidateText(w, newPainter(w), reports)
			}

			if invalid > 0 {
				return schema.NewErrorf(schema.ErrCodeValidation, "%d of %d workflows invalid", invalid, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or markdown")
	return cmd
}

func validateFile(st *stack, path string) validateReport {
	rep := validateReport{File: path, Errors: []string{}}
	g, err := st.loader.LoadFile(path)
	if err != nil {
		rep.Errors = append(rep.Errors, err.Error())
		return rep
	}
	if errs := validation.Validate(g); errs != nil {
		rep.Errors = errs
	}
	for _, w := range st.validator.Validate(g).Warnings {
		rep.Warnings = append(rep.Warnings, w.Message)
	}
	rep.Valid = len(rep.Errors) == 0
	return rep
}

func printValidateText(w io.Writer, p *painter, reports []validateReport) {
	for _, rep := range reports {
		if rep.Valid {
			fmt.Fprintf(w, "%s: %s\n", rep.File, p.pass(true))
		} else {
			fmt.Fprintf(w, "%s: %s (%s)\n", rep.File, p.pass(false), plural(len(rep.Errors), "violation"))
		}
		for _, e := range rep.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		for _, warn := range rep.Warnings {
			fmt.Fprintf(w, "  %s %s\n", p.warn("warning:"), warn)
		}
	}
}

func printValidateMarkdown(w io.Writer, reports []validateReport) {
	for _, rep := range reports {
		verdict := "valid"
		if !rep.Valid {
			verdict = "invalid"
		}
		fmt.Fprintf(w, "## %s\n\n**%s**\n\n", rep.File, verdict)
		for _, e := range rep.Errors {
			fmt.Fprintf(w, "- %s\n", e)
		}
		for _, warn := range rep.Warnings {
			fmt.Fprintf(w, "- _warning:_ %s\n", warn)
		}
		fmt.Fprintln(w)
	}
}
