package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/flowsim/internal/diagram"
	"github.com/rendis/flowsim/pkg/schema"
)

func newDiagramCmd(c *cli) *cobra.Command {
	var (
		format   string
		outPath  string
		simulate bool
	)
	cmd := &cobra.Command{
		Use:   "diagram <workflow>",
		Short: "Draw a workflow as Mermaid, ASCII, PNG or SVG",
		Long: `Draws the workflow graph. With --simulate the graph is dry-run first and
every visited node is colored by the status it ended in.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := diagram.ParseFormat(format)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if kind == diagram.FormatPNG && outPath == "" && isTerminal(w) {
				return schema.NewError(schema.ErrCodeValidation, "refusing to write PNG to a terminal; use --out")
			}

			st, err := c.stack(cmd, nil, nil)
			if err != nil {
				return err
			}
			g, err := st.loader.LoadFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var result *schema.SimulationResult
			if simulate {
				result = st.simulator.Simulate(ctx, g)
			}
			out, err := diagram.Render(ctx, diagram.Build(g, result), kind, st.cfg.ASCIIBinDir)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, out, 0o644); err != nil {
					return fmt.Errorf("write diagram: %w", err)
				}
				st.logger.Info("diagram written", "path", outPath, "format", string(kind))
				return nil
			}
			_, err = w.Write(out)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", string(diagram.FormatMermaid), "mermaid, ascii, image (PNG) or svg")
	f.StringVar(&outPath, "out", "", "write to this file instead of stdout")
	f.BoolVar(&simulate, "simulate", false, "overlay the statuses of a dry run")
	f.String("ascii-bin-dir", "", "directory holding the mermaid-ascii binary")
	f.String("edge-strategy", "", "outgoing edge selection for --simulate: first or priority")
	return cmd
}
