package main

import (
	"github.com/spf13/cobra"

	"github.com/rendis/flowsim/internal/engine"
	"github.com/rendis/flowsim/pkg/mcp"
)

func newMCPCmd(c *cli) *cobra.Command {
	var realtime bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the flowsim tools over MCP on stdio",
		Long: `Exposes flowsim.validate, flowsim.simulate, flowsim.actions and flowsim.diagram
to MCP clients over stdin/stdout. Logs go to stderr. Clients that pass a
client_id are notified when runs finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var pacer engine.Pacer
			if realtime {
				pacer = engine.SleepPacer{}
			}
			sh := newShared()
			st, err := c.stack(cmd, sh, pacer)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Simulator: st.simulator,
				Validator: st.validator,
				Loader:    st.loader,
				Checker:   st.checker,
				Catalog:   st.catalog,
				Hub:       sh.hub,
				Logger:    st.logger,
				Version:   version,
			})
			st.logger.Info("mcp server ready", "version", version)
			return srv.Serve(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&realtime, "realtime", false, "honour the configured per-node delays")
	cmd.Flags().String("edge-strategy", "", "outgoing edge selection: first or priority")
	return cmd
}
