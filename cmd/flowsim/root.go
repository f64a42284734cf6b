package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rendis/flowsim/internal/engine"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	getenv     func(string) string
}

func newRootCmd() *cobra.Command {
	return newRoot(&cli{getenv: os.Getenv})
}

func newRoot(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "flowsim",
		Short: "Validate and dry-run HR workflow graphs",
		Long: `flowsim checks workflow graphs built in the workflow designer and walks them
from the start node, producing the execution log a real run would produce
without performing any side effects.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", settingsPath(), "settings file")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("catalog", "", "YAML action catalog replacing the builtin actions")

	root.AddCommand(
		newValidateCmd(c),
		newSimulateCmd(c),
		newDiagramCmd(c),
		newActionsCmd(c),
		newSchedulesCmd(c),
		newServeCmd(c),
		newMCPCmd(c),
		newVersionCmd(),
	)
	return root
}

// resolve merges the settings file, the environment and any flag the user
// set on cmd, then validates the result.
func (c *cli) resolve(cmd *cobra.Command) (Config, error) {
	cfg, err := loadConfig(c.configPath, c.getenv)
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, cmd.Flags())
	return cfg, cfg.check()
}

// stack resolves the configuration for cmd and builds its components,
// logging to cmd's stderr.
func (c *cli) stack(cmd *cobra.Command, rt *shared, pacer engine.Pacer, extra ...engine.Option) (*stack, error) {
	cfg, err := c.resolve(cmd)
	if err != nil {
		return nil, err
	}
	return buildStack(cfg, rt, pacer, logWriter(cmd), extra...)
}

func logWriter(cmd *cobra.Command) io.Writer {
	return cmd.ErrOrStderr()
}

// applyFlags copies changed flags onto cfg. Flags a command does not define
// are ignored.
func applyFlags(cfg *Config, flags *pflag.FlagSet) {
	str := func(name string, dst *string) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("catalog", &cfg.CatalogPath)
	str("listen-addr", &cfg.ListenAddr)
	str("edge-strategy", &cfg.EdgeStrategy)
	str("ascii-bin-dir", &cfg.ASCIIBinDir)

	if f := flags.Lookup("pool-size"); f != nil && f.Changed {
		if n, err := flags.GetInt("pool-size"); err == nil {
			cfg.PoolSize = n
		}
	}
}
