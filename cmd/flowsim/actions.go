package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rendis/flowsim/internal/actions"
)

func newActionsCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "actions [id]",
		Short: "List the automation actions automated nodes can reference",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.stack(cmd, nil, nil)
			if err != nil {
				return err
			}

			list := st.catalog.List()
			if len(args) == 1 {
				a, err := st.catalog.Get(args[0])
				if err != nil {
					return err
				}
				list = []actions.Action{a}
			}

			w := cmd.OutOrStdout()
			if asJSON {
				if len(args) == 1 {
					return printJSON(w, list[0])
				}
				return printJSON(w, list)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tPARAMS\tDESCRIPTION")
			for _, a := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Label, strings.Join(a.Params, ", "), a.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
