package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-12s %-16s %s\n", "NAME", "FAMILY", "POOLED")
			for _, s := range opts.registry.List() {
				fmt.Fprintf(out, "%-12s %-16s %t\n", s.Name(), s.Family(), s.Pooled())
			}
			return nil
		},
	}
}
