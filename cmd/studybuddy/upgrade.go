package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpgradeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "upgrade [starter|basic|pro]",
		Short:     "Ask your institution to upgrade your plan (default pro)",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"starter", "basic", "pro"},
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := ""
			if len(args) == 1 {
				plan = args[0]
			}
			if err := a.client.RequestUpgrade(cmd.Context(), plan); err != nil {
				return err
			}
			if plan == "" {
				plan = "pro"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Upgrade request for %s sent. Waiting for approval.\n", plan)
			return nil
		},
	}
}
