package main

import (
	"fmt"

	"studybuddy/internal/model"

	"github.com/spf13/cobra"
)

func newUsageCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show today's chat and image usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sum, err := a.client.DailyUsage(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), sum)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (%s plan)\n", sum.UsageDate, sum.Plan)
			fmt.Fprintf(w, "chats: %d/%d\n", sum.ChatsUsed, sum.ChatLimit)
			fmt.Fprintf(w, "images: %d/%d\n", sum.ImagesUsed, sum.ImageLimit)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	cmd.AddCommand(newUsageCheckCmd(a))
	return cmd
}

func newUsageCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "check <chat|image>",
		Short:     "Consume one chat or image unit if today's limit allows it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.UsageChat), string(model.UsageImage)},
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseUsageType(args[0])
			if err != nil {
				return err
			}
			res, err := a.client.CheckUsage(cmd.Context(), t)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !res.Allowed {
				fmt.Fprintln(w, res.Message)
				return fmt.Errorf("%s limit reached (%d/%d)", t, res.CurrentCount, res.Limit)
			}
			fmt.Fprintf(w, "allowed: %d/%d used, %d left today\n", res.CurrentCount, res.Limit, res.Remaining)
			return nil
		},
	}
}
