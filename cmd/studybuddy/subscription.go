package main

import (
	"fmt"
	"io"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/model"

	"github.com/spf13/cobra"
)

func newSubscriptionCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"plan"},
		Short:   "Show plan, limits and premium voice balance",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.client.Subscription(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			return renderSubscription(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	return cmd
}

func renderSubscription(w io.Writer, r *dto.SubscriptionResponseDTO) error {
	sub := r.Subscription
	fmt.Fprintf(w, "plan: %s (%s)\n", sub.Plan, r.StatusLabel)
	fmt.Fprintf(w, "student type: %s\n", r.StudentType)
	if r.DaysRemaining != nil {
		fmt.Fprintf(w, "days remaining: %d\n", *r.DaysRemaining)
	}
	fmt.Fprintf(w, "chats today: %d/%d\n", r.DailyUsage.ChatsUsed, r.PlanLimits.ChatsPerDay)
	fmt.Fprintf(w, "images today: %d/%d\n", r.DailyUsage.ImagesUsed, r.PlanLimits.ImagesPerDay)
	if sub.Plan == model.PlanPro {
		fmt.Fprintf(w, "premium voice: %d/%d chars used (%.0f%%), %d left\n",
			sub.TTSUsed, sub.TTSLimit, r.TTSUsagePercent, sub.TTSRemaining)
	}
	if p := r.PendingRequest; p != nil {
		line := fmt.Sprintf("latest request: %s -> %s", p.RequestedPlan, p.Status)
		if p.RejectionReason != nil {
			line += fmt.Sprintf(" (%s)", *p.RejectionReason)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
