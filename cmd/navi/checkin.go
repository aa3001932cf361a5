package main

import (
	"context"
	"fmt"

	"github.com/harunnryd/navi/cmd/navi/runtime"

	"github.com/spf13/cobra"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Run one check-in pass now",
	Long:  `Fires every due progress tracker now, either for one user or for everyone in the registry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		local, _ := cmd.Flags().GetBool("local")

		return executeWithRuntime(cmd, runtime.Options{Local: local}, func(ctx context.Context, r *runtime.RuntimeComponents) error {
			out := cmd.OutOrStdout()
			if user == "" {
				if err := r.Checkin.RunOnce(ctx); err != nil {
					return fmt.Errorf("check-in pass failed: %w", err)
				}
				fmt.Fprintln(out, "Check-in pass finished.")
				return nil
			}

			report, err := r.Checkin.CheckUserNow(ctx, user)
			if err != nil {
				return fmt.Errorf("check-in for %s failed: %w", user, err)
			}
			if len(report.Fired) == 0 {
				fmt.Fprintf(out, "No check-ins due for %s.\n", user)
			} else {
				fmt.Fprintf(out, "Fired %d check-in(s) for %s: %d delivered, %d used the standard message.\n",
					len(report.Fired), user, report.Delivered, report.Fallbacks)
			}
			if len(report.Unparseable) > 0 {
				fmt.Fprintf(out, "Skipped trackers with unreadable times: %v\n", report.Unparseable)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(checkinCmd)
	checkinCmd.Flags().StringP("user", "u", "", "User key (default: every registered user)")
	checkinCmd.Flags().Bool("local", false, "Print messages here instead of delivering them")
}
