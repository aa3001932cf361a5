package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/navi/cmd/navi/runtime"

	"github.com/harunnryd/navi/internal/store"

	"github.com/spf13/cobra"
)

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Run one reflection now",
	Long:  `Asks the oracle whether to reach out, either for one user or for everyone in the registry, and records the decision.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		local, _ := cmd.Flags().GetBool("local")

		return executeWithRuntime(cmd, runtime.Options{Local: local}, func(ctx context.Context, r *runtime.RuntimeComponents) error {
			out := cmd.OutOrStdout()
			if user == "" {
				if err := r.Reflection.RunOnce(ctx); err != nil {
					return fmt.Errorf("reflection pass failed: %w", err)
				}
				fmt.Fprintln(out, "Reflection pass finished.")
				return nil
			}

			report, err := r.Reflection.TriggerNow(ctx, user)
			if err != nil {
				return fmt.Errorf("reflection for %s failed: %w", user, err)
			}
			switch {
			case report.Action == store.ActionMessageSent && report.Delivered:
				fmt.Fprintf(out, "Sent a message to %s.\n", user)
			case report.Action == store.ActionMessageSent:
				fmt.Fprintf(out, "Decided to message %s, but it was not delivered.\n", user)
			default:
				fmt.Fprintf(out, "Stayed silent for %s.\n", user)
			}
			if len(report.Corrections) > 0 {
				fmt.Fprintf(out, "Corrections: %s\n", strings.Join(report.Corrections, "; "))
			}
			if len(report.Tools) > 0 {
				fmt.Fprintf(out, "Tools used: %s\n", strings.Join(report.Tools, ", "))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(reflectCmd)
	reflectCmd.Flags().StringP("user", "u", "", "User key (default: every registered user)")
	reflectCmd.Flags().Bool("local", false, "Print messages here instead of delivering them")
}
