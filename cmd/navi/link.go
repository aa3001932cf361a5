package main

import (
	"context"
	"fmt"
	"time"

	"github.com/harunnryd/navi/cmd/navi/runtime"

	"github.com/harunnryd/navi/internal/registry"

	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a chat account to a user",
	Long:  `Issues a one-time code. Sending "/link <code>" to the bot from Telegram or Slack connects that chat to the user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUser(cmd)
		if err != nil {
			return err
		}

		return executeWithStores(cmd, func(ctx context.Context, s *runtime.Stores) error {
			code, expires, err := s.LinkCodes.Issue(ctx, user)
			if err != nil {
				return fmt.Errorf("failed to issue link code: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Link code for %s: %s\n", user, code)
			fmt.Fprintf(out, "Send \"/link %s\" to the bot before %s.\n", code, expires.Local().Format(time.Kitchen))
			return nil
		})
	},
}

var linkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List linked chat accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		formatter, err := formatterFromFlags(cmd)
		if err != nil {
			return err
		}

		return executeWithStores(cmd, func(ctx context.Context, s *runtime.Stores) error {
			var entries []registry.Entry
			if user != "" {
				entries, err = s.Registry.ForUser(user)
			} else {
				var malformed []registry.Malformed
				entries, malformed, err = s.Registry.Entries()
				for _, m := range malformed {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipping entry %s: %s\n", m.ExternalID, m.Reason)
				}
			}
			if err != nil {
				return fmt.Errorf("failed to read registry: %w", err)
			}

			out, err := formatter.FormatEntries(entries)
			if err != nil {
				return fmt.Errorf("failed to format entries: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

var linkRemoveCmd = &cobra.Command{
	Use:   "unlink <external-id>",
	Short: "Remove a linked chat account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithStores(cmd, func(ctx context.Context, s *runtime.Stores) error {
			if err := s.Registry.Unlink(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to unlink %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Unlinked %s\n", args[0])
			return nil
		})
	},
}

func init() {
	linkCmd.Flags().StringP("user", "u", "", "User key")
	linkListCmd.Flags().StringP("user", "u", "", "Only show this user's accounts")
	linkListCmd.Flags().StringP("format", "f", "table", "Output format (table, json, yaml)")

	linkCmd.AddCommand(linkListCmd, linkRemoveCmd)
	rootCmd.AddCommand(linkCmd)
}
