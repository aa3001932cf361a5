package main

import (
	"context"
	"fmt"
	"time"

	"github.com/harunnryd/navi/cmd/navi/runtime"

	"github.com/harunnryd/navi/internal/agenda"
	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/render"
	"github.com/harunnryd/navi/internal/store"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect user documents",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a user's document",
	Long:  `Display a user's goals, tasks, check-ins and recent reflections, or dump the whole document as JSON or YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUser(cmd)
		if err != nil {
			return err
		}
		formatter, err := formatterFromFlags(cmd)
		if err != nil {
			return err
		}

		return executeWithStores(cmd, func(ctx context.Context, s *runtime.Stores) error {
			st, err := loadExisting(ctx, s, user)
			if err != nil {
				return err
			}
			out, err := formatter.FormatState(user, st)
			if err != nil {
				return fmt.Errorf("failed to format document: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Show goal progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUser(cmd)
		if err != nil {
			return err
		}
		formatter, err := formatterFromFlags(cmd)
		if err != nil {
			return err
		}

		return executeWithStores(cmd, func(ctx context.Context, s *runtime.Stores) error {
			st, err := loadExisting(ctx, s, user)
			if err != nil {
				return err
			}
			out, err := formatter.FormatGoals(agenda.Overview(st))
			if err != nil {
				return fmt.Errorf("failed to format goals: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Manage progress check-ins",
}

var trackerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule a check-in",
	Long:  `Schedule a check-in for a task, or a general one when --task is 0. The time is read in the user's timezone, e.g. "2024-05-02 09:00".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUser(cmd)
		if err != nil {
			return err
		}
		taskID, _ := cmd.Flags().GetInt("task")
		at, _ := cmd.Flags().GetString("at")
		if at == "" {
			return fmt.Errorf("--at is required")
		}

		return executeWithStores(cmd, func(ctx context.Context, s *runtime.Stores) error {
			if !s.Users.Exists(user) {
				return naviErrors.NotFound("no document for " + user)
			}
			var added store.ProgressTracker
			err := s.Users.Update(ctx, user, func(st *store.UserState) error {
				loc := agenda.ResolveLocation(st.Timezone(), s.DefaultLocation)
				tr, err := agenda.AddTracker(st, taskID, at, loc)
				if err != nil {
					return err
				}
				added = *tr
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to add check-in: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Check-in %d scheduled for %s\n", added.TrackerID, added.CheckInTime)
			return nil
		})
	},
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Set a task's status",
	Long:  `Set a task to PENDING, IN_PROGRESS, COMPLETED or CANCELLED. Completing a task recomputes its goal's progress.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUser(cmd)
		if err != nil {
			return err
		}
		taskID, _ := cmd.Flags().GetInt("task")
		raw, _ := cmd.Flags().GetString("status")
		status, ok := store.ParseTaskStatus(raw)
		if !ok {
			return fmt.Errorf("invalid status %q (supported: PENDING, IN_PROGRESS, COMPLETED, CANCELLED)", raw)
		}

		return executeWithStores(cmd, func(ctx context.Context, s *runtime.Stores) error {
			if !s.Users.Exists(user) {
				return naviErrors.NotFound("no document for " + user)
			}
			var change agenda.StatusChange
			err := s.Users.Update(ctx, user, func(st *store.UserState) error {
				var err error
				change, err = agenda.SetTaskStatus(st, taskID, status, time.Now())
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to update task: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Task %d: %s → %s\n", taskID, change.Previous, status)
			if change.GoalPct != nil {
				fmt.Fprintf(out, "Goal progress is now %s %d%%\n", agenda.ProgressBar(*change.GoalPct), *change.GoalPct)
			}
			return nil
		})
	},
}

// loadExisting refuses unknown users so a mistyped key does not create a
// fresh document.
func loadExisting(ctx context.Context, s *runtime.Stores, user string) (*store.UserState, error) {
	if !s.Users.Exists(user) {
		return nil, naviErrors.NotFound("no document for " + user)
	}
	return s.Users.Load(ctx, user)
}

func formatterFromFlags(cmd *cobra.Command) (render.Formatter, error) {
	raw, _ := cmd.Flags().GetString("format")
	format, err := render.ParseOutputFormat(raw)
	if err != nil {
		return nil, err
	}
	return render.New(format)
}

func init() {
	for _, c := range []*cobra.Command{stateShowCmd, goalsCmd} {
		c.Flags().StringP("user", "u", "", "User key")
		c.Flags().StringP("format", "f", string(render.OutputFormatTable), "Output format (table, json, yaml)")
	}

	trackerAddCmd.Flags().StringP("user", "u", "", "User key")
	trackerAddCmd.Flags().Int("task", agenda.GeneralTaskID, "Task id (0 for a general check-in)")
	trackerAddCmd.Flags().String("at", "", "Check-in time in the user's timezone")

	taskStatusCmd.Flags().StringP("user", "u", "", "User key")
	taskStatusCmd.Flags().Int("task", 0, "Task id")
	taskStatusCmd.Flags().String("status", "", "New status")

	stateCmd.AddCommand(stateShowCmd)
	trackerCmd.AddCommand(trackerAddCmd)
	taskCmd.AddCommand(taskStatusCmd)
	rootCmd.AddCommand(stateCmd, goalsCmd, trackerCmd, taskCmd)
}
