package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/navi/internal/agenda"
	toolcore "github.com/harunnryd/navi/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("add_progress_tracker", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &AddTrackerTool{}, nil
	})
	toolcore.RegisterBuiltin("list_progress_trackers", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &ListTrackersTool{}, nil
	})
}

// AddTrackerTool schedules a one-shot check-in.
type AddTrackerTool struct{}

func (t *AddTrackerTool) Name() string { return "add_progress_tracker" }

func (t *AddTrackerTool) Description() string {
	return "Schedule a check-in. Use task_id 0 for a general review not tied to one task. " +
		"check_in_time is in the user's timezone, format YYYY-MM-DD HH:MM."
}

func (t *AddTrackerTool) Parameters() map[string]interface{} {
	return toolcore.Object(map[string]interface{}{
		"task_id":       toolcore.Prop("integer", "Task to check in on, 0 for general"),
		"check_in_time": toolcore.Prop("string", "When to check in, YYYY-MM-DD HH:MM"),
	}, "task_id", "check_in_time")
}

func (t *AddTrackerTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	var args struct {
		TaskID      number `json:"task_id"`
		CheckInTime string `json:"check_in_time"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}
	tr, err := agenda.AddTracker(env.State, int(args.TaskID), args.CheckInTime, env.Location)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Progress tracker %d scheduled for task %d at %s.", tr.TrackerID, tr.TaskID, tr.CheckInTime), nil
}

type ListTrackersTool struct{}

func (t *ListTrackersTool) Name() string { return "list_progress_trackers" }

func (t *ListTrackersTool) Description() string {
	return "List every scheduled check-in and whether it has fired."
}

func (t *ListTrackersTool) Parameters() map[string]interface{} {
	return toolcore.Object(nil)
}

func (t *ListTrackersTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	if len(env.State.ProgressTrackers) == 0 {
		return "No progress trackers set up yet.", nil
	}
	var b strings.Builder
	for _, tr := range env.State.ProgressTrackers {
		fmt.Fprintf(&b, "ID: %d, Task ID: %d, Check-in: %s, Status: %s\n", tr.TrackerID, tr.TaskID, tr.CheckInTime, tr.Status)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
