package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/navi/internal/agenda"
	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/store"
	toolcore "github.com/harunnryd/navi/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("list_tasks", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &ListTasksTool{}, nil
	})
	toolcore.RegisterBuiltin("add_task", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &AddTaskTool{}, nil
	})
	toolcore.RegisterBuiltin("update_task_status", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &TaskStatusTool{}, nil
	})
}

var taskStatuses = []string{
	string(store.TaskPending),
	string(store.TaskInProgress),
	string(store.TaskCompleted),
	string(store.TaskCancelled),
}

type ListTasksTool struct{}

func (t *ListTasksTool) Name() string { return "list_tasks" }

func (t *ListTasksTool) Description() string {
	return "List the user's tasks, optionally filtered by status (PENDING, IN_PROGRESS, COMPLETED, CANCELLED)."
}

func (t *ListTasksTool) Parameters() map[string]interface{} {
	return toolcore.Object(map[string]interface{}{
		"filter_by_status": toolcore.Enum("Only return tasks with this status", taskStatuses...),
	})
}

func (t *ListTasksTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	var args struct {
		Status string `json:"filter_by_status"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}
	if args.Status != "" {
		if _, ok := store.ParseTaskStatus(args.Status); !ok {
			return "", naviErrors.InvalidInput(fmt.Sprintf("unknown status %q", args.Status))
		}
	}

	tasks := agenda.ListTasks(env.State, args.Status)
	if len(tasks) == 0 {
		if args.Status != "" {
			return fmt.Sprintf("No tasks with status %s.", strings.ToUpper(args.Status)), nil
		}
		return "No tasks yet.", nil
	}

	var b strings.Builder
	for _, task := range tasks {
		goal := "none"
		if task.GoalID != nil {
			goal = fmt.Sprintf("%d", *task.GoalID)
		}
		due := "none"
		if task.DueDate != nil && *task.DueDate != "" {
			due = *task.DueDate
		}
		fmt.Fprintf(&b, "ID: %d, Goal: %s, Title: %s, Status: %s, Due: %s\n", task.TaskID, goal, task.DisplayTitle(), task.Status, due)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type AddTaskTool struct{}

func (t *AddTaskTool) Name() string { return "add_task" }

func (t *AddTaskTool) Description() string {
	return "Create a task, optionally under an existing goal."
}

func (t *AddTaskTool) Parameters() map[string]interface{} {
	return toolcore.Object(map[string]interface{}{
		"goal_id":            toolcore.Prop("integer", "Owning goal id, omit for a standalone task"),
		"title":              toolcore.Prop("string", "Short task title"),
		"description":        toolcore.Prop("string", "What needs doing"),
		"measure_of_success": toolcore.Prop("string", "How completion is judged"),
		"start_time":         toolcore.Prop("string", "Planned start, DD/MM/YY HH:MM"),
		"end_time":           toolcore.Prop("string", "Planned end, DD/MM/YY HH:MM"),
		"due_date":           toolcore.Prop("string", "Deadline, DD/MM/YY"),
		"importance":         toolcore.Prop("string", "High, Medium or Low"),
		"urgency":            toolcore.Prop("string", "High, Medium or Low"),
	}, "title")
}

func (t *AddTaskTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	var args struct {
		GoalID           *number `json:"goal_id"`
		Title            string  `json:"title"`
		Description      string  `json:"description"`
		MeasureOfSuccess string  `json:"measure_of_success"`
		StartTime        string  `json:"start_time"`
		EndTime          string  `json:"end_time"`
		DueDate          string  `json:"due_date"`
		Importance       string  `json:"importance"`
		Urgency          string  `json:"urgency"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}

	nt := agenda.NewTask{
		Title:            args.Title,
		Description:      args.Description,
		MeasureOfSuccess: args.MeasureOfSuccess,
		StartTime:        args.StartTime,
		EndTime:          args.EndTime,
		Importance:       args.Importance,
		Urgency:          args.Urgency,
	}
	if args.GoalID != nil && *args.GoalID > 0 {
		id := int(*args.GoalID)
		nt.GoalID = &id
	}
	if args.DueDate != "" {
		due := args.DueDate
		nt.DueDate = &due
	}

	task, err := agenda.AddTask(env.State, nt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task '%s' added with ID %d.", task.DisplayTitle(), task.TaskID), nil
}

// TaskStatusTool changes a task's status. Completing a task updates its
// goal's progress once.
type TaskStatusTool struct{}

func (t *TaskStatusTool) Name() string { return "update_task_status" }

func (t *TaskStatusTool) Description() string {
	return "Set a task's status to PENDING, IN_PROGRESS, COMPLETED or CANCELLED."
}

func (t *TaskStatusTool) Parameters() map[string]interface{} {
	return toolcore.Object(map[string]interface{}{
		"task_id": toolcore.Prop("integer", "Task id"),
		"status":  toolcore.Enum("New status", taskStatuses...),
	}, "task_id", "status")
}

func (t *TaskStatusTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	var args struct {
		TaskID number `json:"task_id"`
		Status string `json:"status"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}

	change, err := agenda.SetTaskStatus(env.State, int(args.TaskID), store.TaskStatus(args.Status), env.Now)
	if err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Task %d status is now %s.", change.Task.TaskID, change.Task.Status)
	if change.Previous == change.Task.Status {
		msg = fmt.Sprintf("Task %d is already %s.", change.Task.TaskID, change.Task.Status)
	}
	if change.GoalPct != nil {
		msg += fmt.Sprintf(" Goal progress is now %d%%.", *change.GoalPct)
	}
	return msg, nil
}
