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
	toolcore.RegisterBuiltin("list_goals", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &ListGoalsTool{}, nil
	})
	toolcore.RegisterBuiltin("display_goals_with_progress", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &GoalProgressTool{}, nil
	})
	toolcore.RegisterBuiltin("add_goal", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &AddGoalTool{}, nil
	})
	toolcore.RegisterBuiltin("update_user_goal_assessment", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &UserAssessmentTool{}, nil
	})
}

// ListGoalsTool lists goal titles and ids.
type ListGoalsTool struct{}

func (t *ListGoalsTool) Name() string { return "list_goals" }

func (t *ListGoalsTool) Description() string {
	return "List the user's goals with their ids and categories."
}

func (t *ListGoalsTool) Parameters() map[string]interface{} {
	return toolcore.Object(nil)
}

func (t *ListGoalsTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	if len(env.State.Goals) == 0 {
		return "No goals set yet.", nil
	}
	var b strings.Builder
	for _, g := range env.State.Goals {
		fmt.Fprintf(&b, "ID: %d, Title: %s, Category: %s, Due: %s\n", g.GoalID, g.Title, g.Category, g.DueDate)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// GoalProgressTool shows both assessments and the task breakdown per goal.
type GoalProgressTool struct{}

func (t *GoalProgressTool) Name() string { return "display_goals_with_progress" }

func (t *GoalProgressTool) Description() string {
	return "Show every goal with its computed progress, the user's self-assessment and task counts."
}

func (t *GoalProgressTool) Parameters() map[string]interface{} {
	return toolcore.Object(nil)
}

func (t *GoalProgressTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	return agenda.DescribeGoals(env.State), nil
}

type AddGoalTool struct{}

func (t *AddGoalTool) Name() string { return "add_goal" }

func (t *AddGoalTool) Description() string {
	return "Create a new goal for the user."
}

func (t *AddGoalTool) Parameters() map[string]interface{} {
	return toolcore.Object(map[string]interface{}{
		"title":         toolcore.Prop("string", "Short goal title"),
		"category":      toolcore.Prop("string", "Life area, for example Health or Career"),
		"description":   toolcore.Prop("string", "What the goal is about"),
		"end_condition": toolcore.Prop("string", "How the user knows the goal is done"),
		"due_date":      toolcore.Prop("string", "Target date, DD/MM/YY"),
		"importance":    toolcore.Prop("string", "High, Medium or Low"),
		"urgency":       toolcore.Prop("string", "High, Medium or Low"),
	}, "title")
}

func (t *AddGoalTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	var args struct {
		Title        string `json:"title"`
		Category     string `json:"category"`
		Description  string `json:"description"`
		EndCondition string `json:"end_condition"`
		DueDate      string `json:"due_date"`
		Importance   string `json:"importance"`
		Urgency      string `json:"urgency"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}
	g, err := agenda.AddGoal(env.State, agenda.NewGoal{
		Title:        args.Title,
		Category:     args.Category,
		Description:  args.Description,
		EndCondition: args.EndCondition,
		DueDate:      args.DueDate,
		Importance:   args.Importance,
		Urgency:      args.Urgency,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Goal '%s' added with ID %d.", g.Title, g.GoalID), nil
}

// UserAssessmentTool records the user's own progress estimate.
type UserAssessmentTool struct{}

func (t *UserAssessmentTool) Name() string { return "update_user_goal_assessment" }

func (t *UserAssessmentTool) Description() string {
	return "Record how far along the user thinks they are on a goal, 0 to 100."
}

func (t *UserAssessmentTool) Parameters() map[string]interface{} {
	return toolcore.Object(map[string]interface{}{
		"goal_id":         toolcore.Prop("integer", "Goal id"),
		"user_percentage": toolcore.Prop("integer", "Self-assessed progress, 0 to 100"),
	}, "goal_id", "user_percentage")
}

func (t *UserAssessmentTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	var args struct {
		GoalID number `json:"goal_id"`
		Pct    number `json:"user_percentage"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}
	g, err := agenda.SetUserAssessment(env.State, int(args.GoalID), int(args.Pct), env.Now)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated your self-assessment for goal '%s' to %d%%.", g.Title, g.UserAssessmentPct), nil
}
