package agenda

import (
	"fmt"
	"math"
	"strings"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/store"
)

// logStamp is the goal_log timestamp format.
const logStamp = "02/01/06 15:04"

type NewGoal struct {
	Title        string
	Category     string
	Description  string
	EndCondition string
	DueDate      string
	Importance   string
	Urgency      string
}

// AddGoal appends a goal under the next goal id.
func AddGoal(st *store.UserState, g NewGoal) (*store.Goal, error) {
	if strings.TrimSpace(g.Title) == "" {
		return nil, naviErrors.InvalidInput("goal title is required")
	}
	id := st.Metadata.NextGoalID
	st.Metadata.NextGoalID++
	st.Goals = append(st.Goals, store.Goal{
		GoalID:       id,
		Title:        g.Title,
		Category:     g.Category,
		Description:  g.Description,
		EndCondition: g.EndCondition,
		DueDate:      g.DueDate,
		Importance:   g.Importance,
		Urgency:      g.Urgency,
		GoalLog:      []string{},
	})
	return &st.Goals[len(st.Goals)-1], nil
}

// GoalProgress is round(100 * completed / total) over the goal's tasks,
// or 0 when it has none.
func GoalProgress(st *store.UserState, goalID int) int {
	total, completed := 0, 0
	for _, t := range st.Tasks {
		if t.GoalID == nil || *t.GoalID != goalID {
			continue
		}
		total++
		if t.Status == store.TaskCompleted {
			completed++
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// recordCompletion refreshes the goal's bot assessment and logs the task
// that caused it. Callers guarantee it runs once per completion edge.
func recordCompletion(st *store.UserState, goalID int, taskTitle string, now time.Time) (int, error) {
	goal := st.FindGoal(goalID)
	if goal == nil {
		return 0, naviErrors.NotFound(fmt.Sprintf("goal %d", goalID))
	}
	pct := GoalProgress(st, goalID)
	goal.BotAssessmentPct = store.Percent(pct)
	goal.GoalLog = append(goal.GoalLog,
		fmt.Sprintf("[%s] Task completed: '%s' → Bot assessment: %d%%", now.Format(logStamp), taskTitle, pct))
	return pct, nil
}

// SetUserAssessment records the user's own estimate. It never touches the
// bot assessment.
func SetUserAssessment(st *store.UserState, goalID, pct int, now time.Time) (*store.Goal, error) {
	if pct < 0 || pct > 100 {
		return nil, naviErrors.InvalidInput("assessment must be between 0 and 100")
	}
	goal := st.FindGoal(goalID)
	if goal == nil {
		return nil, naviErrors.NotFound(fmt.Sprintf("goal %d", goalID))
	}
	old := goal.UserAssessmentPct
	goal.UserAssessmentPct = store.Percent(pct)
	goal.GoalLog = append(goal.GoalLog,
		fmt.Sprintf("[%s] User updated self-assessment: %d%% → %d%%", now.Format(logStamp), old, pct))
	return goal, nil
}

// GoalOverview is one row of the goals dashboard.
type GoalOverview struct {
	Goal      store.Goal
	Total     int
	Completed int
	Pending   int
}

func Overview(st *store.UserState) []GoalOverview {
	out := make([]GoalOverview, 0, len(st.Goals))
	for _, g := range st.Goals {
		row := GoalOverview{Goal: g}
		for _, t := range st.Tasks {
			if t.GoalID == nil || *t.GoalID != g.GoalID {
				continue
			}
			row.Total++
			switch t.Status {
			case store.TaskCompleted:
				row.Completed++
			case store.TaskPending:
				row.Pending++
			}
		}
		out = append(out, row)
	}
	return out
}

// ProgressBar draws pct as ten blocks.
func ProgressBar(pct int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct / 10
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

// DescribeGoals renders the goal overview as plain text for the oracle.
func DescribeGoals(st *store.UserState) string {
	rows := Overview(st)
	if len(rows) == 0 {
		return "No goals have been set yet."
	}
	var b strings.Builder
	for _, r := range rows {
		g := r.Goal
		fmt.Fprintf(&b, "- Goal #%d %s (category: %s, due: %s)\n", g.GoalID, g.Title, orNone(g.Category), orNone(g.DueDate))
		fmt.Fprintf(&b, "  bot assessment %d%% %s | user assessment %d%%\n", g.BotAssessmentPct, ProgressBar(int(g.BotAssessmentPct)), g.UserAssessmentPct)
		fmt.Fprintf(&b, "  tasks: %d total, %d completed, %d pending\n", r.Total, r.Completed, r.Pending)
		if n := len(g.GoalLog); n > 0 {
			start := n - 3
			if start < 0 {
				start = 0
			}
			for _, entry := range g.GoalLog[start:] {
				fmt.Fprintf(&b, "  • %s\n", entry)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
