package agenda

import (
	"fmt"
	"strings"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/store"
)

type NewTask struct {
	GoalID           *int
	Title            string
	Description      string
	MeasureOfSuccess string
	StartTime        string
	EndTime          string
	DueDate          *string
	Importance       string
	Urgency          string
}

// AddTask appends a PENDING task under the next task id. A goal reference
// must point at an existing goal.
func AddTask(st *store.UserState, t NewTask) (*store.Task, error) {
	if strings.TrimSpace(t.Title) == "" && strings.TrimSpace(t.Description) == "" {
		return nil, naviErrors.InvalidInput("task needs a title or description")
	}
	if t.GoalID != nil && st.FindGoal(*t.GoalID) == nil {
		return nil, naviErrors.NotFound(fmt.Sprintf("goal %d", *t.GoalID))
	}
	id := st.Metadata.NextTaskID
	st.Metadata.NextTaskID++
	st.Tasks = append(st.Tasks, store.Task{
		TaskID:           id,
		GoalID:           t.GoalID,
		Title:            t.Title,
		Description:      t.Description,
		MeasureOfSuccess: t.MeasureOfSuccess,
		Status:           store.TaskPending,
		StartTime:        t.StartTime,
		EndTime:          t.EndTime,
		DueDate:          t.DueDate,
		Importance:       t.Importance,
		Urgency:          t.Urgency,
	})
	return &st.Tasks[len(st.Tasks)-1], nil
}

// StatusChange describes what SetTaskStatus did.
type StatusChange struct {
	Task      *store.Task
	Previous  store.TaskStatus
	Completed bool // true only on a transition into COMPLETED
	GoalPct   *int // set when the owning goal was recomputed
}

// SetTaskStatus updates a task's status. Moving into COMPLETED from any
// other status recomputes the owning goal and appends one goal_log line;
// re-applying COMPLETED to a completed task changes nothing.
func SetTaskStatus(st *store.UserState, taskID int, status store.TaskStatus, now time.Time) (StatusChange, error) {
	parsed, ok := store.ParseTaskStatus(string(status))
	if !ok {
		return StatusChange{}, naviErrors.InvalidInput(fmt.Sprintf("unknown task status %q", status))
	}
	task := st.FindTask(taskID)
	if task == nil {
		return StatusChange{}, naviErrors.NotFound(fmt.Sprintf("task %d", taskID))
	}

	change := StatusChange{Task: task, Previous: task.Status}
	if prev, _ := store.ParseTaskStatus(string(task.Status)); prev == parsed {
		return change, nil
	}
	task.Status = parsed

	if parsed != store.TaskCompleted {
		return change, nil
	}
	change.Completed = true
	if task.GoalID == nil {
		return change, nil
	}
	pct, err := recordCompletion(st, *task.GoalID, task.DisplayTitle(), now)
	if err != nil {
		// A dangling goal reference does not undo the status change.
		return change, nil
	}
	change.GoalPct = &pct
	return change, nil
}

// ListTasks returns tasks, optionally only those with the given status.
func ListTasks(st *store.UserState, status string) []store.Task {
	if strings.TrimSpace(status) == "" {
		return append([]store.Task(nil), st.Tasks...)
	}
	want, ok := store.ParseTaskStatus(status)
	if !ok {
		return nil
	}
	var out []store.Task
	for _, t := range st.Tasks {
		if got, _ := store.ParseTaskStatus(string(t.Status)); got == want {
			out = append(out, t)
		}
	}
	return out
}

// StatusCounts tallies tasks by status.
func StatusCounts(st *store.UserState) map[store.TaskStatus]int {
	counts := make(map[store.TaskStatus]int)
	for _, t := range st.Tasks {
		s, ok := store.ParseTaskStatus(string(t.Status))
		if !ok {
			s = t.Status
		}
		counts[s]++
	}
	return counts
}
