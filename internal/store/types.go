package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// ParseTaskStatus accepts any casing of a known status.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch st := TaskStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled:
		return st, true
	}
	return "", false
}

type TrackerStatus string

const (
	TrackerPending  TrackerStatus = "PENDING"
	TrackerNotified TrackerStatus = "NOTIFIED"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

const (
	ActionMessageSent      = "message_sent"
	ActionSilentReflection = "silent_reflection"
)

const DefaultConversationStage = "Introduction & Onboarding"

// Metadata holds the id counters. They only ever grow.
type Metadata struct {
	NextGoalID            int `json:"next_goal_id"`
	NextTaskID            int `json:"next_task_id"`
	NextProgressTrackerID int `json:"next_progress_tracker_id"`
}

// Percent is an integer percentage that also decodes from numeric strings
// and floats, which older documents contain.
type Percent int

func (p *Percent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = 0
		return nil
	}
	raw := string(trimmed)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSuffix(strings.TrimSpace(unquoted), "%")
		if raw == "" {
			*p = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("percent %s: %w", string(data), err)
	}
	*p = Percent(math.Round(f))
	return nil
}

type Goal struct {
	GoalID            int      `json:"goal_id"`
	Title             string   `json:"title"`
	Category          string   `json:"category"`
	Description       string   `json:"description"`
	EndCondition      string   `json:"end_condition"`
	DueDate           string   `json:"due_date"`
	Importance        string   `json:"importance"`
	Urgency           string   `json:"urgency"`
	BotAssessmentPct  Percent  `json:"bot_assessment_pct"`
	UserAssessmentPct Percent  `json:"user_assessment_pct"`
	GoalLog           []string `json:"goal_log"`
}

// Older documents spell the assessment fields differently.
const (
	legacyBotAssessmentKey  = "bot_goal_assesment_percentage"
	legacyUserAssessmentKey = "user_goal_assesment_percentage"
)

func (g *Goal) UnmarshalJSON(data []byte) error {
	type plain Goal
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	legacy := []struct {
		current, old string
		dst          *Percent
	}{
		{"bot_assessment_pct", legacyBotAssessmentKey, &p.BotAssessmentPct},
		{"user_assessment_pct", legacyUserAssessmentKey, &p.UserAssessmentPct},
	}
	for _, l := range legacy {
		raw, ok := keys[l.old]
		if _, hasCurrent := keys[l.current]; hasCurrent || !ok {
			continue
		}
		if err := l.dst.UnmarshalJSON(raw); err != nil {
			return err
		}
	}

	if p.GoalLog == nil {
		p.GoalLog = []string{}
	}
	*g = Goal(p)
	return nil
}

type Task struct {
	TaskID           int        `json:"task_id"`
	GoalID           *int       `json:"goal_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	MeasureOfSuccess string     `json:"measure_of_success,omitempty"`
	Status           TaskStatus `json:"status"`
	StartTime        string     `json:"start_time"`
	EndTime          string     `json:"end_time"`
	DueDate          *string    `json:"due_date"`
	Importance       string     `json:"importance,omitempty"`
	Urgency          string     `json:"urgency,omitempty"`
	TaskLog          []string   `json:"task_log,omitempty"`
	CalendarEventID  *string    `json:"calendar_event_id"`
}

// DisplayTitle falls back to the description for untitled tasks.
func (t Task) DisplayTitle() string {
	if strings.TrimSpace(t.Title) != "" {
		return t.Title
	}
	if strings.TrimSpace(t.Description) != "" {
		return t.Description
	}
	return "Unknown task"
}

type ProgressTracker struct {
	TrackerID   int           `json:"tracker_id"`
	TaskID      int           `json:"task_id"`
	CheckInTime string        `json:"check_in_time"`
	Status      TrackerStatus `json:"status"`
}

type ReflectionRecord struct {
	Timestamp             string   `json:"timestamp"`
	AIAnalysis            string   `json:"ai_analysis"`
	ActionTaken           string   `json:"action_taken"`
	MessageContent        *string  `json:"message_content"`
	ToolExecutions        []string `json:"tool_executions"`
	FormattingCorrections []string `json:"formatting_corrections"`
}

type FunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type Part struct {
	Text         string        `json:"text,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

type ChatEntry struct {
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Text joins the text parts of an entry.
func (e ChatEntry) Text() string {
	var b strings.Builder
	for _, p := range e.Parts {
		if p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

type ToolExecution struct {
	Timestamp string          `json:"timestamp"`
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args,omitempty"`
	Result    string          `json:"result"`
	Source    string          `json:"source,omitempty"`
}

// UserState is one user's durable document. Top-level keys this package
// does not model are kept in Extra and written back untouched.
type UserState struct {
	Metadata          Metadata               `json:"metadata"`
	UserDetails       map[string]interface{} `json:"user_details"`
	UserPreferences   map[string]interface{} `json:"user_preferences"`
	ConversationStage string                 `json:"conversation_stage"`
	Goals             []Goal                 `json:"goals"`
	Tasks             []Task                 `json:"tasks"`
	ProgressTrackers  []ProgressTracker      `json:"progress_trackers"`
	HourlyReflections []ReflectionRecord     `json:"hourly_reflections"`
	ChatHistory       []ChatEntry            `json:"chat_history"`
	ToolExecutionLog  []ToolExecution        `json:"tool_execution_log,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// NewUserState returns the default document.
func NewUserState() *UserState {
	return &UserState{
		Metadata:          Metadata{NextGoalID: 1, NextTaskID: 1, NextProgressTrackerID: 1},
		UserDetails:       map[string]interface{}{},
		UserPreferences:   map[string]interface{}{"timezone": nil},
		ConversationStage: DefaultConversationStage,
		Goals:             []Goal{},
		Tasks:             []Task{},
		ProgressTrackers:  []ProgressTracker{},
		HourlyReflections: []ReflectionRecord{},
		ChatHistory:       []ChatEntry{},
	}
}

// Timezone returns the user's IANA zone name, or "" when unset.
func (s *UserState) Timezone() string {
	if s.UserPreferences == nil {
		return ""
	}
	tz, _ := s.UserPreferences["timezone"].(string)
	return strings.TrimSpace(tz)
}

func (s *UserState) SetTimezone(tz string) {
	if s.UserPreferences == nil {
		s.UserPreferences = map[string]interface{}{}
	}
	s.UserPreferences["timezone"] = tz
}

var knownKeys = map[string]bool{
	"metadata":           true,
	"user_details":       true,
	"user_preferences":   true,
	"conversation_stage": true,
	"goals":              true,
	"tasks":              true,
	"progress_trackers":  true,
	"hourly_reflections": true,
	"chat_history":       true,
	"tool_execution_log": true,
}

func (s UserState) MarshalJSON() ([]byte, error) {
	type plain UserState
	known, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return known, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	extraKeys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if knownKeys[k] {
			continue
		}
		merged[k] = s.Extra[k]
	}
	return json.Marshal(merged)
}

func (s *UserState) UnmarshalJSON(data []byte) error {
	type plain UserState
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, v := range all {
		if knownKeys[k] {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[k] = v
	}
	*s = UserState(p)
	return nil
}

func (s *UserState) FindGoal(id int) *Goal {
	for i := range s.Goals {
		if s.Goals[i].GoalID == id {
			return &s.Goals[i]
		}
	}
	return nil
}

func (s *UserState) FindTask(id int) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].TaskID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

func (s *UserState) FindTracker(id int) *ProgressTracker {
	for i := range s.ProgressTrackers {
		if s.ProgressTrackers[i].TrackerID == id {
			return &s.ProgressTrackers[i]
		}
	}
	return nil
}
