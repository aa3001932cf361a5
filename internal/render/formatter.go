// Package render turns user documents and registry entries into terminal
// output for the navi CLI.
package render

import (
	"fmt"
	"strings"

	"github.com/harunnryd/navi/internal/agenda"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"
)

type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

type Formatter interface {
	FormatState(userKey string, st *store.UserState) (string, error)
	FormatGoals(rows []agenda.GoalOverview) (string, error)
	FormatEntries(entries []registry.Entry) (string, error)
}

func New(format OutputFormat) (Formatter, error) {
	switch format {
	case OutputFormatTable:
		return NewTableFormatter(), nil
	case OutputFormatJSON:
		return NewJSONFormatter(), nil
	case OutputFormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", format)
	}
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (supported: table, json, yaml)", s)
	}
}

type goalRow struct {
	GoalID    int    `json:"goal_id" yaml:"goal_id"`
	Title     string `json:"title" yaml:"title"`
	Category  string `json:"category" yaml:"category"`
	DueDate   string `json:"due_date" yaml:"due_date"`
	BotPct    int    `json:"bot_assessment_pct" yaml:"bot_assessment_pct"`
	UserPct   int    `json:"user_assessment_pct" yaml:"user_assessment_pct"`
	Total     int    `json:"tasks_total" yaml:"tasks_total"`
	Completed int    `json:"tasks_completed" yaml:"tasks_completed"`
	Pending   int    `json:"tasks_pending" yaml:"tasks_pending"`
}

func goalRows(rows []agenda.GoalOverview) []goalRow {
	out := make([]goalRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, goalRow{
			GoalID:    r.Goal.GoalID,
			Title:     r.Goal.Title,
			Category:  r.Goal.Category,
			DueDate:   r.Goal.DueDate,
			BotPct:    int(r.Goal.BotAssessmentPct),
			UserPct:   int(r.Goal.UserAssessmentPct),
			Total:     r.Total,
			Completed: r.Completed,
			Pending:   r.Pending,
		})
	}
	return out
}

type entryRow struct {
	ExternalID string `json:"external_id" yaml:"external_id"`
	UserKey    string `json:"user" yaml:"user"`
	Channel    string `json:"channel,omitempty" yaml:"channel,omitempty"`
	Legacy     bool   `json:"legacy,omitempty" yaml:"legacy,omitempty"`
}

func entryRows(entries []registry.Entry) []entryRow {
	out := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryRow{ExternalID: e.ExternalID, UserKey: e.UserKey, Channel: e.Channel, Legacy: e.Legacy})
	}
	return out
}
