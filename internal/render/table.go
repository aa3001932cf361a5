package render

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/harunnryd/navi/internal/agenda"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"
)

const recentReflections = 3

type TableFormatter struct {
	headerStyle  lipgloss.Style
	keyStyle     lipgloss.Style
	cellStyle    lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
	titleStyle   lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		keyStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
		titleStyle: lipgloss.NewStyle().
			Bold(true),
	}
}

func (f *TableFormatter) grid(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers(headers...)
}

func (f *TableFormatter) FormatState(userKey string, st *store.UserState) (string, error) {
	if st == nil {
		return "No document found", nil
	}

	summary := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return f.keyStyle
			}
			return f.cellStyle
		})
	tz := st.Timezone()
	if tz == "" {
		tz = "(default)"
	}
	summary.Row("User", userKey)
	summary.Row("Stage", st.ConversationStage)
	summary.Row("Timezone", tz)
	summary.Row("Goals", strconv.Itoa(len(st.Goals)))
	summary.Row("Tasks", strconv.Itoa(len(st.Tasks)))
	summary.Row("Pending check-ins", strconv.Itoa(len(agenda.PendingTrackers(st))))
	summary.Row("Chat entries", strconv.Itoa(len(st.ChatHistory)))
	summary.Row("Reflections", strconv.Itoa(len(st.HourlyReflections)))

	sections := []string{summary.String()}

	if len(st.Tasks) > 0 {
		tasks := f.grid("ID", "Title", "Status", "Goal", "Due")
		for _, t := range st.Tasks {
			goal := "-"
			if t.GoalID != nil {
				goal = strconv.Itoa(*t.GoalID)
			}
			due := "-"
			if t.DueDate != nil && *t.DueDate != "" {
				due = *t.DueDate
			}
			tasks.Row(strconv.Itoa(t.TaskID), truncateString(t.DisplayTitle(), 40), string(t.Status), goal, due)
		}
		sections = append(sections, f.titleStyle.Render("Tasks"), tasks.String())
	}

	if len(st.ProgressTrackers) > 0 {
		trackers := f.grid("ID", "Task", "Check-in", "Status")
		for _, p := range st.ProgressTrackers {
			task := "general"
			if p.TaskID != 0 {
				task = strconv.Itoa(p.TaskID)
			}
			trackers.Row(strconv.Itoa(p.TrackerID), task, p.CheckInTime, string(p.Status))
		}
		sections = append(sections, f.titleStyle.Render("Check-ins"), trackers.String())
	}

	if n := len(st.HourlyReflections); n > 0 {
		start := n - recentReflections
		if start < 0 {
			start = 0
		}
		refl := f.grid("Time", "Action", "Analysis")
		for _, r := range st.HourlyReflections[start:] {
			refl.Row(r.Timestamp, r.ActionTaken, truncateString(r.AIAnalysis, 60))
		}
		sections = append(sections, f.titleStyle.Render(fmt.Sprintf("Last %d reflections", n-start)), refl.String())
	}

	return strings.Join(sections, "\n"), nil
}

func (f *TableFormatter) FormatGoals(rows []agenda.GoalOverview) (string, error) {
	if len(rows) == 0 {
		return "No goals found", nil
	}

	t := f.grid("ID", "Title", "Progress", "Bot", "User", "Tasks")
	for _, r := range goalRows(rows) {
		t.Row(
			strconv.Itoa(r.GoalID),
			truncateString(r.Title, 30),
			agenda.ProgressBar(r.BotPct),
			fmt.Sprintf("%d%%", r.BotPct),
			fmt.Sprintf("%d%%", r.UserPct),
			fmt.Sprintf("%d/%d done", r.Completed, r.Total),
		)
	}
	return t.String(), nil
}

func (f *TableFormatter) FormatEntries(entries []registry.Entry) (string, error) {
	if len(entries) == 0 {
		return "No linked accounts", nil
	}

	t := f.grid("External ID", "User", "Channel")
	for _, e := range entryRows(entries) {
		channel := e.Channel
		if channel == "" {
			channel = "(default)"
		}
		t.Row(e.ExternalID, e.UserKey, channel)
	}
	return t.String(), nil
}

func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}
