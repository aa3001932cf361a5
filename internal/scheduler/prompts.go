package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/navi/internal/agenda"
	"github.com/harunnryd/navi/internal/store"
)

const (
	checkinMarker          = "[SYSTEM: Progress Tracker Check-In]"
	reflectionMarker       = "[SYSTEM: Hourly Reflection Check]"
	silentReflectionMarker = "[SYSTEM: Hourly Reflection Check - Silent]"

	recentMessageWindow = 10
	promptPendingTasks  = 5
	promptGoals         = 10
)

// checkinSubject is what a due tracker is about. Task is nil for a general
// check-in.
type checkinSubject struct {
	Tracker agenda.DueTracker
	Raw     string
	Task    *store.Task
	Goal    *store.Goal
}

func (c checkinSubject) description() string {
	if c.Task == nil {
		return "your plans"
	}
	if d := strings.TrimSpace(c.Task.Description); d != "" {
		return d
	}
	return c.Task.DisplayTitle()
}

func checkinPrompt(c checkinSubject, now time.Time) string {
	var b strings.Builder
	b.WriteString("**SYSTEM NOTIFICATION: AUTOMATED PROGRESS TRACKER TRIGGERED**\n\n")
	b.WriteString("This is an AUTOMATED SYSTEM-GENERATED progress check-in that has reached its scheduled time. This is NOT a user request.\n\n")
	b.WriteString("**SCHEDULED CHECK-IN DETAILS:**\n")
	if c.Task != nil {
		fmt.Fprintf(&b, "- Task: %q (Status: %s)\n", c.description(), c.Task.Status)
	} else {
		b.WriteString("- Task: none, this is a general check-in\n")
	}
	fmt.Fprintf(&b, "- Scheduled Time: %s\n", c.Raw)
	fmt.Fprintf(&b, "- Current Time: %s (check-in time has arrived)\n", now.Format("2006-01-02 15:04"))
	if c.Goal != nil {
		fmt.Fprintf(&b, "- Associated Goal: %s\n", c.Goal.Title)
	}
	b.WriteString("\n**SYSTEM INSTRUCTION:** Initiate a proactive check-in conversation now. The user did NOT ask for this.\n\n")
	b.WriteString("**ACTION REQUIRED:**\n")
	b.WriteString("1. Use display_goals_with_progress() and list_tasks() to gather context\n")
	b.WriteString("2. Acknowledge that this is the scheduled check-in time\n")
	b.WriteString("3. Ask how the task is going and offer help with obstacles\n")
	b.WriteString("4. Be encouraging, collaborative and specific\n")
	b.WriteString("5. If it helps, schedule the next check-in with add_progress_tracker()\n")
	return b.String()
}

// checkinEntryText wraps the prompt the way it is kept in the transcript.
func checkinEntryText(prompt string) string {
	return "<system_prompt>\n" + checkinMarker + "\n" + prompt + "\n</system_prompt>"
}

func checkinFallback(c checkinSubject) string {
	return fmt.Sprintf("🌟 Hey! Just checking in on your task: %s\n\nHow's it going? I'm here to help if you need to adjust anything or talk through any obstacles!", c.description())
}

// reflectionSignals are the cheap facts a reflection prompt is built from.
type reflectionSignals struct {
	Now              time.Time
	UserKey          string
	HoursSinceUser   *float64
	Goals            int
	Tasks            int
	RecentUserMsgs   int
	StatusCounts     map[store.TaskStatus]int
	PendingTasks     []store.Task
	GoalSummaries    []store.Goal
	PendingTrackers  int
	ConversationStep string
}

func computeSignals(st *store.UserState, userKey string, now time.Time, loc *time.Location) reflectionSignals {
	sig := reflectionSignals{
		Now:              now.In(loc),
		UserKey:          userKey,
		Goals:            len(st.Goals),
		Tasks:            len(st.Tasks),
		StatusCounts:     agenda.StatusCounts(st),
		PendingTrackers:  len(agenda.PendingTrackers(st)),
		ConversationStep: st.ConversationStage,
	}

	userMsgs := 0
	for _, e := range st.ChatHistory {
		if e.Role == store.RoleUser {
			userMsgs++
		}
	}
	if userMsgs > recentMessageWindow {
		userMsgs = recentMessageWindow
	}
	sig.RecentUserMsgs = userMsgs

	if last, ok := store.LastEntryTime(st.ChatHistory, store.RoleUser); ok {
		hours := now.Sub(last).Hours()
		sig.HoursSinceUser = &hours
	}

	for _, t := range agenda.ListTasks(st, string(store.TaskPending)) {
		if len(sig.PendingTasks) == promptPendingTasks {
			break
		}
		sig.PendingTasks = append(sig.PendingTasks, t)
	}
	for i, g := range st.Goals {
		if i == promptGoals {
			break
		}
		sig.GoalSummaries = append(sig.GoalSummaries, g)
	}
	return sig
}

func reflectionPrompt(sig reflectionSignals) string {
	last := "unknown"
	if sig.HoursSinceUser != nil {
		last = fmt.Sprintf("%.1f", *sig.HoursSinceUser)
	}

	var b strings.Builder
	b.WriteString("🚨 HOURLY REFLECTION TIME 🚨\n\n")
	fmt.Fprintf(&b, "**CURRENT TIME:** %s (%s)\n\n", sig.Now.Format("2006-01-02 15:04:05"), sig.Now.Weekday())
	b.WriteString("**CONTEXT:**\n")
	fmt.Fprintf(&b, "- User: %s\n", sig.UserKey)
	fmt.Fprintf(&b, "- Last message: %s hours ago\n", last)
	fmt.Fprintf(&b, "- Goals: %d\n", sig.Goals)
	fmt.Fprintf(&b, "- Tasks: %d\n", sig.Tasks)
	fmt.Fprintf(&b, "- Recent messages: %d\n", sig.RecentUserMsgs)
	fmt.Fprintf(&b, "- Pending check-ins: %d\n", sig.PendingTrackers)
	if sig.ConversationStep != "" {
		fmt.Fprintf(&b, "- Conversation stage: %s\n", sig.ConversationStep)
	}

	b.WriteString("\n**GOALS:**\n")
	if len(sig.GoalSummaries) == 0 {
		b.WriteString("No goals currently set\n")
	}
	for _, g := range sig.GoalSummaries {
		category := g.Category
		if category == "" {
			category = "No category"
		}
		fmt.Fprintf(&b, "- %s (%s) - Bot Assessment: %d%%, User Assessment: %d%%\n", g.Title, category, g.BotAssessmentPct, g.UserAssessmentPct)
	}

	b.WriteString("\n**TASKS:**\n")
	if sig.Tasks == 0 {
		b.WriteString("No tasks currently set\n")
	} else {
		fmt.Fprintf(&b, "PENDING: %d, IN_PROGRESS: %d, COMPLETED: %d\n",
			sig.StatusCounts[store.TaskPending], sig.StatusCounts[store.TaskInProgress], sig.StatusCounts[store.TaskCompleted])
		if len(sig.PendingTasks) > 0 {
			b.WriteString("Key Pending Tasks:\n")
		}
		for _, t := range sig.PendingTasks {
			due := "No due date"
			if t.DueDate != nil && *t.DueDate != "" {
				due = *t.DueDate
			}
			fmt.Fprintf(&b, "- %s (Due: %s)\n", t.DisplayTitle(), due)
		}
	}

	b.WriteString(`
**TASK:** This is your hourly reflection time to decide whether to proactively message this user or stay silent.

**MANDATORY RESPONSE FORMAT:**
1. **Silent reflection:** Use ONLY <strategize> tags
2. **Proactive message:** Use <strategize> AND <message> tags
3. **NO text outside these tags!**

**DECISION RUBRIC:**
- Review how recently and how often the user has been in touch
- Check goal progress and pending commitments
- Consider the time of day and whether a message would be welcome
- Prefer silence when a message would add nothing new

**DECISION:** Should I message this user now or maintain silent support?

**EXAMPLES:**
Silent: <strategize>User last responded 6 hours ago and I already sent a helpful message about their swimming goal. They need time to process. Decision: Stay silent.</strategize>

Message: <strategize>User mentioned wanting to go swimming twice weekly but hasn't scheduled sessions this week. Wednesday is good timing for a gentle reminder.</strategize>
<message>Hey! Noticed you wanted to go swimming twice this week but haven't scheduled any sessions yet. Want me to help you find some good times?</message>

Conduct your analysis now.`)
	return b.String()
}
