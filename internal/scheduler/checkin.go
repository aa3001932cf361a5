package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/harunnryd/navi/internal/agenda"
	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/guard"
	"github.com/harunnryd/navi/internal/logger"
	"github.com/harunnryd/navi/internal/oracle"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"
)

const fallbackReasoning = "Oracle unavailable - sent the standard check-in message."

// CheckinReport summarizes one user's check-in pass.
type CheckinReport struct {
	UserKey     string
	Fired       []int // tracker ids flipped to NOTIFIED
	Delivered   int
	Fallbacks   int
	Unparseable []int
}

// CheckinLoop fires due progress trackers. Every due tracker produces
// exactly one delivery attempt and is then NOTIFIED, whether or not the
// oracle or the delivery succeeded.
type CheckinLoop struct {
	*Loop
	deps  Deps
	guard *guard.Guard
}

func NewCheckinLoop(deps Deps, cfg config.SchedulerConfig) (*CheckinLoop, error) {
	c := &CheckinLoop{deps: deps, guard: guard.New(cfg.Checkin.MaxMessageLen)}
	loop, err := NewLoop("checkin", cfg.Checkin.Schedule, cfg.Checkin.RunOnStart, cfg.ShutdownTimeout, c.tick)
	if err != nil {
		return nil, err
	}
	c.Loop = loop
	return c, nil
}

func (c *CheckinLoop) tick(ctx context.Context) error {
	fired := 0
	err := c.deps.eachUser(ctx, func(ctx context.Context, entry registry.Entry) {
		report, err := c.checkUser(ctx, entry)
		if err != nil {
			logger.From(ctx).Error("Check-in failed for user", "category", errMapper.Category(err), "error", err)
			return
		}
		fired += len(report.Fired)
	})
	if fired > 0 {
		logger.From(ctx).Info("Check-in pass finished", "fired", fired)
	}
	return err
}

// CheckUserNow runs the check-in pass for one user immediately.
func (c *CheckinLoop) CheckUserNow(ctx context.Context, userKey string) (CheckinReport, error) {
	entry, err := c.deps.entryFor(userKey)
	if err != nil {
		return CheckinReport{UserKey: userKey}, err
	}
	ctx = logger.WithUserKey(logger.WithLoop(ctx, c.name), userKey)
	return c.checkUser(ctx, entry)
}

func (c *CheckinLoop) checkUser(ctx context.Context, entry registry.Entry) (CheckinReport, error) {
	report := CheckinReport{UserKey: entry.UserKey}
	log := logger.From(ctx)

	err := c.deps.Users.Update(ctx, entry.UserKey, func(st *store.UserState) error {
		report.Fired, report.Delivered, report.Fallbacks, report.Unparseable = nil, 0, 0, nil
		now := c.deps.now()
		loc := c.deps.location(st)

		due, bad := agenda.DueTrackers(st, now, loc)
		for _, b := range bad {
			log.Warn("Skipping tracker with unreadable check-in time", "tracker", b.TrackerID, "check_in_time", b.CheckInTime)
			report.Unparseable = append(report.Unparseable, b.TrackerID)
		}

		for _, d := range due {
			subject := resolveSubject(st, d)
			delivered, fallback := c.fire(ctx, entry, st, subject, now, loc)
			if agenda.MarkNotified(st, d.TrackerID) {
				report.Fired = append(report.Fired, d.TrackerID)
			}
			if delivered {
				report.Delivered++
			}
			if fallback {
				report.Fallbacks++
			}
		}
		return nil
	})
	return report, err
}

func resolveSubject(st *store.UserState, d agenda.DueTracker) checkinSubject {
	subject := checkinSubject{Tracker: d}
	if tr := st.FindTracker(d.TrackerID); tr != nil {
		subject.Raw = tr.CheckInTime
	}
	if d.TaskID == 0 {
		return subject
	}
	subject.Task = st.FindTask(d.TaskID)
	if subject.Task != nil && subject.Task.GoalID != nil {
		subject.Goal = st.FindGoal(*subject.Task.GoalID)
	}
	return subject
}

// fire consults the oracle for one tracker, records the exchange and
// attempts delivery. It reports whether delivery succeeded and whether the
// fixed template was used.
func (c *CheckinLoop) fire(ctx context.Context, entry registry.Entry, st *store.UserState, subject checkinSubject, now time.Time, loc *time.Location) (bool, bool) {
	log := logger.From(ctx).With("tracker", subject.Tracker.TrackerID, "task", subject.Tracker.TaskID)
	if subject.Tracker.TaskID != 0 && subject.Task == nil {
		log.Warn("Tracker task not found, sending a general check-in")
	}

	prompt := checkinPrompt(subject, now.In(loc))
	session := &oracle.Session{UserKey: entry.UserKey, State: st, Now: now, Location: loc}
	result, err := c.deps.Oracle.Consult(ctx, session, prompt)

	appendHistory(st, store.RoleSystem, checkinEntryText(prompt), now)

	var reasoning, text string
	if err != nil {
		log.Error("Check-in oracle call failed, using fallback", "category", errMapper.Category(err), "error", err)
		reasoning = fallbackReasoning
	} else {
		decision := c.guard.Apply(result.GuardInput())
		if len(decision.Corrections) > 0 {
			log.Warn("Check-in reply corrected", "corrections", decision.Corrections)
		}
		reasoning = decision.Reasoning
		if !decision.Silent() {
			text = guard.StripMarkup(*decision.UserMessage)
		}
		if names := result.ToolNames(); len(names) > 0 {
			log.Debug("Check-in tools executed", "tools", names)
		}
	}

	fallback := strings.TrimSpace(text) == ""
	if fallback {
		text = checkinFallback(subject)
	}
	appendHistory(st, store.RoleModel, oracle.FormatReply(reasoning, &text), c.deps.now())

	if err := c.deps.deliver(ctx, entry, text); err != nil {
		return false, fallback
	}
	log.Info("Sent check-in", "fallback", fallback)
	return true, fallback
}
