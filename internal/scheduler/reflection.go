package scheduler

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/guard"
	"github.com/harunnryd/navi/internal/logger"
	"github.com/harunnryd/navi/internal/oracle"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"
)

// ReflectionReport summarizes one user's reflection.
type ReflectionReport struct {
	UserKey     string
	Action      string
	Message     *string
	Delivered   bool
	Corrections []string
	Tools       []string
}

// ReflectionLoop asks the oracle, for every registered user on every tick,
// whether to reach out unprompted.
type ReflectionLoop struct {
	*Loop
	deps           Deps
	guard          *guard.Guard
	maxDeliveryLen int
	historyCap     int
}

func NewReflectionLoop(deps Deps, cfg config.SchedulerConfig) (*ReflectionLoop, error) {
	r := &ReflectionLoop{
		deps:           deps,
		guard:          guard.New(cfg.Reflection.MaxMessageLen),
		maxDeliveryLen: cfg.Reflection.MaxDeliveryLen,
		historyCap:     cfg.Reflection.HistoryCap,
	}
	if r.historyCap <= 0 {
		r.historyCap = config.DefaultReflectionHistoryCap
	}
	loop, err := NewLoop("reflection", cfg.Reflection.Schedule, cfg.Reflection.RunOnStart, cfg.ShutdownTimeout, r.tick)
	if err != nil {
		return nil, err
	}
	r.Loop = loop
	return r, nil
}

func (r *ReflectionLoop) tick(ctx context.Context) error {
	sent, silent := 0, 0
	err := r.deps.eachUser(ctx, func(ctx context.Context, entry registry.Entry) {
		report, err := r.reflect(ctx, entry)
		if err != nil {
			logger.From(ctx).Error("Reflection failed for user", "category", errMapper.Category(err), "error", err)
			return
		}
		if report.Action == store.ActionMessageSent {
			sent++
		} else {
			silent++
		}
	})
	logger.From(ctx).Info("Reflection pass finished", "messages", sent, "silent", silent)
	return err
}

// TriggerNow runs a reflection for one user immediately.
func (r *ReflectionLoop) TriggerNow(ctx context.Context, userKey string) (ReflectionReport, error) {
	entry, err := r.deps.entryFor(userKey)
	if err != nil {
		return ReflectionReport{UserKey: userKey}, err
	}
	ctx = logger.WithUserKey(logger.WithLoop(ctx, r.name), userKey)
	return r.reflect(ctx, entry)
}

// reflect runs one reflection inside the user's update span. An oracle
// failure aborts the span, so nothing about the attempt is saved.
func (r *ReflectionLoop) reflect(ctx context.Context, entry registry.Entry) (ReflectionReport, error) {
	report := ReflectionReport{UserKey: entry.UserKey}
	log := logger.From(ctx)

	err := r.deps.Users.Update(ctx, entry.UserKey, func(st *store.UserState) error {
		now := r.deps.now()
		loc := r.deps.location(st)
		prompt := reflectionPrompt(computeSignals(st, entry.UserKey, now, loc))

		session := &oracle.Session{UserKey: entry.UserKey, State: st, Now: now, Location: loc}
		result, err := r.deps.Oracle.Consult(ctx, session, prompt)
		if err != nil {
			return fmt.Errorf("consult oracle: %w", err)
		}

		decision := r.guard.Apply(result.GuardInput())
		corrections := append([]string{}, decision.Corrections...)
		if len(corrections) > 0 {
			log.Warn("Reflection reply corrected", "corrections", corrections)
		}

		record := store.ReflectionRecord{
			Timestamp:      store.FormatHistoryTime(now),
			AIAnalysis:     decision.Reasoning,
			ToolExecutions: result.ToolNames(),
		}

		if decision.Silent() {
			appendHistory(st, store.RoleSystem, silentReflectionMarker+"\n"+prompt, now)
			appendHistory(st, store.RoleModel, oracle.FormatReply(decision.Reasoning, nil), r.deps.now())
			record.ActionTaken = store.ActionSilentReflection
		} else {
			msg := *decision.UserMessage
			appendHistory(st, store.RoleSystem, reflectionMarker+"\n"+prompt, now)
			appendHistory(st, store.RoleModel, oracle.FormatReply(decision.Reasoning, &msg), r.deps.now())
			record.ActionTaken = store.ActionMessageSent
			record.MessageContent = &msg

			delivered, note := r.deliver(ctx, entry, msg)
			if note != "" {
				corrections = append(corrections, note)
			}
			report.Message = &msg
			report.Delivered = delivered
		}

		record.FormattingCorrections = corrections
		st.HourlyReflections = append(st.HourlyReflections, record)
		if n := len(st.HourlyReflections); n > r.historyCap {
			st.HourlyReflections = append([]store.ReflectionRecord(nil), st.HourlyReflections[n-r.historyCap:]...)
		}

		report.Action = record.ActionTaken
		report.Corrections = corrections
		report.Tools = record.ToolExecutions
		log.Info("Reflection finished", "action", record.ActionTaken, "delivered", report.Delivered)
		return nil
	})
	return report, err
}

// deliver strips markup and refuses empty or oversized text. The note
// explains a refusal for the reflection record.
func (r *ReflectionLoop) deliver(ctx context.Context, entry registry.Entry, msg string) (bool, string) {
	log := logger.From(ctx)
	text := guard.StripMarkup(msg)
	if text == "" {
		log.Warn("Reflection message empty after markup removal, not sending")
		return false, "Message empty after markup removal - not delivered"
	}
	if n := utf8.RuneCountInString(text); r.maxDeliveryLen > 0 && n > r.maxDeliveryLen {
		log.Warn("Reflection message too long to deliver", "chars", n, "limit", r.maxDeliveryLen)
		return false, fmt.Sprintf("Message too long to deliver (%d chars, limit %d)", n, r.maxDeliveryLen)
	}
	if err := r.deps.deliver(ctx, entry, text); err != nil {
		return false, ""
	}
	return true, ""
}
