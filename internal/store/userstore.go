package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/harunnryd/navi/internal/concurrency"
	naviErrors "github.com/harunnryd/navi/internal/errors"

	"github.com/natefinch/atomic"
)

// UserStore persists one UserState document per user under
// <root>/users/<key>/state.json.
type UserStore struct {
	root    string
	lockCfg *FileLockConfig
	locks   *concurrency.KeyedLocker
	now     func() time.Time
}

func NewUserStore(root string, lockCfg *FileLockConfig, locks *concurrency.KeyedLocker) *UserStore {
	if lockCfg == nil {
		lockCfg = DefaultFileLockConfig()
	}
	if locks == nil {
		locks = concurrency.NewKeyedLocker()
	}
	return &UserStore{
		root:    root,
		lockCfg: lockCfg,
		locks:   locks,
		now:     time.Now,
	}
}

func (s *UserStore) Root() string {
	return s.root
}

// Exists reports whether key already has a document on disk.
func (s *UserStore) Exists(key string) bool {
	path, err := GetStatePath(s.root, key)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Load returns the user's document. Content problems never surface as
// errors: a missing document is created with the default shape, and an
// unreadable or corrupt one yields a fresh default that is not written back.
// Only an invalid key is an error.
func (s *UserStore) Load(ctx context.Context, key string) (*UserState, error) {
	path, err := GetStatePath(s.root, key)
	if err != nil {
		return nil, err
	}

	state, err := s.read(path, key)
	switch {
	case err == nil:
		return state, nil
	case os.IsNotExist(err):
		state = NewUserState()
		createErr := s.withUserLock(ctx, key, func() error {
			if s.Exists(key) {
				return nil
			}
			return s.write(path, state)
		})
		if createErr != nil {
			slog.Warn("Failed to create default user document", "user", key, "error", createErr)
		}
		return state, nil
	default:
		slog.Error("Falling back to default user document", "user", key, "path", path, "error", err)
		return NewUserState(), nil
	}
}

// Save overwrites the user's document in full.
func (s *UserStore) Save(ctx context.Context, key string, state *UserState) error {
	path, err := GetStatePath(s.root, key)
	if err != nil {
		return err
	}
	return s.withUserLock(ctx, key, func() error {
		return s.write(path, state)
	})
}

// Update runs fn against the freshly loaded document and saves the result.
// The in-process and on-disk locks for key are held for the whole span,
// so two loops touching the same user cannot interleave. Nothing is saved
// when fn returns an error.
//
// Unlike Load, an unreadable document aborts the update instead of being
// replaced, since the write would otherwise destroy it. A corrupt document
// is moved aside and replaced by a default one.
func (s *UserStore) Update(ctx context.Context, key string, fn func(*UserState) error) error {
	path, err := GetStatePath(s.root, key)
	if err != nil {
		return err
	}

	return s.withUserLock(ctx, key, func() error {
		state, err := s.read(path, key)
		switch {
		case err == nil:
		case os.IsNotExist(err):
			state = NewUserState()
		case naviErrors.IsCategory(err, naviErrors.ErrCorruptDocument):
			slog.Warn("Resetting corrupt user document", "user", key, "error", err)
			s.preserveCorrupt(path)
			state = NewUserState()
		default:
			return naviErrors.WrapWithCategory(err, "read user document", naviErrors.ErrTransient)
		}

		if err := fn(state); err != nil {
			return err
		}
		return s.write(path, state)
	})
}

func (s *UserStore) withUserLock(ctx context.Context, key string, fn func() error) error {
	lockPath, err := GetLockPath(s.root, key)
	if err != nil {
		return err
	}
	return s.locks.WithLock(ctx, key, func() error {
		fl, err := AcquireFileLock(ctx, key, lockPath, s.lockCfg)
		if err != nil {
			return err
		}
		defer fl.Unlock()
		return fn()
	})
}

func (s *UserStore) read(path, key string) (*UserState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	state, report, err := DecodeState(data)
	if err != nil {
		return nil, err
	}
	if report.DroppedHistory > 0 {
		slog.Debug("Dropped malformed chat history entries", "user", key, "count", report.DroppedHistory)
	}
	for _, field := range report.Healed {
		slog.Info("Added missing field to existing state", "user", key, "field", field)
	}
	return state, nil
}

func (s *UserStore) write(path string, state *UserState) error {
	if state == nil {
		return naviErrors.InvalidInput("nil user state")
	}
	data, err := EncodeState(state)
	if err != nil {
		return naviErrors.WrapWithCategory(err, "encode user state", naviErrors.ErrInternal)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (s *UserStore) preserveCorrupt(path string) {
	aside := fmt.Sprintf("%s.corrupt-%d", path, s.now().Unix())
	if err := os.Rename(path, aside); err != nil {
		slog.Warn("Could not move corrupt document aside", "path", path, "error", err)
		return
	}
	slog.Info("Moved corrupt document aside", "path", aside)
}

// EncodeState renders the canonical on-disk form.
func EncodeState(state *UserState) ([]byte, error) {
	return json.MarshalIndent(state, "", "  ")
}

// DecodeReport lists what DecodeState had to repair.
type DecodeReport struct {
	DroppedHistory int
	Healed         []string
}

// DecodeState parses a document, drops malformed chat history entries and
// fills in any missing top-level fields. Anything that is not a JSON object
// of the expected shape is ErrCorruptDocument.
func DecodeState(data []byte) (*UserState, DecodeReport, error) {
	var report DecodeReport

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, report, naviErrors.CorruptDocument("empty document")
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, report, naviErrors.WrapWithCategory(err, "document is not an object", naviErrors.ErrCorruptDocument)
	}
	if top == nil {
		return nil, report, naviErrors.CorruptDocument("document is null")
	}

	var history []ChatEntry
	if raw, ok := top["chat_history"]; ok {
		history, report.DroppedHistory = cleanHistory(raw)
		delete(top, "chat_history")
	}

	rest, err := json.Marshal(top)
	if err != nil {
		return nil, report, naviErrors.WrapWithCategory(err, "re-encode document", naviErrors.ErrCorruptDocument)
	}
	var state UserState
	if err := json.Unmarshal(rest, &state); err != nil {
		return nil, report, naviErrors.WrapWithCategory(err, "document has unexpected shape", naviErrors.ErrCorruptDocument)
	}
	state.ChatHistory = history

	report.Healed = heal(&state, top, history != nil)
	return &state, report, nil
}

// heal merges defaults into fields that are absent, keeping every present
// value. present lists the top-level keys found on disk.
func heal(state *UserState, present map[string]json.RawMessage, hadHistory bool) []string {
	def := NewUserState()
	var healed []string
	missing := func(key string) bool {
		raw, ok := present[key]
		return !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
	}

	if missing("metadata") {
		state.Metadata = def.Metadata
		healed = append(healed, "metadata")
	}
	if missing("user_details") || state.UserDetails == nil {
		state.UserDetails = def.UserDetails
		healed = append(healed, "user_details")
	}
	if missing("user_preferences") || state.UserPreferences == nil {
		state.UserPreferences = def.UserPreferences
		healed = append(healed, "user_preferences")
	}
	if missing("conversation_stage") {
		state.ConversationStage = def.ConversationStage
		healed = append(healed, "conversation_stage")
	}
	if state.Goals == nil {
		state.Goals = def.Goals
		healed = append(healed, "goals")
	}
	if state.Tasks == nil {
		state.Tasks = def.Tasks
		healed = append(healed, "tasks")
	}
	if state.ProgressTrackers == nil {
		state.ProgressTrackers = def.ProgressTrackers
		healed = append(healed, "progress_trackers")
	}
	if state.HourlyReflections == nil {
		state.HourlyReflections = def.HourlyReflections
		healed = append(healed, "hourly_reflections")
	}
	if !hadHistory {
		state.ChatHistory = def.ChatHistory
		healed = append(healed, "chat_history")
	}

	healCounters(state)
	return healed
}

// healCounters keeps every counter above the highest id in use so a hand
// edited or partially written document can never hand out a duplicate id.
func healCounters(state *UserState) {
	m := &state.Metadata
	for _, g := range state.Goals {
		if g.GoalID >= m.NextGoalID {
			m.NextGoalID = g.GoalID + 1
		}
	}
	for _, t := range state.Tasks {
		if t.TaskID >= m.NextTaskID {
			m.NextTaskID = t.TaskID + 1
		}
	}
	for _, p := range state.ProgressTrackers {
		if p.TrackerID >= m.NextProgressTrackerID {
			m.NextProgressTrackerID = p.TrackerID + 1
		}
	}
	if m.NextGoalID < 1 {
		m.NextGoalID = 1
	}
	if m.NextTaskID < 1 {
		m.NextTaskID = 1
	}
	if m.NextProgressTrackerID < 1 {
		m.NextProgressTrackerID = 1
	}
}
