package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/oracle"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type delivery struct {
	Channel, Address, Text string
}

type recordingDeliverer struct {
	mu    sync.Mutex
	calls []delivery
	err   error
}

func (r *recordingDeliverer) Deliver(ctx context.Context, channel, address, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, delivery{Channel: channel, Address: address, Text: text})
	return r.err
}

func (r *recordingDeliverer) Calls() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.calls...)
}

// scriptedOracle answers every consultation with reply, or err when set.
type scriptedOracle struct {
	mu      sync.Mutex
	reply   string
	err     error
	failFor map[string]error
	prompts []string
}

func (o *scriptedOracle) Consult(ctx context.Context, s *oracle.Session, prompt string) (*oracle.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompts = append(o.prompts, prompt)
	if err := o.failFor[s.UserKey]; err != nil {
		return nil, err
	}
	if o.err != nil {
		return nil, o.err
	}
	reasoning, message := oracle.ParseReply(o.reply)
	return &oracle.Result{Reasoning: reasoning, UserMessage: message, Raw: o.reply}, nil
}

type fixture struct {
	t        *testing.T
	dir      string
	users    *store.UserStore
	registry *registry.Registry
	oracle   *scriptedOracle
	delivery *recordingDeliverer
	deps     Deps
	schedCfg config.SchedulerConfig
}

func newFixture(t *testing.T, registryJSON string) *fixture {
	t.Helper()
	dir := t.TempDir()
	regPath := filepath.Join(dir, "telegram_mappings.json")
	require.NoError(t, os.WriteFile(regPath, []byte(registryJSON), 0644))

	f := &fixture{
		t:        t,
		dir:      dir,
		users:    store.NewUserStore(dir, nil, nil),
		registry: registry.New(regPath, nil),
		oracle:   &scriptedOracle{reply: "<strategize>Checked in.</strategize><message>How is the tour going?</message>"},
		delivery: &recordingDeliverer{},
		schedCfg: config.SchedulerConfig{
			ShutdownTimeout: "2s",
			Checkin:         config.CheckinConfig{Schedule: "@every 1h", MaxMessageLen: 4000},
			Reflection:      config.ReflectionConfig{Schedule: "@every 1h", MaxMessageLen: 800, MaxDeliveryLen: 1000, HistoryCap: 24},
		},
	}
	f.deps = Deps{
		Users:           f.users,
		Registry:        f.registry,
		Oracle:          f.oracle,
		Delivery:        f.delivery,
		DefaultLocation: time.UTC,
		Now:             func() time.Time { return testNow },
	}
	return f
}

func (f *fixture) save(key string, st *store.UserState) {
	f.t.Helper()
	require.NoError(f.t, f.users.Save(context.Background(), key, st))
}

func (f *fixture) load(key string) *store.UserState {
	f.t.Helper()
	st, err := f.users.Load(context.Background(), key)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) checkin() *CheckinLoop {
	f.t.Helper()
	c, err := NewCheckinLoop(f.deps, f.schedCfg)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) reflection() *ReflectionLoop {
	f.t.Helper()
	r, err := NewReflectionLoop(f.deps, f.schedCfg)
	require.NoError(f.t, err)
	return r
}

// stateWithTracker has goal 1, task 5 under it and tracker 1 on task 5.
func stateWithTracker(checkIn string) *store.UserState {
	st := store.NewUserState()
	goalID := 1
	st.Goals = []store.Goal{{GoalID: 1, Title: "Learn Go", GoalLog: []string{}}}
	st.Tasks = []store.Task{{TaskID: 5, GoalID: &goalID, Title: "Tour of Go", Description: "Finish the Go tour", Status: store.TaskInProgress}}
	st.ProgressTrackers = []store.ProgressTracker{{TrackerID: 1, TaskID: 5, CheckInTime: checkIn, Status: store.TrackerPending}}
	st.Metadata = store.Metadata{NextGoalID: 2, NextTaskID: 6, NextProgressTrackerID: 2}
	return st
}
