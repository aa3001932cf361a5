package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/navi/internal/adapter"
	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/daemon"
	"github.com/harunnryd/navi/internal/daemon/components"
	"github.com/harunnryd/navi/internal/model/contract"
	"github.com/harunnryd/navi/internal/oracle"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/scheduler"
	"github.com/harunnryd/navi/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRouter struct{}

func (stubRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	return &contract.CompletionResponse{}, nil
}
func (stubRouter) ListModels() []string             { return []string{"stub"} }
func (stubRouter) Health(ctx context.Context) error { return nil }

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestDaemonFullLifecycle(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "telegram_mappings.json")
	require.NoError(t, os.WriteFile(regPath, []byte(`{"42": {"email": "a@example.com", "channel": "null"}}`), 0644))

	port := freePort(t)
	cfg := &config.Config{
		Server: config.ServerConfig{Port: port},
		Data:   config.DataConfig{Root: dir, RegistryFile: regPath},
		Scheduler: config.SchedulerConfig{
			ShutdownTimeout: "2s",
			Checkin:         config.CheckinConfig{Enabled: true, Schedule: "@every 1h", RunOnStart: true, MaxMessageLen: 4000},
		},
		Delivery: config.DeliveryConfig{DefaultChannel: "null"},
		Daemon:   config.DaemonConfig{ShutdownTimeout: "5s", HealthCheckInterval: "1h"},
	}

	users := store.NewUserStore(dir, nil, nil)
	reg := registry.New(regPath, nil)
	st := store.NewUserState()
	st.Tasks = []store.Task{{TaskID: 1, Title: "Stretch", Status: store.TaskPending}}
	st.ProgressTrackers = []store.ProgressTracker{{TrackerID: 1, TaskID: 1, CheckInTime: "2000-01-01 00:00", Status: store.TrackerPending}}
	require.NoError(t, users.Save(context.Background(), "a@example.com", st))

	mgr, err := adapter.NewRuntimeManager(cfg.Adapters, cfg.Delivery, nil, adapter.RuntimeAdapterOptions{})
	require.NoError(t, err)
	sink := adapter.NewNullAdapter("null")
	mgr.Register(sink)

	consult := oracle.Func(func(ctx context.Context, s *oracle.Session, prompt string) (*oracle.Result, error) {
		msg := "Time to stretch!"
		return &oracle.Result{Reasoning: "due", UserMessage: &msg}, nil
	})
	checkin, err := scheduler.NewCheckinLoop(scheduler.Deps{
		Users:    users,
		Registry: reg,
		Oracle:   consult,
		Delivery: mgr,
	}, cfg.Scheduler)
	require.NoError(t, err)

	d, err := daemon.NewDaemon("integration", cfg)
	require.NoError(t, err)

	loopComp := components.NewLoopComponent(checkin)
	d.AddComponent(components.NewStoreComponent(users, reg))
	d.AddComponent(components.NewOracleComponent(stubRouter{}))
	d.AddComponent(components.NewAdaptersComponent(mgr))
	d.AddComponent(loopComp)
	d.AddComponent(components.NewHTTPServerComponentWithDependencies(d, &cfg.Server, []string{"Store", "Oracle", "Adapters", loopComp.Name()}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startDone := make(chan error, 1)
	go func() {
		startDone <- d.Start(ctx)
	}()

	require.Eventually(t, func() bool { return d.Health() == daemon.StatusRunning }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return len(sink.Delivered()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, adapter.Delivery{Address: "42", Text: "Time to stretch!"}, sink.Delivered()[0])
	require.Eventually(t, func() bool { return checkin.Status().Ticks == 1 }, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status     string `json:"status"`
		Components map[string]struct {
			Healthy bool            `json:"healthy"`
			Details json.RawMessage `json:"details"`
		} `json:"components"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Len(t, body.Components, 5)

	var loopStatus scheduler.LoopStatus
	require.NoError(t, json.Unmarshal(body.Components["CheckinLoop"].Details, &loopStatus))
	assert.True(t, loopStatus.Running)
	assert.EqualValues(t, 1, loopStatus.Ticks)

	saved, err := users.Load(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, store.TrackerNotified, saved.ProgressTrackers[0].Status)

	cancel()
	select {
	case err := <-startDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Equal(t, daemon.StatusStopped, d.Health())
	assert.False(t, checkin.IsRunning())
}

func TestDaemonStartFailsOnMissingDependency(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Port: freePort(t)},
		Data:   config.DataConfig{Root: t.TempDir(), RegistryFile: filepath.Join(t.TempDir(), "r.json")},
	}
	d, err := daemon.NewDaemon("broken", cfg)
	require.NoError(t, err)
	d.AddComponent(components.NewHTTPServerComponentWithDependencies(d, &cfg.Server, []string{"Store"}))

	err = d.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on Store which is not registered")
	assert.Equal(t, daemon.StatusStopped, d.Health())
}
