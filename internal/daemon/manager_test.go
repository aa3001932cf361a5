package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/navi/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects lifecycle calls across components in call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeComponent struct {
	name     string
	deps     []string
	rec      *recorder
	initErr  error
	startErr error
	stopErr  error

	mu        sync.Mutex
	health    *ComponentHealth
	healthErr error
}

func newFake(rec *recorder, name string, deps ...string) *fakeComponent {
	return &fakeComponent{name: name, deps: deps, rec: rec, health: Healthy(name, nil)}
}

func (f *fakeComponent) Name() string           { return f.name }
func (f *fakeComponent) Dependencies() []string { return f.deps }

func (f *fakeComponent) Init(ctx context.Context) error {
	f.rec.add("init " + f.name)
	return f.initErr
}

func (f *fakeComponent) Start(ctx context.Context) error {
	f.rec.add("start " + f.name)
	return f.startErr
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	f.rec.add("stop " + f.name)
	return f.stopErr
}

func (f *fakeComponent) Health(ctx context.Context) (*ComponentHealth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health, f.healthErr
}

func (f *fakeComponent) setHealthy(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.health = Healthy(f.name, nil)
	} else {
		f.health = Unhealthy(f.name, errors.New("degraded"), nil)
	}
}

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	d, err := NewDaemon("test", &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Data:   config.DataConfig{Root: t.TempDir()},
	})
	require.NoError(t, err)
	return d
}

func TestNewDaemon(t *testing.T) {
	_, err := NewDaemon("", &config.Config{})
	assert.Error(t, err)
	_, err = NewDaemon("x", nil)
	assert.Error(t, err)

	d, err := NewDaemon("x", &config.Config{})
	require.NoError(t, err)
	assert.Equal(t, StatusStarting, d.Health())
	assert.Empty(t, d.snapshot())
}

func TestValidateConfig(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	d, _ := NewDaemon("test", &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Data:   config.DataConfig{Root: root},
	})
	require.NoError(t, d.validateConfig())
	assert.DirExists(t, filepath.Join(root, "users"))

	for name, cfg := range map[string]*config.Config{
		"port out of range": {Server: config.ServerConfig{Port: 70000}},
		"unknown timezone": {
			Server:    config.ServerConfig{Port: 8080},
			Data:      config.DataConfig{Root: t.TempDir()},
			Scheduler: config.SchedulerConfig{DefaultTimezone: "Mars/Olympus_Mons"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			d, _ := NewDaemon("test", cfg)
			assert.Error(t, d.validateConfig())
		})
	}
}

func TestPreInitChecks_ToleratesCorruptRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telegram_mappings.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0644))
	d, _ := NewDaemon("test", &config.Config{Data: config.DataConfig{RegistryFile: path}})

	assert.NoError(t, d.preInitChecks(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, d.preInitChecks(ctx))
}

func TestAddComponent(t *testing.T) {
	rec := &recorder{}
	d := newTestDaemon(t)
	d.AddComponent(newFake(rec, "Comp1"))
	d.AddComponent(newFake(rec, "Comp2", "Comp1"))

	assert.Equal(t, []string{"Comp1", "Comp2"}, names(d.snapshot()))
	assert.NotNil(t, d.Component("Comp2"))
	assert.Nil(t, d.Component("Comp3"))
}

func TestInitOrder(t *testing.T) {
	rec := &recorder{}
	http := newFake(rec, "HTTP", "Loop", "Store")
	loop := newFake(rec, "Loop", "Store")
	st := newFake(rec, "Store")

	ordered, err := initOrder([]Component{http, loop, st})
	require.NoError(t, err)
	assert.Equal(t, []string{"Store", "Loop", "HTTP"}, names(ordered))

	_, err = initOrder([]Component{st, newFake(rec, "Store")})
	assert.ErrorContains(t, err, "registered twice")

	_, err = initOrder([]Component{newFake(rec, "Comp", "Missing")})
	assert.ErrorContains(t, err, "depends on Missing which is not registered")

	_, err = initOrder([]Component{newFake(rec, "A", "B"), newFake(rec, "B", "A")})
	assert.ErrorContains(t, err, "A -> B -> A")
}

func TestLifecycleOrder(t *testing.T) {
	rec := &recorder{}
	d := newTestDaemon(t)
	d.AddComponent(newFake(rec, "HTTP", "Store"))
	d.AddComponent(newFake(rec, "Store"))

	ctx := context.Background()
	require.NoError(t, d.initializeComponents(ctx))
	require.NoError(t, d.startComponents(ctx))
	require.NoError(t, d.shutdownComponents(ctx))

	assert.Equal(t, []string{
		"init Store", "init HTTP",
		"start HTTP", "start Store",
		"stop Store", "stop HTTP",
	}, rec.list(), "init follows dependencies, start follows registration, stop reverses it")
	assert.Equal(t, StatusStopped, d.Health())
}

func TestShutdownContinuesPastFailures(t *testing.T) {
	rec := &recorder{}
	d := newTestDaemon(t)
	d.AddComponent(newFake(rec, "Comp1"))
	stuck := newFake(rec, "Comp2")
	stuck.stopErr = errors.New("stuck tick")
	d.AddComponent(stuck)

	require.NoError(t, d.initializeComponents(context.Background()))
	err := d.shutdownComponents(context.Background())

	assert.ErrorContains(t, err, "stop Comp2: stuck tick")
	assert.Contains(t, rec.list(), "stop Comp1")
	assert.Equal(t, StatusStopped, d.Health())
}

func TestRollbackStopsOnlyInitialized(t *testing.T) {
	rec := &recorder{}
	d := newTestDaemon(t)
	d.AddComponent(newFake(rec, "Comp1"))
	broken := newFake(rec, "Comp2", "Comp1")
	broken.initErr = errors.New("no token")
	d.AddComponent(broken)
	d.AddComponent(newFake(rec, "Comp3", "Comp2"))

	require.Error(t, d.initializeComponents(context.Background()))
	d.rollback(context.Background())

	assert.Equal(t, []string{"init Comp1", "init Comp2", "stop Comp1"}, rec.list())
	assert.Equal(t, StatusStopped, d.Health())
}

func TestStartRollsBackOnStartupFailure(t *testing.T) {
	rec := &recorder{}
	d := newTestDaemon(t)
	d.AddComponent(newFake(rec, "Store"))
	bad := newFake(rec, "Adapters", "Store")
	bad.startErr = errors.New("port in use")
	d.AddComponent(bad)

	err := d.Start(context.Background())
	assert.ErrorContains(t, err, "component Adapters startup failed")
	assert.Equal(t, []string{
		"init Store", "init Adapters",
		"start Store", "start Adapters",
		"stop Adapters", "stop Store",
	}, rec.list())
	assert.Equal(t, StatusStopped, d.Health())
}

func TestStartReturnsContextErrorAfterShutdown(t *testing.T) {
	rec := &recorder{}
	d := newTestDaemon(t)
	d.AddComponent(newFake(rec, "Store"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	require.Eventually(t, func() bool { return d.Health() == StatusRunning }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	assert.Equal(t, StatusStopped, d.Health())
	assert.Equal(t, []string{"init Store", "start Store", "stop Store"}, rec.list())
}

func TestComponentHealth(t *testing.T) {
	rec := &recorder{}
	d := newTestDaemon(t)
	ok := newFake(rec, "Comp1")
	bad := newFake(rec, "Comp2")
	bad.setHealthy(false)
	probe := newFake(rec, "Comp3")
	probe.health = nil
	probe.healthErr = errors.New("probe failed")
	d.AddComponent(ok)
	d.AddComponent(bad)
	d.AddComponent(probe)

	h := d.ComponentHealth()
	require.Len(t, h, 3)
	assert.True(t, h["Comp1"].Healthy)
	assert.False(t, h["Comp2"].Healthy)
	assert.Error(t, h["Comp2"].Error)
	assert.False(t, h["Comp3"].Healthy, "a probe error overrides the report")
	assert.Equal(t, "Comp3", h["Comp3"].Name)
}

func TestReportHealthTracksTransitions(t *testing.T) {
	rec := &recorder{}
	d := newTestDaemon(t)
	flaky := newFake(rec, "Flaky")
	d.AddComponent(flaky)
	d.AddComponent(newFake(rec, "Steady"))

	flaky.setHealthy(false)
	down := d.reportHealth(nil)
	assert.Equal(t, "Flaky", strings.Join(down, ","))
	assert.Equal(t, down, d.reportHealth(down), "a still-unhealthy component stays listed")

	flaky.setHealthy(true)
	assert.Empty(t, d.reportHealth(down))
}
