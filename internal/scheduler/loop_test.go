package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoop_InvalidSchedule(t *testing.T) {
	_, err := NewLoop("bad", "every so often", false, "1s", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, naviErrors.ErrInvalidInput)

	_, err = NewLoop("bad", "@every 1h", false, "soon", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestLoop_RunOnStartAndStop(t *testing.T) {
	var ticks atomic.Int32
	ran := make(chan struct{}, 1)
	loop, err := NewLoop("test", "@every 1h", true, "1s", func(context.Context) error {
		ticks.Add(1)
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	assert.Error(t, loop.Health(context.Background()), "a stopped loop is unhealthy")

	require.NoError(t, loop.Start(context.Background()))
	require.NoError(t, loop.Start(context.Background()), "Start is idempotent")
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("run_on_start tick never ran")
	}

	assert.True(t, loop.IsRunning())
	assert.Eventually(t, func() bool {
		st := loop.Status()
		return st.Ticks == 1 && !st.NextTick.IsZero()
	}, time.Second, 10*time.Millisecond)
	assert.NoError(t, loop.Health(context.Background()))
	status := loop.Status()
	assert.Equal(t, "test", status.Name)
	assert.Equal(t, "@every 1h", status.Schedule)

	require.NoError(t, loop.Stop(context.Background()))
	require.NoError(t, loop.Stop(context.Background()), "Stop is idempotent")
	assert.False(t, loop.IsRunning())
	assert.EqualValues(t, 1, ticks.Load())
}

func TestLoop_StopWaitsForTickInProgress(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	loop, err := NewLoop("slow", "@every 1h", true, "2s", func(ctx context.Context) error {
		close(started)
		<-release
		finished.Store(ctx.Err() == nil)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, loop.Start(context.Background()))
	<-started

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, loop.Stop(context.Background()))
	assert.True(t, finished.Load(), "the tick must finish with a live context")
}

func TestLoop_StopTimeoutAbortsTick(t *testing.T) {
	started := make(chan struct{})
	loop, err := NewLoop("stuck", "@every 1h", true, "50ms", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	require.NoError(t, loop.Start(context.Background()))
	<-started

	err = loop.Stop(context.Background())
	assert.ErrorIs(t, err, naviErrors.ErrInternal)
	assert.Contains(t, err.Error(), "shutdown timeout")
	assert.Contains(t, loop.Status().LastError, context.Canceled.Error())
}

func TestLoop_RunOnceRecordsFailuresAndPanics(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	loop, err := NewLoop("flaky", "@every 1h", false, "1s", func(context.Context) error {
		switch calls.Add(1) {
		case 1:
			return boom
		case 2:
			panic("kaboom")
		}
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, loop.RunOnce(context.Background()), boom)
	assert.Equal(t, "boom", loop.Status().LastError)

	err = loop.RunOnce(context.Background())
	assert.ErrorIs(t, err, naviErrors.ErrInternal)
	assert.Contains(t, err.Error(), "kaboom")

	require.NoError(t, loop.RunOnce(context.Background()))
	status := loop.Status()
	assert.Empty(t, status.LastError)
	assert.EqualValues(t, 3, status.Ticks)
	assert.False(t, status.InTick)
}

func TestLoop_HealthReportsLastTickError(t *testing.T) {
	fail := atomic.Bool{}
	fail.Store(true)
	loop, err := NewLoop("h", "@every 1h", false, "1s", func(context.Context) error {
		if fail.Load() {
			return errors.New("registry unreadable")
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, loop.Start(context.Background()))
	defer func() { require.NoError(t, loop.Stop(context.Background())) }()

	_ = loop.RunOnce(context.Background())
	assert.ErrorIs(t, loop.Health(context.Background()), naviErrors.ErrTransient)

	fail.Store(false)
	require.NoError(t, loop.RunOnce(context.Background()))
	assert.NoError(t, loop.Health(context.Background()))
}
