package components

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/navi/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoop struct {
	started, stopped bool
	healthErr        error
}

func (f *fakeLoop) Name() string                     { return "reflection" }
func (f *fakeLoop) Start(ctx context.Context) error  { f.started = true; return nil }
func (f *fakeLoop) Stop(ctx context.Context) error   { f.stopped = true; return nil }
func (f *fakeLoop) Health(ctx context.Context) error { return f.healthErr }
func (f *fakeLoop) Status() scheduler.LoopStatus {
	return scheduler.LoopStatus{Name: "reflection", Schedule: "@every 1h", Running: f.started && !f.stopped}
}

func TestLoopComponent(t *testing.T) {
	loop := &fakeLoop{}
	comp := NewLoopComponent(loop)
	ctx := context.Background()

	assert.Equal(t, "ReflectionLoop", comp.Name())
	assert.Equal(t, []string{"Store", "Oracle", "Adapters"}, comp.Dependencies())

	require.NoError(t, comp.Init(ctx))
	require.NoError(t, comp.Start(ctx))
	assert.True(t, loop.started)

	h, err := comp.Health(ctx)
	require.NoError(t, err)
	assert.True(t, h.Healthy)
	status, ok := h.Details.(scheduler.LoopStatus)
	require.True(t, ok)
	assert.True(t, status.Running)

	loop.healthErr = errors.New("last tick failed")
	h, err = comp.Health(ctx)
	require.NoError(t, err)
	assert.False(t, h.Healthy)
	assert.EqualError(t, h.Error, "last tick failed")

	require.NoError(t, comp.Stop(ctx))
	assert.True(t, loop.stopped)
}
