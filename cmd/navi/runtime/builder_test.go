package runtime

import (
	"bytes"
	"context"
	"os"
	"testing"

	naviErrors "github.com/harunnryd/navi/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderKeepsBackgroundContextForNil(t *testing.T) {
	//nolint:staticcheck // a nil context is what the guard is for
	b := NewRuntimeBuilder().WithContext(nil)
	assert.NotNil(t, b.ctx)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	assert.Equal(t, ctx, NewRuntimeBuilder().WithContext(ctx).ctx)
}

func TestOptionsWithDefaults(t *testing.T) {
	assert.Equal(t, os.Stdout, Options{}.withDefaults().Output)

	var buf bytes.Buffer
	got := Options{Local: true, Output: &buf}.withDefaults()
	assert.Same(t, &buf, got.Output)
	assert.True(t, got.Local)
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := NewRuntimeBuilder().Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, naviErrors.ErrInvalidInput)
}

func TestBuildWiresLoopsWithoutStarting(t *testing.T) {
	cfg := loadTestConfig(t)

	components, err := NewRuntimeBuilder().
		WithConfig(cfg).
		WithOptions(Options{IncludeNull: true}).
		Build()
	require.NoError(t, err)
	defer components.Stop()

	require.NotNil(t, components.Checkin)
	require.NotNil(t, components.Reflection)
	assert.Equal(t, "checkin", components.Checkin.Name())
	assert.NotEmpty(t, components.ToolRegistry.Definitions())
	assert.False(t, components.Checkin.IsRunning())
	assert.False(t, components.Reflection.IsRunning())
}
