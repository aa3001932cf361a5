package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterruptibleFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, release := interruptible(parent, &bytes.Buffer{})
	defer release()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("child context not cancelled with parent")
	}
}

func TestInterruptibleReleaseCancels(t *testing.T) {
	var notice bytes.Buffer
	ctx, release := interruptible(nil, &notice)
	release()

	assert.Error(t, ctx.Err())
	assert.Empty(t, notice.String(), "no signal was delivered")
}
