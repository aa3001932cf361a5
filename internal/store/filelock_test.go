package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"
)

func shortLockConfig(timeout time.Duration) *FileLockConfig {
	retry := 10 * time.Millisecond
	maxRetry := int(timeout / retry)
	if maxRetry < 1 {
		maxRetry = 1
	}
	return &FileLockConfig{
		LockTimeout:  timeout,
		LockRetry:    retry,
		LockMaxRetry: maxRetry,
	}
}

func TestAcquireFileLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "users", "a@example.com", "state.lock")

	lock, err := AcquireFileLock(context.Background(), "a@example.com", lockPath, nil)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if !lock.IsLocked() {
		t.Error("Expected lock to be held")
	}

	lock.Unlock()
	if lock.IsLocked() {
		t.Error("Expected lock to be released after Unlock()")
	}

	// double unlock is a no-op
	lock.Unlock()
}

func TestFileLockConcurrentAcquireTimesOut(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state.lock")
	cfg := shortLockConfig(120 * time.Millisecond)

	lock1, err := AcquireFileLock(context.Background(), "u", lockPath, cfg)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Unlock()

	start := time.Now()
	lock2, err := AcquireFileLock(context.Background(), "u", lockPath, cfg)
	if err == nil {
		lock2.Unlock()
		t.Fatal("Expected second lock acquisition to fail")
	}
	if !errors.Is(err, naviErrors.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("Expected retry behavior before failing, got elapsed=%v", elapsed)
	}
}

func TestFileLockHonorsCallerContext(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state.lock")

	lock1, err := AcquireFileLock(context.Background(), "u", lockPath, nil)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := AcquireFileLock(ctx, "u", lockPath, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFileLockHeldDuration(t *testing.T) {
	lock, err := AcquireFileLock(context.Background(), "u", filepath.Join(t.TempDir(), "state.lock"), nil)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if lock.HeldDuration() < 50*time.Millisecond {
		t.Errorf("Expected lock held duration >= 50ms, got %v", lock.HeldDuration())
	}

	lock.Unlock()
}
