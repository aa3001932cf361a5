package concurrency

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Go runs fn in its own goroutine. A panic is recovered, logged with its
// stack, and turned into an error. The returned channel receives fn's
// result exactly once and is then closed.
func Go(name string, fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- run(name, fn)
	}()
	return done
}

func run(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic recovered", "routine", name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return fn()
}
