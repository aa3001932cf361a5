package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// interruptible derives a context that is cancelled on the first SIGINT or
// SIGTERM so a one-shot command can abandon an in-flight model call. The
// returned release must be called once the command is done.
func interruptible(parent context.Context, notice io.Writer) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigs:
			fmt.Fprintf(notice, "\nReceived %s, stopping...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigs)
		cancel()
		<-done
	}
}
