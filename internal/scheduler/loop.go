package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/navi/internal/config"
	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/logger"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
)

// TickFunc is one pass of a loop over every registered user.
type TickFunc func(ctx context.Context) error

// LoopStatus is a snapshot for health reporting.
type LoopStatus struct {
	Name      string        `json:"name"`
	Schedule  string        `json:"schedule"`
	Running   bool          `json:"running"`
	InTick    bool          `json:"in_tick"`
	Ticks     uint64        `json:"ticks"`
	LastTick  time.Time     `json:"last_tick,omitempty"`
	LastTook  time.Duration `json:"last_took"`
	LastError string        `json:"last_error,omitempty"`
	NextTick  time.Time     `json:"next_tick,omitempty"`
}

// Loop runs a tick on a cron schedule. Stop prevents new ticks and cancels
// the sleep, but lets a tick in progress finish; only when the stop
// deadline passes is the running tick's context cancelled.
type Loop struct {
	name            string
	spec            string
	schedule        cron.Schedule
	runOnStart      bool
	shutdownTimeout time.Duration
	tick            TickFunc
	now             func() time.Time

	tickMu sync.Mutex // serializes scheduled and manual ticks

	mu       sync.RWMutex
	running  bool
	stop     context.CancelFunc
	abort    context.CancelFunc
	done     chan struct{}
	inTick   bool
	ticks    uint64
	lastTick time.Time
	lastTook time.Duration
	lastErr  error
	nextTick time.Time
}

func NewLoop(name, spec string, runOnStart bool, shutdownTimeout string, tick TickFunc) (*Loop, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, naviErrors.WrapWithCategory(err, fmt.Sprintf("%s schedule %q", name, spec), naviErrors.ErrInvalidInput)
	}
	timeout, err := config.DurationOrDefault(shutdownTimeout, config.DefaultSchedulerShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse %s shutdown timeout: %w", name, err)
	}
	return &Loop{
		name:            name,
		spec:            spec,
		schedule:        schedule,
		runOnStart:      runOnStart,
		shutdownTimeout: timeout,
		tick:            tick,
		now:             time.Now,
	}, nil
}

func (l *Loop) Name() string {
	return l.name
}

func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	stopCtx, stop := context.WithCancel(ctx)
	tickCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	l.running = true
	l.stop = stop
	l.abort = abort
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go l.run(stopCtx, tickCtx, done)

	slog.Info("Loop started", "loop", l.name, "schedule", l.spec, "run_on_start", l.runOnStart)
	return nil
}

// Stop waits for a tick in progress up to the shutdown timeout or ctx,
// whichever ends first.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	stop, abort, done := l.stop, l.abort, l.done
	l.mu.Unlock()

	stop()
	defer abort()

	timer := time.NewTimer(l.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		slog.Info("Loop stopped gracefully", "loop", l.name)
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	slog.Warn("Loop shutdown timeout, abandoning tick in progress", "loop", l.name)
	abort()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return naviErrors.Internal(fmt.Sprintf("%s: shutdown timeout", l.name))
}

func (l *Loop) Health(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.running {
		return naviErrors.Internal(fmt.Sprintf("%s not running", l.name))
	}
	if l.lastErr != nil {
		return naviErrors.WrapWithCategory(l.lastErr, l.name+" last tick failed", naviErrors.ErrTransient)
	}
	return nil
}

func (l *Loop) IsRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

func (l *Loop) Status() LoopStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := LoopStatus{
		Name:     l.name,
		Schedule: l.spec,
		Running:  l.running,
		InTick:   l.inTick,
		Ticks:    l.ticks,
		LastTick: l.lastTick,
		LastTook: l.lastTook,
		NextTick: l.nextTick,
	}
	if l.lastErr != nil {
		st.LastError = l.lastErr.Error()
	}
	return st
}

// RunOnce runs one tick now, outside the schedule. It waits for a
// scheduled tick in progress to finish first.
func (l *Loop) RunOnce(ctx context.Context) error {
	return l.runTick(ctx)
}

func (l *Loop) run(stopCtx, tickCtx context.Context, done chan struct{}) {
	defer close(done)

	if l.runOnStart && stopCtx.Err() == nil {
		_ = l.runTick(tickCtx)
	}

	for {
		next := l.schedule.Next(l.now())
		l.mu.Lock()
		l.nextTick = next
		l.mu.Unlock()

		timer := time.NewTimer(next.Sub(l.now()))
		select {
		case <-stopCtx.Done():
			timer.Stop()
			slog.Info("Loop run stopped", "loop", l.name)
			return
		case <-timer.C:
		}

		if stopCtx.Err() != nil {
			return
		}
		_ = l.runTick(tickCtx)
	}
}

func (l *Loop) runTick(ctx context.Context) (err error) {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	ctx = logger.WithTraceID(logger.WithLoop(ctx, l.name), ulid.Make().String())
	log := logger.From(ctx)
	start := l.now()

	l.mu.Lock()
	l.inTick = true
	l.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = naviErrors.Internal(fmt.Sprintf("tick panicked: %v", r))
		}
		took := l.now().Sub(start)
		l.mu.Lock()
		l.inTick = false
		l.ticks++
		l.lastTick = start
		l.lastTook = took
		l.lastErr = err
		l.mu.Unlock()

		if err != nil {
			log.Error("Tick failed", "error", err, "took", took)
			return
		}
		log.Debug("Tick finished", "took", took)
	}()

	return l.tick(ctx)
}
