package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"
)

// Daemon initializes its components in dependency order, starts them in
// registration order and stops them in reverse registration order. Only
// components whose Init succeeded are ever stopped.
type Daemon struct {
	cfg      *config.Config
	instance string
	started  time.Time

	mu          sync.RWMutex
	components  []Component
	initialized map[string]bool
	health      HealthStatus
}

func NewDaemon(instance string, cfg *config.Config) (*Daemon, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Daemon{
		cfg:         cfg,
		instance:    instance,
		started:     time.Now(),
		initialized: map[string]bool{},
		health:      StatusStarting,
	}, nil
}

func (d *Daemon) AddComponent(comp Component) {
	d.mu.Lock()
	d.components = append(d.components, comp)
	total := len(d.components)
	d.mu.Unlock()
	slog.Info("Component registered", "component", comp.Name(), "total_components", total)
}

// Start blocks until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// every component down. A signal or cancellation is reported as ctx.Err().
func (d *Daemon) Start(ctx context.Context) error {
	log := slog.With("instance", d.instance)
	log.Info("Navi daemon starting...")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTimeout, err := config.DurationOrDefault(d.cfg.Daemon.ShutdownTimeout, config.DefaultDaemonShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse daemon shutdown timeout: %w", err)
	}
	abortTimeout, err := config.DurationOrDefault(d.cfg.Daemon.StartupShutdownTimeout, config.DefaultDaemonStartupShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse daemon startup shutdown timeout: %w", err)
	}

	if err := d.validateConfig(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := d.preInitChecks(ctx); err != nil {
		return fmt.Errorf("pre-init checks failed: %w", err)
	}
	if err := d.initializeComponents(ctx); err != nil {
		d.rollback(context.Background())
		return fmt.Errorf("component initialization failed: %w", err)
	}
	if err := d.startComponents(ctx); err != nil {
		_ = d.gracefulShutdown(context.Background(), abortTimeout)
		return fmt.Errorf("component startup failed: %w", err)
	}

	d.setHealth(StatusRunning)
	log.Info("Navi daemon is running", "components", d.count())

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		d.monitorHealth(monitorCtx)
	}()

	<-ctx.Done()
	log.Info("Context cancelled, initiating graceful shutdown", "reason", ctx.Err())
	d.setHealth(StatusStopping)
	stopMonitor()
	<-monitorDone

	if err := d.gracefulShutdown(context.Background(), shutdownTimeout); err != nil {
		return err
	}
	return ctx.Err()
}

func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.health
}

func (d *Daemon) Uptime() time.Duration {
	return time.Since(d.started)
}

// Component returns the registered component called name, or nil.
func (d *Daemon) Component(name string) Component {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.getComponentByName(name)
}

// ComponentHealth probes every component. A probe error marks the
// component unhealthy even when the report said otherwise.
func (d *Daemon) ComponentHealth() map[string]*ComponentHealth {
	comps := d.snapshot()
	result := make(map[string]*ComponentHealth, len(comps))
	for _, comp := range comps {
		h, err := comp.Health(context.Background())
		if h == nil {
			h = &ComponentHealth{Name: comp.Name()}
		}
		if err != nil {
			h.Healthy = false
			h.Error = err
		}
		result[comp.Name()] = h
	}
	return result
}

func (d *Daemon) setHealth(status HealthStatus) {
	d.mu.Lock()
	d.health = status
	d.mu.Unlock()
}

func (d *Daemon) snapshot() []Component {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Component(nil), d.components...)
}

func (d *Daemon) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.components)
}

func (d *Daemon) getComponentByName(name string) Component {
	for _, comp := range d.components {
		if comp.Name() == name {
			return comp
		}
	}
	return nil
}

func (d *Daemon) validateConfig() error {
	if d.cfg.Server.Port < 1 || d.cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", d.cfg.Server.Port)
	}

	root, err := store.ResolveDataRoot(d.cfg.Data.Root)
	if err != nil {
		return fmt.Errorf("resolve data root: %w", err)
	}
	if err := os.MkdirAll(store.GetUsersDir(root), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if tz := d.cfg.Scheduler.DefaultTimezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.default_timezone %q: %w", tz, err)
		}
	}

	slog.Info("Configuration validated", "instance", d.instance, "port", d.cfg.Server.Port, "data_root", root)
	return nil
}

// preInitChecks reads the registry once so a corrupt file is reported at
// startup rather than on the first tick. Only cancellation stops startup.
func (d *Daemon) preInitChecks(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pre-init checks cancelled: %w", err)
	}

	path := d.cfg.Data.RegistryFile
	entries, malformed, err := registry.New(path, nil).Entries()
	switch {
	case err != nil:
		slog.Warn("Registry is unreadable, loops will skip their ticks until it is fixed", "path", path, "error", err)
	case len(malformed) > 0:
		slog.Warn("Registry has malformed entries", "path", path, "malformed", len(malformed), "valid", len(entries))
	default:
		slog.Info("Registry loaded", "path", path, "entries", len(entries))
	}
	return nil
}

func (d *Daemon) initializeComponents(ctx context.Context) error {
	ordered, err := initOrder(d.snapshot())
	if err != nil {
		return fmt.Errorf("failed to resolve init order: %w", err)
	}
	slog.Debug("Initialization order resolved", "order", names(ordered))

	for _, comp := range ordered {
		slog.Info("Initializing component...", "component", comp.Name())
		if err := comp.Init(ctx); err != nil {
			slog.Error("Component initialization failed", "component", comp.Name(), "error", err)
			return fmt.Errorf("component %s init failed: %w", comp.Name(), err)
		}
		d.mu.Lock()
		d.initialized[comp.Name()] = true
		d.mu.Unlock()
	}

	slog.Info("All components initialized", "count", len(ordered))
	return nil
}

func (d *Daemon) startComponents(ctx context.Context) error {
	for _, comp := range d.snapshot() {
		if err := comp.Start(ctx); err != nil {
			slog.Error("Component startup failed", "component", comp.Name(), "error", err)
			return fmt.Errorf("component %s startup failed: %w", comp.Name(), err)
		}
		slog.Info("Component started", "component", comp.Name())
	}
	return nil
}

func (d *Daemon) gracefulShutdown(ctx context.Context, timeout time.Duration) error {
	slog.Info("Graceful shutdown initiated", "instance", d.instance, "timeout", timeout)

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.shutdownComponents(shutdownCtx) }()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("Shutdown completed with error", "instance", d.instance, "error", err)
		} else {
			slog.Info("Graceful shutdown completed", "instance", d.instance)
		}
		return err
	case <-shutdownCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("shutdown cancelled: %w", ctx.Err())
		}
		slog.Error("Shutdown timeout exceeded", "instance", d.instance, "timeout", timeout)
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

// shutdownComponents stops every initialized component, newest first, even
// when one fails, and returns the failures joined.
func (d *Daemon) shutdownComponents(ctx context.Context) error {
	comps := d.snapshot()
	var errs []error
	for i := len(comps) - 1; i >= 0; i-- {
		comp := comps[i]
		if !d.wasInitialized(comp.Name()) {
			continue
		}
		if err := comp.Stop(ctx); err != nil {
			slog.Error("Component stop failed", "component", comp.Name(), "error", err)
			errs = append(errs, fmt.Errorf("stop %s: %w", comp.Name(), err))
			continue
		}
		slog.Info("Component stopped", "component", comp.Name())
	}
	d.setHealth(StatusStopped)
	return errors.Join(errs...)
}

// rollback undoes a partial Init.
func (d *Daemon) rollback(ctx context.Context) {
	slog.Warn("Rolling back initialized components...", "instance", d.instance)
	if err := d.shutdownComponents(ctx); err != nil {
		slog.Error("Rollback incomplete", "instance", d.instance, "error", err)
	}
}

func (d *Daemon) wasInitialized(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.initialized[name]
}

// monitorHealth probes on an interval and logs only when the set of
// unhealthy components changes.
func (d *Daemon) monitorHealth(ctx context.Context) {
	interval, err := config.DurationOrDefault(d.cfg.Daemon.HealthCheckInterval, config.DefaultDaemonHealthCheckInterval)
	if err != nil || interval <= 0 {
		slog.Error("Health monitor disabled", "interval", d.cfg.Daemon.HealthCheckInterval, "error", err)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last = d.reportHealth(last)
		}
	}
}

func (d *Daemon) reportHealth(previous []string) []string {
	var unhealthy []string
	for name, h := range d.ComponentHealth() {
		if !h.Healthy {
			unhealthy = append(unhealthy, name)
			if !slices.Contains(previous, name) {
				slog.Warn("Component unhealthy", "component", name, "error", h.Error)
			}
		}
	}
	sort.Strings(unhealthy)
	for _, name := range previous {
		if !slices.Contains(unhealthy, name) {
			slog.Info("Component recovered", "component", name)
		}
	}
	return unhealthy
}
