package components

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/navi/internal/daemon"
	"github.com/harunnryd/navi/internal/scheduler"
)

// Loop is the lifecycle both proactive loops expose.
type Loop interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) error
	Status() scheduler.LoopStatus
}

// LoopComponent runs one scheduler loop under the daemon.
type LoopComponent struct {
	name string
	loop Loop
}

// NewLoopComponent names the component after the loop, e.g. "checkin"
// becomes "CheckinLoop".
func NewLoopComponent(loop Loop) *LoopComponent {
	return &LoopComponent{name: componentName(loop.Name()) + "Loop", loop: loop}
}

func componentName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (l *LoopComponent) Name() string {
	return l.name
}

// Loops read documents through the store, consult the oracle and deliver
// through the adapters.
func (l *LoopComponent) Dependencies() []string {
	return []string{"Store", "Oracle", "Adapters"}
}

func (l *LoopComponent) Init(ctx context.Context) error {
	if l.loop == nil {
		return fmt.Errorf("%s: loop not configured", l.name)
	}
	return nil
}

func (l *LoopComponent) Start(ctx context.Context) error {
	if err := l.loop.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", l.name, err)
	}
	slog.Info("Loop started", "component", l.name, "schedule", l.loop.Status().Schedule)
	return nil
}

func (l *LoopComponent) Stop(ctx context.Context) error {
	if err := l.loop.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop %s: %w", l.name, err)
	}
	return nil
}

func (l *LoopComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	status := l.loop.Status()
	if err := l.loop.Health(ctx); err != nil {
		return daemon.Unhealthy(l.name, err, status), nil
	}
	return daemon.Healthy(l.name, status), nil
}
