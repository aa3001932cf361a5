package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/navi/internal/adapter"
	"github.com/harunnryd/navi/internal/daemon"
)

// AdaptersComponent runs the inbound chat adapters and vouches for the
// outbound ones the loops deliver through.
type AdaptersComponent struct {
	manager *adapter.RuntimeManager
	state   lifecycle
}

func NewAdaptersComponent(manager *adapter.RuntimeManager) *AdaptersComponent {
	return &AdaptersComponent{manager: manager}
}

func (a *AdaptersComponent) Name() string { return "Adapters" }

// Inbound commands resolve chats through the registry.
func (a *AdaptersComponent) Dependencies() []string { return []string{"Store"} }

func (a *AdaptersComponent) Init(ctx context.Context) error {
	if a.manager == nil {
		return fmt.Errorf("adapter manager not configured")
	}
	a.state.set(phaseReady)
	return nil
}

func (a *AdaptersComponent) Start(ctx context.Context) error {
	ok, err := a.state.transition(phaseReady, phaseRunning, func() error {
		a.manager.Start(ctx)
		return nil
	})
	if !ok {
		return fmt.Errorf("adapters component %w", errNotInitialized)
	}
	slog.Info("Adapters started", "component", a.Name(), "channels", a.manager.Channels())
	return err
}

func (a *AdaptersComponent) Stop(ctx context.Context) error {
	_, err := a.state.transition(phaseRunning, phaseReady, func() error {
		return a.manager.Stop(ctx)
	})
	if err != nil {
		return err
	}
	slog.Info("Adapters stopped", "component", a.Name())
	return nil
}

type adapterDetails struct {
	DefaultChannel string   `json:"default_channel"`
	Channels       []string `json:"channels"`
}

func (a *AdaptersComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	var details interface{}
	if a.manager != nil {
		details = adapterDetails{DefaultChannel: a.manager.DefaultChannel(), Channels: a.manager.Channels()}
	}
	return a.state.report(a.Name(), details, func() error { return a.manager.Health(ctx) }), nil
}
