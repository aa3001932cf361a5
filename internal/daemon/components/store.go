package components

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/harunnryd/navi/internal/daemon"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"
)

// StoreComponent owns the per-user documents and the channel registry.
// It has nothing to run; it exists so the other components can depend on
// the data directory being usable.
type StoreComponent struct {
	users    *store.UserStore
	registry *registry.Registry
	state    lifecycle
}

func NewStoreComponent(users *store.UserStore, reg *registry.Registry) *StoreComponent {
	return &StoreComponent{users: users, registry: reg}
}

func (s *StoreComponent) Name() string { return "Store" }

func (s *StoreComponent) Dependencies() []string { return nil }

func (s *StoreComponent) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store init cancelled: %w", err)
	}
	if s.users == nil || s.registry == nil {
		return fmt.Errorf("store component requires a user store and a registry")
	}
	if err := os.MkdirAll(store.GetUsersDir(s.users.Root()), 0755); err != nil {
		return fmt.Errorf("create users directory: %w", err)
	}
	s.state.set(phaseReady)
	slog.Info("Store initialized", "component", s.Name(), "root", s.users.Root(), "registry", s.registry.Path())
	return nil
}

func (s *StoreComponent) Start(ctx context.Context) error {
	if ok, _ := s.state.transition(phaseReady, phaseRunning, func() error { return nil }); !ok {
		return fmt.Errorf("store %w", errNotInitialized)
	}
	return nil
}

func (s *StoreComponent) Stop(ctx context.Context) error {
	s.state.transition(phaseRunning, phaseReady, func() error { return nil })
	return nil
}

type storeDetails struct {
	Root      string `json:"root"`
	Registry  string `json:"registry"`
	Entries   int    `json:"entries"`
	Malformed int    `json:"malformed"`
}

// Health re-reads the registry so a file corrupted after startup shows up.
func (s *StoreComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if !s.state.at(phaseReady) {
		return s.state.report(s.Name(), nil, nil), nil
	}
	details := &storeDetails{Root: s.users.Root(), Registry: s.registry.Path()}
	return s.state.report(s.Name(), details, func() error {
		entries, malformed, err := s.registry.Entries()
		if err != nil {
			return err
		}
		details.Entries = len(entries)
		details.Malformed = len(malformed)
		return nil
	}), nil
}
