package daemon

import (
	"context"
)

type HealthStatus string

const (
	StatusStarting HealthStatus = "starting"
	StatusRunning  HealthStatus = "running"
	StatusStopping HealthStatus = "stopping"
	StatusStopped  HealthStatus = "stopped"
)

// ComponentHealth is one component's answer to a health probe. Details, when
// set, is rendered as-is by the health endpoint.
type ComponentHealth struct {
	Name    string
	Healthy bool
	Error   error
	Details any
}

func Healthy(name string, details any) *ComponentHealth {
	return &ComponentHealth{Name: name, Healthy: true, Details: details}
}

func Unhealthy(name string, err error, details any) *ComponentHealth {
	return &ComponentHealth{Name: name, Error: err, Details: details}
}

// Component is one managed part of the daemon. Dependencies name the
// components whose Init must run first; Start and Stop follow registration
// order instead.
type Component interface {
	Name() string
	Dependencies() []string

	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	Health(ctx context.Context) (*ComponentHealth, error)
}
