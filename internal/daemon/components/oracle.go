package components

import (
	"context"
	"fmt"

	"github.com/harunnryd/navi/internal/daemon"
	"github.com/harunnryd/navi/internal/model"
)

// OracleComponent reports whether the model providers behind the oracle
// are usable.
type OracleComponent struct {
	router model.ModelRouter
}

func NewOracleComponent(router model.ModelRouter) *OracleComponent {
	return &OracleComponent{router: router}
}

func (o *OracleComponent) Name() string {
	return "Oracle"
}

func (o *OracleComponent) Dependencies() []string {
	return []string{}
}

func (o *OracleComponent) Init(ctx context.Context) error {
	if o.router == nil {
		return fmt.Errorf("model router not configured")
	}
	return nil
}

func (o *OracleComponent) Start(ctx context.Context) error {
	return nil
}

func (o *OracleComponent) Stop(ctx context.Context) error {
	return nil
}

func (o *OracleComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	details := map[string]interface{}{"models": o.router.ListModels()}
	if err := o.router.Health(ctx); err != nil {
		return daemon.Unhealthy(o.Name(), err, details), nil
	}
	return daemon.Healthy(o.Name(), details), nil
}
