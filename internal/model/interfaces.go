package model

import (
	"context"

	"github.com/harunnryd/navi/internal/model/contract"
)

// ModelRouter is what the oracle and the daemon health check see of the
// model layer. An empty model name means the configured default.
type ModelRouter interface {
	Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error)
	ListModels() []string
	Health(ctx context.Context) error
}

// Provider is one registered model. Name is the registry name, not the
// vendor model id, and Type is the vendor ("openai", "anthropic", "gemini").
type Provider interface {
	generator
	Name() string
	Type() string
	Health(ctx context.Context) error
}

var (
	_ Provider    = (*ProviderAdapter)(nil)
	_ ModelRouter = (*DefaultModelRouter)(nil)
)
