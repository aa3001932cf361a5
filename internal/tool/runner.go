package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/logger"
	"github.com/harunnryd/navi/internal/store"
)

type Runner struct {
	registry *Registry
}

func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

func (r *Runner) Registry() *Registry {
	return r.registry
}

// Execute validates and runs one call. The returned record is filled in
// even on failure, with the error text as the result, so the model always
// gets an answer for its call.
func (r *Runner) Execute(ctx context.Context, env *Env, toolName string, input json.RawMessage, source string) (store.ToolExecution, error) {
	log := logger.From(ctx)
	name := NormalizeToolName(toolName)
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	record := store.ToolExecution{
		Timestamp: env.Now.UTC().Format(time.RFC3339),
		Tool:      name,
		Args:      input,
		Source:    source,
	}
	if !json.Valid(input) {
		// Keep the log encodable; the raw text is still useful to read.
		quoted, _ := json.Marshal(string(input))
		record.Args = quoted
	}

	t, ok := r.registry.Get(name)
	if !ok {
		record.Result = "ERROR: Tool not found"
		log.Warn("Tool not found", "tool", name)
		return record, fmt.Errorf("%s: %w: %w", name, ErrToolNotFound, naviErrors.ErrNotFound)
	}

	if err := ValidateInput(t.Parameters(), input); err != nil {
		record.Result = "ERROR: " + err.Error()
		log.Warn("Tool input validation failed", "tool", name, "error", err)
		return record, naviErrors.WrapWithCategory(err, "invalid tool input", naviErrors.ErrInvalidInput)
	}

	start := time.Now()
	result, err := t.Execute(ctx, env, input)
	duration := time.Since(start)
	if err != nil {
		record.Result = "ERROR: " + err.Error()
		log.Error("Tool execution failed", "tool", name, "error", err, "duration", duration)
		return record, fmt.Errorf("%s: %w: %w", name, ErrToolFailed, err)
	}

	record.Result = result
	log.Info("Tool execution success", "tool", name, "duration", duration)
	return record, nil
}
