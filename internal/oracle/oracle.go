// Package oracle is the boundary to the reasoning backend: a prompt goes in,
// a reasoning trail and an optional user-facing message come out.
package oracle

import (
	"context"
	"time"

	"github.com/harunnryd/navi/internal/guard"
	"github.com/harunnryd/navi/internal/store"
)

// Session is the user the oracle reasons about. Tool calls made during a
// consultation mutate State in place; the caller decides whether to save.
type Session struct {
	UserKey  string
	State    *store.UserState
	Now      time.Time
	Location *time.Location
}

// Result is one consultation. UserMessage is nil when the reply carried no
// message for the user.
type Result struct {
	Reasoning      string
	UserMessage    *string
	ToolExecutions []store.ToolExecution
	Raw            string
}

// GuardInput hands the two reply fields to the response guard.
func (r *Result) GuardInput() guard.Input {
	return guard.Input{Reasoning: r.Reasoning, UserMessage: r.UserMessage}
}

// ToolNames lists executed tools in call order.
func (r *Result) ToolNames() []string {
	names := make([]string, 0, len(r.ToolExecutions))
	for _, e := range r.ToolExecutions {
		names = append(names, e.Tool)
	}
	return names
}

type Oracle interface {
	Consult(ctx context.Context, s *Session, prompt string) (*Result, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, s *Session, prompt string) (*Result, error)

func (f Func) Consult(ctx context.Context, s *Session, prompt string) (*Result, error) {
	return f(ctx, s, prompt)
}
