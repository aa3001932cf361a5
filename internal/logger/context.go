package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const TraceIDKey contextKey = "trace_id"
const UserKeyKey contextKey = "user_key"
const LoopKey contextKey = "loop"

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

func WithUserKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, UserKeyKey, key)
}

func GetUserKey(ctx context.Context) string {
	if key, ok := ctx.Value(UserKeyKey).(string); ok {
		return key
	}
	return ""
}

func WithLoop(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, LoopKey, name)
}

func GetLoop(ctx context.Context) string {
	if name, ok := ctx.Value(LoopKey).(string); ok {
		return name
	}
	return ""
}

// From returns the default logger annotated with whatever trace, loop and
// user identifiers ctx carries.
func From(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := GetTraceID(ctx); id != "" {
		l = l.With("trace_id", id)
	}
	if name := GetLoop(ctx); name != "" {
		l = l.With("loop", name)
	}
	if key := GetUserKey(ctx); key != "" {
		l = l.With("user", key)
	}
	return l
}
