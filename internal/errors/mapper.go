package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorMapper maps provider and adapter errors onto the navi taxonomy.
type ErrorMapper interface {
	MapError(err error) error
	IsRetryable(err error) bool
	Category(err error) string
}

// DefaultErrorMapper classifies errors by sentinel first, then by message
// text. SDK errors rarely expose typed causes, so text is all there is.
type DefaultErrorMapper struct{}

func NewDefaultErrorMapper() *DefaultErrorMapper {
	return &DefaultErrorMapper{}
}

// categories is ordered by precedence: an error carrying several sentinels
// is named after the first match.
var categories = []struct {
	sentinel error
	name     string
}{
	{ErrCorruptDocument, "ErrCorruptDocument"},
	{ErrLockTimeout, "ErrLockTimeout"},
	{ErrPermissionDenied, "ErrPermissionDenied"},
	{ErrInvalidInput, "ErrInvalidInput"},
	{ErrNotFound, "ErrNotFound"},
	{ErrConflict, "ErrConflict"},
	{ErrTransient, "ErrTransient"},
	{ErrInvalidModelOutput, "ErrInvalidModelOutput"},
	{ErrInternal, "ErrInternal"},
}

// textRules are tried in order. "chat not found" in a 400 response must
// land on ErrNotFound, so not-found sits above bad-request.
var textRules = []struct {
	needles  []string
	label    string
	category error
}{
	{[]string{"not found", "does not exist"}, "resource not found", ErrNotFound},
	{[]string{"permission denied", "unauthorized", "forbidden"}, "access denied", ErrPermissionDenied},
	{[]string{"rate limit", "quota", "too many requests", "429", "503", "overloaded"}, "rate limited", ErrTransient},
	{[]string{"invalid input", "invalid request", "bad request"}, "invalid request", ErrInvalidInput},
	{[]string{"invalid model output", "malformed json", "invalid json"}, "invalid model output", ErrInvalidModelOutput},
	{[]string{"timeout", "deadline exceeded"}, "request timeout", ErrTransient},
	{[]string{"network", "connection", "unreachable"}, "network error", ErrTransient},
	{[]string{"conflict", "already exists"}, "conflict", ErrConflict},
}

// MapError returns err unchanged when it already carries a navi sentinel
// or is a cancellation. Everything else gets a category.
func (m *DefaultErrorMapper) MapError(err error) error {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timeout: %w", ErrTransient)
	}
	if m.Category(err) != "Unknown" {
		return err
	}

	text := strings.ToLower(err.Error())
	for _, rule := range textRules {
		for _, needle := range rule.needles {
			if strings.Contains(text, needle) {
				return fmt.Errorf("%s: %w", rule.label, rule.category)
			}
		}
	}
	return fmt.Errorf("internal error: %w", ErrInternal)
}

func (m *DefaultErrorMapper) IsRetryable(err error) bool {
	return IsRetryable(err)
}

// Category names the sentinel err carries, "Unknown" when none, and ""
// for nil.
func (m *DefaultErrorMapper) Category(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range categories {
		if errors.Is(err, c.sentinel) {
			return c.name
		}
	}
	return "Unknown"
}
