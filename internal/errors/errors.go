package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for different categories
var (
	// ErrInvalidInput - caller supplied a value outside the accepted domain (bad key, bad status, bad percentage)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - referenced goal, task, tracker or user does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict - concurrent writer holds the user document; retry on the next tick
	ErrConflict = errors.New("conflict")

	// ErrTransient - oracle or delivery channel failed in a way worth retrying next tick
	ErrTransient = errors.New("transient error")

	// ErrInvalidModelOutput - oracle broke the reply protocol
	ErrInvalidModelOutput = errors.New("invalid model output")

	// ErrCorruptDocument - persisted JSON is not an object of the expected shape
	ErrCorruptDocument = errors.New("corrupt document")

	// ErrLockTimeout - the per-user file lock could not be acquired in time
	ErrLockTimeout = errors.New("lock timeout")

	// ErrPermissionDenied - delivery endpoint rejected our credentials
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInternal - anything else
	ErrInternal = errors.New("internal error")
)

func categorized(message string, category error) error {
	return fmt.Errorf("%s: %w", message, category)
}

func NotFound(message string) error {
	return categorized(message, ErrNotFound)
}

func PermissionDenied(message string) error {
	return categorized(message, ErrPermissionDenied)
}

func InvalidInput(message string) error {
	return categorized(message, ErrInvalidInput)
}

func Transient(message string) error {
	return categorized(message, ErrTransient)
}

func Internal(message string) error {
	return categorized(message, ErrInternal)
}

func InvalidModelOutput(message string) error {
	return categorized(message, ErrInvalidModelOutput)
}

func CorruptDocument(message string) error {
	return categorized(message, ErrCorruptDocument)
}

// Wrap adds context and keeps whatever category err already carries.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapWithCategory puts err under category; both stay matchable with
// errors.Is.
func WrapWithCategory(err error, message string, category error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", message, category, err)
}

func IsCategory(err error, category error) bool {
	return err != nil && errors.Is(err, category)
}

// IsRetryable reports whether the next tick may succeed where this one
// failed. Cancellation never is.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrConflict) || errors.Is(err, ErrLockTimeout)
}
