package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrDuplicateContent = errors.New("duplicate content")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrQuotaExhausted   = errors.New("quota exhausted")
	ErrQueueFull        = errors.New("import queue is full")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Reason returns a short human readable explanation suitable for item level
// status messages.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "Rate limited. Please try again later."
	case errors.Is(err, ErrQuotaExhausted):
		return "AI credits exhausted. Please add funds."
	case errors.Is(err, ErrDuplicateContent):
		return "Already imported"
	case errors.Is(err, ErrQueueFull):
		return "Import queue is full. Please retry shortly."
	default:
		return err.Error()
	}
}
