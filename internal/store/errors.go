package store

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable indicates the durable backend could not serve the
// operation within its timeout. Startup treats it as the fallback trigger;
// mid-operation it surfaces as a retryable failure.
var ErrBackendUnavailable = errors.New("backend unavailable")

// NotFoundError reports a referenced entity id that does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ConflictError reports a unique-key collision at creation time. The
// existing row is never overwritten.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
