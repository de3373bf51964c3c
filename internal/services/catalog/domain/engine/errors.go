package engine

import (
	"errors"

	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
)

// nonRetryableError marks a failure after the projection may have changed.
// Retrying such a command could apply its cascade twice.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable returns true from IsNonRetryable checks.
func (e *nonRetryableError) NonRetryable() bool { return true }

func wrapNonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsNonRetryable reports whether err (or any error in its chain) must not
// be retried by the caller.
func IsNonRetryable(err error) bool {
	var target interface{ NonRetryable() bool }
	if errors.As(err, &target) {
		return target.NonRetryable()
	}
	return false
}

// Retryable reports whether a failed command may be resubmitted once its
// cause is fixed: it was rejected before anything changed.
func Retryable(err error) bool {
	return err != nil && !IsNonRetryable(err) && apperrors.GetCode(err).Retryable()
}
