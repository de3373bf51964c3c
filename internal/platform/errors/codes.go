// Package errors provides the structured error taxonomy surfaced to callers
// of the catalog core.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation rejects a command before any mutation: business rule
	// violations, referential integrity, missing privilege.
	CodeValidation Code = "VALIDATION"

	// CodeNotFound reports a missing subject or dependency.
	CodeNotFound Code = "NOT_FOUND"

	// CodeSchema reports an event payload that fails structural validation
	// for its declared version.
	CodeSchema Code = "SCHEMA"

	// CodeInternal reports a failure while applying or persisting an event.
	CodeInternal Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeValidation:
		return codes.InvalidArgument
	case CodeSchema:
		return codes.FailedPrecondition
	case CodeNotFound:
		return codes.NotFound
	case CodeInternal:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// Retryable reports whether a caller may safely resubmit after this code.
// Validation, not-found and schema failures happen before any mutation.
func (c Code) Retryable() bool {
	switch c {
	case CodeValidation, CodeNotFound, CodeSchema:
		return true
	default:
		return false
	}
}
