// Package errors provides error handling for discograph.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Wrap with context
//	if err := store.SearchEntitiesByKeys(ctx, keys); err != nil {
//	    return errors.Wrap(err, "failed to fetch frontier")
//	}
//
//	// Classify at the API boundary
//	if errors.Is(err, errors.ErrEntityNotFound) {
//	    // 404
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"net/http"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to an error, if any.
var GetStack = crdb.GetReportableStackTrace

// AssertionFailedf reports a violated internal invariant.
var AssertionFailedf = crdb.AssertionFailedf

// Generic sentinel errors.
// Use these with errors.Is() for type-safe error checking.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrServiceUnavailable indicates a required service is not available
	ErrServiceUnavailable = New("service unavailable")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")

	// ErrConflict indicates a resource conflict (e.g., duplicate key)
	ErrConflict = New("resource conflict")
)

// Discograph sentinels. Each one wraps the generic sentinel it maps to,
// so errors.Is(ErrEntityNotFound, ErrNotFound) holds.
var (
	// ErrEntityNotFound indicates the center entity of a request is not in the store
	ErrEntityNotFound = Wrap(ErrNotFound, "entity")

	// ErrInvalidRoleFilter indicates a role name unknown to the role catalog
	ErrInvalidRoleFilter = Wrap(ErrInvalidRequest, "role filter")

	// ErrRepositoryUnavailable indicates the entity/relation store cannot be reached
	ErrRepositoryUnavailable = Wrap(ErrServiceUnavailable, "repository")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsServiceUnavailableError checks if an error is or wraps ErrServiceUnavailable
func IsServiceUnavailableError(err error) bool {
	return err != nil && Is(err, ErrServiceUnavailable)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// NewEntityNotFoundError reports a missing entity by its JSON key.
func NewEntityNotFoundError(key string) error {
	return Wrapf(ErrEntityNotFound, "%s", key)
}

// NewInvalidRoleFilterError reports an unknown role name.
func NewInvalidRoleFilterError(role string) error {
	return WithHint(Wrapf(ErrInvalidRoleFilter, "unknown role %q", role),
		"GET /api/roles lists the accepted role names")
}

// WrapUnavailable marks a storage failure as RepositoryUnavailable while keeping
// the original cause in the chain.
func WrapUnavailable(err error, context string) error {
	if err == nil {
		return nil
	}
	return Mark(Mark(Wrap(err, context), ErrRepositoryUnavailable), ErrServiceUnavailable)
}

// HTTPStatus maps an error to the status code the API layer responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	case Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
