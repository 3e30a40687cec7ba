// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/flowdeck/flowdeck/pkg/nodered"
	"github.com/flowdeck/flowdeck/pkg/persistence"
	"github.com/flowdeck/flowdeck/pkg/translator"
)

// Validation errors (400 Bad Request). These indicate a malformed graph or
// request and are surfaced verbatim to the caller.
var (
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrDuplicateNodeID      = errors.New("duplicate node id")
	ErrDuplicateEdgeID      = errors.New("duplicate edge id")
	ErrEmptyNodeID          = errors.New("node id cannot be empty")
	ErrDanglingEdge         = errors.New("edge references a node that is not in the graph")
	ErrInvalidSortField     = errors.New("invalid sort field")
	ErrInvalidSortOrder     = errors.New("invalid sort order")
)

// ErrWorkflowNotFound mirrors the persistence sentinel so handlers only need
// to know service errors.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error is a graph or request validation
// failure that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrDuplicateNodeID) ||
		errors.Is(err, ErrDuplicateEdgeID) ||
		errors.Is(err, ErrEmptyNodeID) ||
		errors.Is(err, ErrDanglingEdge) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder)
}

// IsNotFound checks if an error means the addressed workflow does not exist
// and should return HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, persistence.ErrWorkflowNotFound)
}

// IsTranslationError checks if an error means the stored graph cannot be
// expressed in the runtime schema and should return HTTP 422.
func IsTranslationError(err error) bool {
	return translator.IsTranslationError(err)
}

// IsRuntimeUnavailable checks if an error means the external runtime could
// not be reached or rejected the deploy, and should return HTTP 502.
func IsRuntimeUnavailable(err error) bool {
	return nodered.IsRuntimeUnavailable(err)
}
