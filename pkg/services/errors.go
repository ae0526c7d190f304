// Package services implements the flow, version, graph, session, and
// analytics business operations on top of the persistence layer.
package services

import (
	"errors"
	"fmt"
)

// Business rule violations - client errors, never retryable as-is.
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNameRequired       = errors.New("name is required")
	ErrTitleRequired      = errors.New("title cannot be empty")
	ErrInvalidNodeType    = errors.New("invalid node type")
	ErrSelfLoop           = errors.New("source and target nodes cannot be the same")
	ErrNoNodesProvided    = errors.New("no nodes provided")
	ErrNoVersionAvailable = errors.New("flow has no published version and no draft")
	ErrNoStartNode        = errors.New("flow has no start node")
	ErrSessionCompleted   = errors.New("session already completed")
	ErrInvalidEdge        = errors.New("invalid edge for current node")
	ErrAlreadyAtStart     = errors.New("already at start")
	ErrNotCompleted       = errors.New("can only rate completed sessions")
	ErrInvalidRating      = errors.New("rating must be an integer between 1 and 5")

	// Conflicts (409).
	ErrAlreadyPublished      = errors.New("version already published")
	ErrDuplicateEdge         = errors.New("an identical connection already exists")
	ErrCannotModifyPublished = errors.New("cannot modify a published version")
)

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

// IsValidationError checks if an error is a validation error that should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrTitleRequired) ||
		errors.Is(err, ErrInvalidNodeType) ||
		errors.Is(err, ErrSelfLoop) ||
		errors.Is(err, ErrNoNodesProvided) ||
		errors.Is(err, ErrNoVersionAvailable) ||
		errors.Is(err, ErrNoStartNode) ||
		errors.Is(err, ErrSessionCompleted) ||
		errors.Is(err, ErrInvalidEdge) ||
		errors.Is(err, ErrAlreadyAtStart) ||
		errors.Is(err, ErrNotCompleted) ||
		errors.Is(err, ErrInvalidRating)
}

// IsConflictError checks if an error is a state conflict that should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAlreadyPublished) ||
		errors.Is(err, ErrDuplicateEdge) ||
		errors.Is(err, ErrCannotModifyPublished)
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
