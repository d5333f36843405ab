// Package services provides the workflow service used by the HTTP API and its error taxonomy.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/callflow/pkg/compiler"
	"github.com/dukex/callflow/pkg/condition"
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/persistence"
	"github.com/dukex/callflow/pkg/registry"
	"github.com/dukex/callflow/pkg/store"
	"github.com/dukex/callflow/pkg/validation"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNameRequired = errors.New("workflow name is required")

	// Not Found Errors (404 Not Found).
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
	ErrSessionNotOpen   = errors.New("workflow is not open for editing")

	// Unprocessable Errors (422 Unprocessable Entity).
	ErrWorkflowInvalid = errors.New("workflow has validation errors")

	// Business Logic Conflicts (409 Conflict).
	ErrDeployerNotConfigured = errors.New("no deployer configured")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string             // Operation name
	Code    string             // Error code for API responses
	Message string             // Human-readable message
	Report  *validation.Report // Findings behind a validation failure, if any
	Err     error              // Underlying error
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

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, models.ErrUnknownNodeKind) ||
		errors.Is(err, registry.ErrInvalidConfig) ||
		errors.Is(err, store.ErrInvalidCondition) ||
		errors.Is(err, store.ErrConfigKindMismatch) ||
		errors.Is(err, store.ErrUnsupportedSchemaVersion) ||
		errors.Is(err, store.ErrInvalidSnapshot)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrSessionNotOpen) ||
		store.IsNotFound(err)
}

// IsUnprocessableError checks if an error reports an invalid graph or a turn
// no edge accepts (HTTP 422).
func IsUnprocessableError(err error) bool {
	return errors.Is(err, ErrWorkflowInvalid) ||
		errors.Is(err, compiler.ErrGraphNotValid) ||
		errors.Is(err, condition.ErrNoRoute)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, store.ErrProtectedNode) ||
		errors.Is(err, ErrDeployerNotConfigured)
}

// ReportFrom returns the validation report attached to err, if any.
func ReportFrom(err error) (*validation.Report, bool) {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Report != nil {
		return serviceErr.Report, true
	}

	return compiler.ReportFrom(err)
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
