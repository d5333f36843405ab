package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrMissingWorkflowID indicates a snapshot without an id was handed to Save.
	ErrMissingWorkflowID = errors.New("workflow id is required")

	// ErrInvalidWorkflowID indicates an id that cannot be used as a storage key.
	ErrInvalidWorkflowID = errors.New("invalid workflow id")

	// ErrCorruptSnapshot indicates stored bytes could not be decoded into a snapshot.
	ErrCorruptSnapshot = errors.New("stored snapshot is corrupt")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "Load", "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsCorruptSnapshot checks if an error indicates undecodable stored data.
func IsCorruptSnapshot(err error) bool {
	return errors.Is(err, ErrCorruptSnapshot)
}
