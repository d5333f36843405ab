package store

import (
	"errors"
	"fmt"
)

// Authoring errors. The store is left unchanged when any of these is returned.
var (
	// ErrUnknownNode indicates a node id that does not exist in the workflow.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownEdge indicates an edge id that does not exist in the workflow.
	ErrUnknownEdge = errors.New("unknown edge")

	// ErrProtectedNode indicates an attempt to delete or re-kind the entry node.
	ErrProtectedNode = errors.New("entry node is protected")

	// ErrInvalidCondition indicates a condition missing the field its type requires.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrConfigKindMismatch indicates a config whose kind differs from the node kind.
	ErrConfigKindMismatch = errors.New("config does not match node kind")

	// ErrUnsupportedSchemaVersion indicates a snapshot written with an unknown schema version.
	ErrUnsupportedSchemaVersion = errors.New("unsupported snapshot schema version")

	// ErrInvalidSnapshot indicates a snapshot that cannot be imported.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// AuthoringError wraps a rejected mutation with the operation and the id it targeted.
type AuthoringError struct {
	Op  string // Operation being performed (e.g., "UpdateNode", "Connect")
	ID  string // Node, edge or snapshot id if applicable
	Err error  // Underlying error
}

func (e *AuthoringError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *AuthoringError) Unwrap() error {
	return e.Err
}

func (e *AuthoringError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newAuthoringError(op, id string, err error) *AuthoringError {
	return &AuthoringError{Op: op, ID: id, Err: err}
}

// IsAuthoringError reports whether err is an authoring rejection from the store.
func IsAuthoringError(err error) bool {
	var authoringErr *AuthoringError

	return errors.As(err, &authoringErr)
}

// IsNotFound reports whether err refers to a missing node or edge.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownNode) || errors.Is(err, ErrUnknownEdge)
}
