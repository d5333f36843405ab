// Package protocol defines the contracts node kinds implement to plug into the registry.
package protocol

import "github.com/dukex/callflow/pkg/models"

// NodeFactory describes one node kind: its metadata, its default configuration
// and how it lowers into a runtime action.
type NodeFactory interface {
	// Kind returns the node kind this factory describes
	Kind() models.NodeKind

	// Name returns the human-readable name for this node kind
	Name() string

	// Description returns a description of what this node does during a call
	Description() string

	// DefaultConfig returns a fresh starting configuration for a new node
	DefaultConfig() models.NodeConfig

	// Terminal reports whether call handling ends at this node
	Terminal() bool

	// Primitive returns the runtime action this node compiles to
	Primitive() models.ActionPrimitive

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any
}
