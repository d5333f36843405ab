// Package endcall provides the end call node factory for the registry system.
package endcall

import (
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/protocol"
)

const DefaultMessage = "Thank you for calling. Goodbye!"

// EndCallNodeFactory describes the termination of the call.
type EndCallNodeFactory struct{}

// NewEndCallNodeFactory creates a new end call node factory.
func NewEndCallNodeFactory() protocol.NodeFactory {
	return &EndCallNodeFactory{}
}

// Kind returns the node kind.
func (f *EndCallNodeFactory) Kind() models.NodeKind {
	return models.NodeKindEndCall
}

// Name returns the factory name.
func (f *EndCallNodeFactory) Name() string {
	return "End Call"
}

// Description returns the factory description.
func (f *EndCallNodeFactory) Description() string {
	return "Speaks a closing message and hangs up"
}

// DefaultConfig returns a generic farewell.
func (f *EndCallNodeFactory) DefaultConfig() models.NodeConfig {
	return &models.EndCallConfig{Message: DefaultMessage}
}

// Terminal reports whether call handling ends at this node.
func (f *EndCallNodeFactory) Terminal() bool {
	return true
}

// Primitive returns the runtime action primitive.
func (f *EndCallNodeFactory) Primitive() models.ActionPrimitive {
	return models.PrimitiveTerminate
}

// Schema returns the JSON schema for end call node configuration.
func (f *EndCallNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Closing message spoken before hanging up",
			},
		},
		"required":             []string{"message"},
		"additionalProperties": false,
	}
}
