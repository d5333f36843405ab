// Package global provides the side-channel global node factory for the registry system.
package global

import (
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/protocol"
)

// GlobalNodeFactory describes a node the runtime may jump to from any point of the call,
// for example when the caller asks for a human.
type GlobalNodeFactory struct{}

// NewGlobalNodeFactory creates a new global node factory.
func NewGlobalNodeFactory() protocol.NodeFactory {
	return &GlobalNodeFactory{}
}

// Kind returns the node kind.
func (f *GlobalNodeFactory) Kind() models.NodeKind {
	return models.NodeKindGlobal
}

// Name returns the factory name.
func (f *GlobalNodeFactory) Name() string {
	return "Global Node"
}

// Description returns the factory description.
func (f *GlobalNodeFactory) Description() string {
	return "Side-channel entry reachable from anywhere in the call"
}

// DefaultConfig returns an empty global config.
func (f *GlobalNodeFactory) DefaultConfig() models.NodeConfig {
	return &models.GlobalConfig{}
}

// Terminal reports whether call handling ends at this node.
func (f *GlobalNodeFactory) Terminal() bool {
	return false
}

// Primitive returns the runtime action primitive.
func (f *GlobalNodeFactory) Primitive() models.ActionPrimitive {
	return models.PrimitiveRoute
}

// Schema returns the JSON schema for global node configuration.
func (f *GlobalNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "When the runtime should jump to this node",
				"examples":    []string{"The caller asks to speak to a human."},
			},
		},
		"additionalProperties": false,
	}
}
