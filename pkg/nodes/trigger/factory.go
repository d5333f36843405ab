// Package trigger provides the entry node factory for the registry system.
package trigger

import (
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/protocol"
)

// TriggerNodeFactory describes the workflow entry node.
type TriggerNodeFactory struct{}

// NewTriggerNodeFactory creates a new trigger node factory.
func NewTriggerNodeFactory() protocol.NodeFactory {
	return &TriggerNodeFactory{}
}

// Kind returns the node kind.
func (f *TriggerNodeFactory) Kind() models.NodeKind {
	return models.NodeKindTrigger
}

// Name returns the factory name.
func (f *TriggerNodeFactory) Name() string {
	return "Call Start"
}

// Description returns the factory description.
func (f *TriggerNodeFactory) Description() string {
	return "Entry point of the call. Execution begins here when an inbound call is answered"
}

// DefaultConfig returns the starting configuration.
func (f *TriggerNodeFactory) DefaultConfig() models.NodeConfig {
	return &models.TriggerConfig{}
}

// Terminal reports whether call handling ends at this node.
func (f *TriggerNodeFactory) Terminal() bool {
	return false
}

// Primitive returns the runtime action primitive.
func (f *TriggerNodeFactory) Primitive() models.ActionPrimitive {
	return models.PrimitiveEntry
}

// Schema returns the JSON schema for trigger node configuration.
func (f *TriggerNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"greeting": map[string]any{
				"type":        "string",
				"description": "Optional first utterance spoken when the call is answered",
				"examples": []string{
					"Thanks for calling Acme support.",
				},
			},
		},
		"additionalProperties": false,
	}
}
