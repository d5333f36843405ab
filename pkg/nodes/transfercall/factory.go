// Package transfercall provides the call transfer node factory for the registry system.
package transfercall

import (
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/protocol"
)

const DefaultMessage = "Please hold while I transfer your call."

// TransferCallNodeFactory describes a hand-off of the call to another destination.
type TransferCallNodeFactory struct{}

// NewTransferCallNodeFactory creates a new transfer call node factory.
func NewTransferCallNodeFactory() protocol.NodeFactory {
	return &TransferCallNodeFactory{}
}

// Kind returns the node kind.
func (f *TransferCallNodeFactory) Kind() models.NodeKind {
	return models.NodeKindTransferCall
}

// Name returns the factory name.
func (f *TransferCallNodeFactory) Name() string {
	return "Transfer Call"
}

// Description returns the factory description.
func (f *TransferCallNodeFactory) Description() string {
	return "Speaks a message and hands the call off to a phone number or SIP destination"
}

// DefaultConfig returns an empty destination with a hand-off message.
func (f *TransferCallNodeFactory) DefaultConfig() models.NodeConfig {
	return &models.TransferCallConfig{Message: DefaultMessage}
}

// Terminal reports whether call handling ends at this node.
func (f *TransferCallNodeFactory) Terminal() bool {
	return true
}

// Primitive returns the runtime action primitive.
func (f *TransferCallNodeFactory) Primitive() models.ActionPrimitive {
	return models.PrimitiveHandoff
}

// Schema returns the JSON schema for transfer call node configuration.
func (f *TransferCallNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"destination": map[string]any{
				"type":        "string",
				"description": "E.164 number or SIP URI receiving the call",
				"examples":    []string{"+15550100", "sip:billing@pbx.example.com"},
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Spoken before the transfer",
			},
		},
		"required":             []string{"destination", "message"},
		"additionalProperties": false,
	}
}
