// Package condition provides the routing-only condition node factory for the registry system.
package condition

import (
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/protocol"
)

// ConditionNodeFactory describes a pure routing point. Branches live on its outgoing edges.
type ConditionNodeFactory struct{}

// NewConditionNodeFactory creates a new condition node factory.
func NewConditionNodeFactory() protocol.NodeFactory {
	return &ConditionNodeFactory{}
}

// Kind returns the node kind.
func (f *ConditionNodeFactory) Kind() models.NodeKind {
	return models.NodeKindCondition
}

// Name returns the factory name.
func (f *ConditionNodeFactory) Name() string {
	return "Condition"
}

// Description returns the factory description.
func (f *ConditionNodeFactory) Description() string {
	return "Branches on the conditions of its outgoing edges without speaking to the caller"
}

// DefaultConfig returns the empty routing config.
func (f *ConditionNodeFactory) DefaultConfig() models.NodeConfig {
	return &models.ConditionConfig{}
}

// Terminal reports whether call handling ends at this node.
func (f *ConditionNodeFactory) Terminal() bool {
	return false
}

// Primitive returns the runtime action primitive.
func (f *ConditionNodeFactory) Primitive() models.ActionPrimitive {
	return models.PrimitiveRoute
}

// Schema returns the JSON schema for condition node configuration.
func (f *ConditionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
	}
}
