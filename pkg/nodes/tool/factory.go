// Package tool provides the named capability node factory for the registry system.
package tool

import (
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/protocol"
)

// ToolNodeFactory describes the invocation of a named capability.
type ToolNodeFactory struct{}

// NewToolNodeFactory creates a new tool node factory.
func NewToolNodeFactory() protocol.NodeFactory {
	return &ToolNodeFactory{}
}

// Kind returns the node kind.
func (f *ToolNodeFactory) Kind() models.NodeKind {
	return models.NodeKindTool
}

// Name returns the factory name.
func (f *ToolNodeFactory) Name() string {
	return "Tool"
}

// Description returns the factory description.
func (f *ToolNodeFactory) Description() string {
	return "Invokes a named capability with parameters extracted from the conversation"
}

// DefaultConfig returns an unnamed tool taking an empty object.
func (f *ToolNodeFactory) DefaultConfig() models.NodeConfig {
	return &models.ToolConfig{
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

// Terminal reports whether call handling ends at this node.
func (f *ToolNodeFactory) Terminal() bool {
	return false
}

// Primitive returns the runtime action primitive.
func (f *ToolNodeFactory) Primitive() models.ActionPrimitive {
	return models.PrimitiveInvokeCapability
}

// Schema returns the JSON schema for tool node configuration.
func (f *ToolNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Callable name exposed to the agent",
				"examples":    []string{"lookup_order", "book_appointment"},
			},
			"description": map[string]any{
				"type":        "string",
				"description": "When the agent should call this tool",
			},
			"parameters": map[string]any{
				"type":        "object",
				"description": "JSON schema of the tool parameters",
			},
			"result_variable": map[string]any{
				"type":        "string",
				"description": "Workflow variable that receives the tool result",
				"pattern":     "^[A-Za-z_][A-Za-z0-9_]*$",
			},
		},
		"required":             []string{"name", "parameters"},
		"additionalProperties": false,
	}
}
