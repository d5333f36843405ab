// Package conversation provides the conversation node factory for the registry system.
package conversation

import (
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/protocol"
)

const (
	DefaultPrompt        = "Hello! How can I help you today?"
	DefaultModel         = "gpt-4o-mini"
	DefaultTemperature   = 0.7
	DefaultVoiceProvider = "elevenlabs"
	DefaultVoiceID       = "rachel"
	DefaultVoiceSpeed    = 1.0
)

// ConversationNodeFactory describes a prompt-and-capture conversation turn.
type ConversationNodeFactory struct{}

// NewConversationNodeFactory creates a new conversation node factory.
func NewConversationNodeFactory() protocol.NodeFactory {
	return &ConversationNodeFactory{}
}

// Kind returns the node kind.
func (f *ConversationNodeFactory) Kind() models.NodeKind {
	return models.NodeKindConversation
}

// Name returns the factory name.
func (f *ConversationNodeFactory) Name() string {
	return "Conversation"
}

// Description returns the factory description.
func (f *ConversationNodeFactory) Description() string {
	return "Speaks a prompt to the caller with the configured voice and captures the reply"
}

// DefaultConfig returns a generic greeting with the baseline voice profile.
func (f *ConversationNodeFactory) DefaultConfig() models.NodeConfig {
	return &models.ConversationConfig{
		Prompt:      DefaultPrompt,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		Voice: models.VoiceProfile{
			Provider: DefaultVoiceProvider,
			VoiceID:  DefaultVoiceID,
			Speed:    DefaultVoiceSpeed,
		},
	}
}

// Terminal reports whether call handling ends at this node.
func (f *ConversationNodeFactory) Terminal() bool {
	return false
}

// Primitive returns the runtime action primitive.
func (f *ConversationNodeFactory) Primitive() models.ActionPrimitive {
	return models.PrimitivePromptAndCapture
}

// Schema returns the JSON schema for conversation node configuration.
func (f *ConversationNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "Instruction for the agent on this turn",
				"examples": []string{
					"Ask the caller for their account number.",
					"Confirm the appointment date with the caller.",
				},
			},
			"model": map[string]any{
				"type":        "string",
				"description": "Language model selector used to generate the turn",
				"default":     DefaultModel,
			},
			"temperature": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 2,
				"default": DefaultTemperature,
			},
			"voice": map[string]any{
				"type":        "object",
				"description": "Synthesized voice used to speak the prompt",
				"properties": map[string]any{
					"provider": map[string]any{"type": "string"},
					"voice_id": map[string]any{"type": "string"},
					"speed": map[string]any{
						"type":    "number",
						"minimum": 0.25,
						"maximum": 4,
					},
				},
				"required": []string{"provider", "voice_id"},
			},
			"capture_variable": map[string]any{
				"type":        "string",
				"description": "Workflow variable that receives the caller's reply",
				"pattern":     "^[A-Za-z_][A-Za-z0-9_]*$",
			},
		},
		"required":             []string{"prompt", "voice"},
		"additionalProperties": false,
	}
}
