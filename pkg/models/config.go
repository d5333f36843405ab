package models

import (
	"encoding/json"
	"fmt"
	"maps"
)

// NodeConfig is the kind-specific configuration of a node.
// The set of implementations is closed: one struct per NodeKind.
type NodeConfig interface {
	Kind() NodeKind
	clone() NodeConfig
}

// TriggerConfig configures the entry node.
type TriggerConfig struct {
	Greeting string `json:"greeting,omitempty"`
}

// VoiceProfile selects the synthesized voice used for a conversation turn.
type VoiceProfile struct {
	Provider string  `json:"provider"`
	VoiceID  string  `json:"voice_id"`
	Speed    float64 `json:"speed"`
}

// ConversationConfig prompts the caller and captures the reply.
type ConversationConfig struct {
	Prompt          string       `json:"prompt"`
	Model           string       `json:"model"`
	Temperature     float64      `json:"temperature"`
	Voice           VoiceProfile `json:"voice"`
	CaptureVariable string       `json:"capture_variable,omitempty"`
}

// APIRequestConfig calls an external HTTP endpoint and binds the response into a variable.
type APIRequestConfig struct {
	Method           string            `json:"method"`
	URL              string            `json:"url"`
	Headers          map[string]string `json:"headers"`
	Body             string            `json:"body,omitempty"`
	TimeoutSeconds   int               `json:"timeout_seconds"`
	ResponseVariable string            `json:"response_variable,omitempty"`
}

// ToolConfig invokes a named capability with a JSON-schema described parameter set.
type ToolConfig struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Parameters     map[string]any `json:"parameters"`
	ResultVariable string         `json:"result_variable,omitempty"`
}

// TransferCallConfig hands the call off to another destination.
type TransferCallConfig struct {
	Destination string `json:"destination"`
	Message     string `json:"message"`
}

// EndCallConfig terminates the call.
type EndCallConfig struct {
	Message string `json:"message"`
}

// ConditionConfig is a pure routing point. Its branching lives on outgoing edges.
type ConditionConfig struct{}

// GlobalConfig describes a side-channel entry that can be jumped to from any point.
type GlobalConfig struct {
	Prompt string `json:"prompt,omitempty"`
}

func (TriggerConfig) Kind() NodeKind      { return NodeKindTrigger }
func (ConversationConfig) Kind() NodeKind { return NodeKindConversation }
func (APIRequestConfig) Kind() NodeKind   { return NodeKindAPIRequest }
func (ToolConfig) Kind() NodeKind         { return NodeKindTool }
func (TransferCallConfig) Kind() NodeKind { return NodeKindTransferCall }
func (EndCallConfig) Kind() NodeKind      { return NodeKindEndCall }
func (ConditionConfig) Kind() NodeKind    { return NodeKindCondition }
func (GlobalConfig) Kind() NodeKind       { return NodeKindGlobal }

func (c *TriggerConfig) clone() NodeConfig {
	copied := *c

	return &copied
}

func (c *ConversationConfig) clone() NodeConfig {
	copied := *c

	return &copied
}

func (c *APIRequestConfig) clone() NodeConfig {
	copied := *c
	copied.Headers = maps.Clone(c.Headers)

	return &copied
}

func (c *ToolConfig) clone() NodeConfig {
	copied := *c
	copied.Parameters = CopyMap(c.Parameters)

	return &copied
}

func (c *TransferCallConfig) clone() NodeConfig {
	copied := *c

	return &copied
}

func (c *EndCallConfig) clone() NodeConfig {
	copied := *c

	return &copied
}

func (c *ConditionConfig) clone() NodeConfig {
	return &ConditionConfig{}
}

func (c *GlobalConfig) clone() NodeConfig {
	copied := *c

	return &copied
}

// CloneConfig returns a deep copy of config, or nil.
func CloneConfig(config NodeConfig) NodeConfig {
	if config == nil {
		return nil
	}

	return config.clone()
}

// NewConfig returns an empty config value for the given kind.
func NewConfig(kind NodeKind) (NodeConfig, error) {
	switch kind {
	case NodeKindTrigger:
		return &TriggerConfig{}, nil
	case NodeKindConversation:
		return &ConversationConfig{}, nil
	case NodeKindAPIRequest:
		return &APIRequestConfig{Headers: map[string]string{}}, nil
	case NodeKindTool:
		return &ToolConfig{Parameters: map[string]any{}}, nil
	case NodeKindTransferCall:
		return &TransferCallConfig{}, nil
	case NodeKindEndCall:
		return &EndCallConfig{}, nil
	case NodeKindCondition:
		return &ConditionConfig{}, nil
	case NodeKindGlobal:
		return &GlobalConfig{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeKind, kind)
	}
}

// DecodeConfig decodes a raw JSON config into the struct matching kind.
// Empty or null input yields the zero config for that kind.
func DecodeConfig(kind NodeKind, raw json.RawMessage) (NodeConfig, error) {
	config, err := NewConfig(kind)
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 || string(raw) == "null" {
		return config, nil
	}

	if err := json.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", kind, err)
	}

	return config, nil
}

// PatchConfig applies a partial JSON object to a copy of base. Fields absent from
// raw keep their base values. A nil base, or one of another kind, is replaced by
// the empty config for kind first.
func PatchConfig(kind NodeKind, base NodeConfig, raw json.RawMessage) (NodeConfig, error) {
	if base == nil || base.Kind() != kind {
		return DecodeConfig(kind, raw)
	}

	config := CloneConfig(base)

	if len(raw) == 0 || string(raw) == "null" {
		return config, nil
	}

	if err := json.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", kind, err)
	}

	return config, nil
}

// ConfigToMap renders a config as a generic JSON object, for schema validation
// and for transports that need an untyped view.
func ConfigToMap(config NodeConfig) (map[string]any, error) {
	if config == nil {
		return map[string]any{}, nil
	}

	data, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}

	result := make(map[string]any)
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// CopyMap creates a deep copy of a map[string]any, descending into nested maps and slices.
func CopyMap(original map[string]any) map[string]any {
	if original == nil {
		return nil
	}

	result := make(map[string]any, len(original))
	for k, v := range original {
		result[k] = copyValue(v)
	}

	return result
}

func copyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return CopyMap(value)
	case []any:
		copied := make([]any, len(value))
		for i, item := range value {
			copied[i] = copyValue(item)
		}

		return copied
	default:
		return value
	}
}
