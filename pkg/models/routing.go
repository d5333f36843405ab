package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RoutingSchemaVersion stamps compiled routing definitions so a runtime can refuse
// definitions it does not understand.
const RoutingSchemaVersion = "callflow.routing/v1"

// ActionPrimitive is the runtime operation a node is lowered to.
type ActionPrimitive string

const (
	PrimitiveEntry            ActionPrimitive = "entry"              // Entry marker
	PrimitivePromptAndCapture ActionPrimitive = "prompt_and_capture" // Prompt user, capture response
	PrimitiveInvokeEndpoint   ActionPrimitive = "invoke_endpoint"    // Call external endpoint, bind response
	PrimitiveInvokeCapability ActionPrimitive = "invoke_capability"  // Call named tool with bound parameters
	PrimitiveHandoff          ActionPrimitive = "handoff"            // Transfer the call, terminal
	PrimitiveTerminate        ActionPrimitive = "terminate"          // Hang up with a message, terminal
	PrimitiveRoute            ActionPrimitive = "route"              // No user-facing action
)

// TransitionConditionType tags a compiled transition.
type TransitionConditionType string

const (
	TransitionLogical TransitionConditionType = "logical"
	TransitionAI      TransitionConditionType = "ai"
	TransitionDefault TransitionConditionType = "default"
)

// Action is one compiled node.
type Action struct {
	NodeID    string          `json:"node_id"`
	Kind      NodeKind        `json:"kind"`
	Primitive ActionPrimitive `json:"primitive"`
	Terminal  bool            `json:"terminal"`
	Global    bool            `json:"global,omitempty"`
	Config    NodeConfig      `json:"config"`
}

// UnmarshalJSON decodes an action, selecting the config type from the kind.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		NodeID    string          `json:"node_id"`
		Kind      NodeKind        `json:"kind"`
		Primitive ActionPrimitive `json:"primitive"`
		Terminal  bool            `json:"terminal"`
		Global    bool            `json:"global,omitempty"`
		Config    json.RawMessage `json:"config"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	config, err := DecodeConfig(raw.Kind, raw.Config)
	if err != nil {
		return fmt.Errorf("action %s: %w", raw.NodeID, err)
	}

	*a = Action{
		NodeID:    raw.NodeID,
		Kind:      raw.Kind,
		Primitive: raw.Primitive,
		Terminal:  raw.Terminal,
		Global:    raw.Global,
		Config:    config,
	}

	return nil
}

// Transition is one compiled edge. Order is the declaration index among the
// transitions leaving the same node; the runtime evaluates them in that order.
type Transition struct {
	EdgeID        string                  `json:"edge_id"`
	From          string                  `json:"from"`
	To            string                  `json:"to"`
	Order         int                     `json:"order"`
	ConditionType TransitionConditionType `json:"condition_type"`
	Expression    string                  `json:"expression,omitempty"`
	Description   string                  `json:"description,omitempty"`
}

// IsDefault reports whether the transition is the fallback of its source.
func (t Transition) IsDefault() bool {
	return t.ConditionType == TransitionDefault
}

// RoutingDefinition is the portable lowering of a validated workflow consumed by
// the call-handling runtime.
type RoutingDefinition struct {
	SchemaVersion string         `json:"schema_version"`
	WorkflowID    string         `json:"workflow_id"`
	Name          string         `json:"name"`
	EntryNodeID   string         `json:"entry_node_id"`
	Actions       []Action       `json:"actions"`
	Transitions   []Transition   `json:"transitions"`
	Variables     map[string]any `json:"variables,omitempty"`
	CompiledAt    time.Time      `json:"compiled_at"`
}

// Action returns the compiled action for nodeID.
func (d *RoutingDefinition) Action(nodeID string) (Action, bool) {
	for _, action := range d.Actions {
		if action.NodeID == nodeID {
			return action, true
		}
	}

	return Action{}, false
}

// TransitionsFrom returns the transitions leaving nodeID, in evaluation order.
func (d *RoutingDefinition) TransitionsFrom(nodeID string) []Transition {
	var transitions []Transition

	for _, transition := range d.Transitions {
		if transition.From == nodeID {
			transitions = append(transitions, transition)
		}
	}

	return transitions
}
