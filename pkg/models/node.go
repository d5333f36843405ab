// Package models defines the core domain models for call-flow workflow graphs.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeKind identifies what a node does when the call reaches it.
type NodeKind string

const (
	NodeKindTrigger      NodeKind = "trigger"       // Entry point, one per workflow
	NodeKindConversation NodeKind = "conversation"  // Prompt the caller and capture a response
	NodeKindAPIRequest   NodeKind = "api_request"   // Call an external endpoint
	NodeKindTool         NodeKind = "tool"          // Invoke a named capability
	NodeKindTransferCall NodeKind = "transfer_call" // Hand the call off, terminal
	NodeKindEndCall      NodeKind = "end_call"      // Hang up with a message, terminal
	NodeKindCondition    NodeKind = "condition"     // Pure routing point
	NodeKindGlobal       NodeKind = "global"        // Side-channel entry reachable from anywhere
)

// ErrUnknownNodeKind is returned when a kind string is not one of the known node kinds.
var ErrUnknownNodeKind = errors.New("unknown node kind")

// NodeKinds lists every node kind in a stable order.
func NodeKinds() []NodeKind {
	return []NodeKind{
		NodeKindTrigger,
		NodeKindConversation,
		NodeKindAPIRequest,
		NodeKindTool,
		NodeKindTransferCall,
		NodeKindEndCall,
		NodeKindCondition,
		NodeKindGlobal,
	}
}

// ParseNodeKind converts a string into a NodeKind.
func ParseNodeKind(s string) (NodeKind, error) {
	for _, kind := range NodeKinds() {
		if string(kind) == s {
			return kind, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownNodeKind, s)
}

// Position is the canvas coordinate of a node. It has no execution semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex of the workflow graph.
type Node struct {
	ID          string     `json:"id"                    validate:"required"`
	Kind        NodeKind   `json:"kind"                  validate:"required"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Position    Position   `json:"position"`
	Config      NodeConfig `json:"config"`
}

// IsEntry reports whether the node is the workflow entry point.
func (n *Node) IsEntry() bool {
	return n.Kind == NodeKindTrigger
}

// IsGlobal reports whether the node is a side-channel global node.
func (n *Node) IsGlobal() bool {
	return n.Kind == NodeKindGlobal
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	clone := *n
	clone.Config = CloneConfig(n.Config)

	return &clone
}

type nodeJSON struct {
	ID          string          `json:"id"`
	Kind        NodeKind        `json:"kind"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Position    Position        `json:"position"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON decodes a node, selecting the config type from the node kind.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	kind, err := ParseNodeKind(string(raw.Kind))
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}

	config, err := DecodeConfig(kind, raw.Config)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}

	n.ID = raw.ID
	n.Kind = kind
	n.Title = raw.Title
	n.Description = raw.Description
	n.Position = raw.Position
	n.Config = config

	return nil
}
