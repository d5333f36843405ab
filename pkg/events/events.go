// Package events defines the notifications emitted as workflows are saved, compiled and deployed.
package events

import (
	"time"

	"github.com/dukex/callflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every callflow event; the event type travels in message metadata.
const Topic = "callflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowSavedEvent    EventType = "workflow.saved"
	WorkflowDeletedEvent  EventType = "workflow.deleted"
	WorkflowCompiledEvent EventType = "workflow.compiled"
	RoutingDeployedEvent  EventType = "routing.deployed"
)

// Types lists every event type callflow publishes.
func Types() []EventType {
	return []EventType{
		WorkflowSavedEvent,
		WorkflowDeletedEvent,
		WorkflowCompiledEvent,
		RoutingDeployedEvent,
	}
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// WorkflowSaved is emitted after a snapshot reaches persistence.
type WorkflowSaved struct {
	BaseEvent

	Name      string `json:"name"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
	Forced    bool   `json:"forced,omitempty"`
}

func (w WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

// WorkflowCompiled is emitted after a workflow is lowered into a routing definition.
type WorkflowCompiled struct {
	BaseEvent

	SchemaVersion   string    `json:"schema_version"`
	ActionCount     int       `json:"action_count"`
	TransitionCount int       `json:"transition_count"`
	CompiledAt      time.Time `json:"compiled_at"`
}

func (w WorkflowCompiled) GetType() EventType {
	return WorkflowCompiledEvent
}

// RoutingDeployed hands a compiled definition to the call-handling runtime.
type RoutingDeployed struct {
	BaseEvent

	DeploymentID string                    `json:"deployment_id"`
	Definition   *models.RoutingDefinition `json:"definition"`
}

func (r RoutingDeployed) GetType() EventType {
	return RoutingDeployedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
