// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/nodes/conversation"
	"github.com/dukex/callflow/pkg/nodes/endcall"
	"github.com/google/uuid"
)

// Billing scenario node ids.
const (
	BillingTriggerID      = "trigger-1"
	BillingConversationID = "conversation-2"
	BillingTransferID     = "transfer-3"
	BillingEndID          = "end-4"
	BillingToBillingEdge  = "edge-billing"
	BillingDefaultEdge    = "edge-default"
)

// CreateTestNode creates a node of the given kind with a valid config that can be overridden.
func CreateTestNode(kind models.NodeKind, overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:       uuid.New().String(),
		Kind:     kind,
		Title:    "Test " + string(kind),
		Position: models.Position{X: 100, Y: 200},
		Config:   testConfig(kind),
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

func testConfig(kind models.NodeKind) models.NodeConfig {
	switch kind {
	case models.NodeKindConversation:
		return &models.ConversationConfig{
			Prompt:      "How can I help you today?",
			Model:       conversation.DefaultModel,
			Temperature: conversation.DefaultTemperature,
			Voice: models.VoiceProfile{
				Provider: conversation.DefaultVoiceProvider,
				VoiceID:  conversation.DefaultVoiceID,
				Speed:    conversation.DefaultVoiceSpeed,
			},
			CaptureVariable: "reason",
		}
	case models.NodeKindAPIRequest:
		return &models.APIRequestConfig{
			Method:           "GET",
			URL:              "https://crm.example.com/customers",
			Headers:          map[string]string{},
			TimeoutSeconds:   10,
			ResponseVariable: "customer",
		}
	case models.NodeKindTool:
		return &models.ToolConfig{
			Name:        "lookup_order",
			Description: "Look up an order by id",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"order_id": map[string]any{"type": "string"}},
			},
		}
	case models.NodeKindTransferCall:
		return &models.TransferCallConfig{Destination: "+15550100", Message: "Transferring you now."}
	case models.NodeKindEndCall:
		return &models.EndCallConfig{Message: endcall.DefaultMessage}
	default:
		config, _ := models.NewConfig(kind)

		return config
	}
}

// WithID sets the node ID.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithTitle sets the node title.
func WithTitle(title string) func(*models.Node) {
	return func(n *models.Node) {
		n.Title = title
	}
}

// WithConfig sets the node configuration.
func WithConfig(config models.NodeConfig) func(*models.Node) {
	return func(n *models.Node) {
		n.Config = config
	}
}

// WithPosition sets the node position.
func WithPosition(x, y float64) func(*models.Node) {
	return func(n *models.Node) {
		n.Position = models.Position{X: x, Y: y}
	}
}

// CreateTestEdge creates an edge. A nil condition makes it a default edge.
func CreateTestEdge(id, source, target string, condition *models.Condition) *models.Edge {
	return &models.Edge{ID: id, Source: source, Target: target, Condition: condition}
}

// CreateTestWorkflow creates an empty workflow.
func CreateTestWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:        uuid.New().String(),
		Name:      "Test Workflow",
		Nodes:     []*models.Node{},
		Edges:     []*models.Edge{},
		Variables: map[string]any{"env": "test"},
	}
}

// CreateBillingWorkflow creates a valid workflow: the entry leads to a conversation
// that transfers billing calls and ends every other call.
func CreateBillingWorkflow() *models.Workflow {
	workflow := CreateTestWorkflow()
	workflow.Name = "Billing line"

	workflow.Nodes = []*models.Node{
		CreateTestNode(models.NodeKindTrigger, WithID(BillingTriggerID)),
		CreateTestNode(models.NodeKindConversation, WithID(BillingConversationID)),
		CreateTestNode(models.NodeKindTransferCall, WithID(BillingTransferID)),
		CreateTestNode(models.NodeKindEndCall, WithID(BillingEndID)),
	}

	workflow.Edges = []*models.Edge{
		CreateTestEdge("edge-entry", BillingTriggerID, BillingConversationID, nil),
		CreateTestEdge(BillingToBillingEdge, BillingConversationID, BillingTransferID,
			models.LogicalCondition(`intent == "billing"`)),
		CreateTestEdge(BillingDefaultEdge, BillingConversationID, BillingEndID, nil),
	}

	return workflow
}

// CreateBillingSnapshot wraps CreateBillingWorkflow in a snapshot.
func CreateBillingSnapshot() *models.Snapshot {
	return models.NewSnapshot(CreateBillingWorkflow())
}
