package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/callflow/pkg/condition"
	"github.com/dukex/callflow/pkg/deploy"
	"github.com/dukex/callflow/pkg/mocks"
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/nodes/conversation"
	"github.com/dukex/callflow/pkg/persistence/file"
	"github.com/dukex/callflow/pkg/registry"
	"github.com/dukex/callflow/pkg/services"
	"github.com/dukex/callflow/pkg/testutil"
	"github.com/dukex/callflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type problem struct {
	Type     string           `json:"type"`
	Status   int              `json:"status"`
	Detail   string           `json:"detail"`
	Instance string           `json:"instance"`
	Findings []map[string]any `json:"findings"`
}

func setupTestApp(t *testing.T, opts ...services.Option) *fiber.App {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	workflows := services.NewWorkflows(
		file.NewPersistence(t.TempDir()),
		registry.NewDefaultRegistry(logger),
		logger,
		opts...,
	)

	handlers := web.NewAPIHandlers(workflows, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.Register(app)

	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var value T
	require.NoError(t, json.Unmarshal(data, &value), string(data))

	return value
}

func createWorkflow(t *testing.T, app *fiber.App, name string) web.WorkflowResponse {
	t.Helper()

	status, body := do(t, app, http.MethodPost, "/workflows", web.CreateWorkflowRequest{Name: name})
	require.Equal(t, http.StatusCreated, status, string(body))

	return decode[web.WorkflowResponse](t, body)
}

// connectEnd adds an end_call node to the workflow and wires the entry to it.
func connectEnd(t *testing.T, app *fiber.App, workflow web.WorkflowResponse) *models.Node {
	t.Helper()

	status, body := do(t, app, http.MethodPost, "/workflows/"+workflow.ID+"/nodes", map[string]any{
		"kind":     "end_call",
		"title":    "Goodbye",
		"position": map[string]any{"x": 240, "y": 0},
		"config":   map[string]any{"message": "Thanks for calling"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	node := decode[models.Node](t, body)

	status, body = do(t, app, http.MethodPost, "/workflows/"+workflow.ID+"/edges", web.CreateEdgeRequest{
		Source: workflow.EntryNodeID,
		Target: node.ID,
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	return &node
}

func TestAPIHandlers_GetNodeTypes(t *testing.T) {
	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/node-types", nil)
	require.Equal(t, http.StatusOK, status)

	response := decode[map[string][]map[string]any](t, body)
	nodeTypes := response["node_types"]
	require.Len(t, nodeTypes, len(models.NodeKinds()))

	for i, kind := range models.NodeKinds() {
		assert.Equal(t, string(kind), nodeTypes[i]["kind"])
		assert.NotEmpty(t, nodeTypes[i]["name"])
		assert.NotEmpty(t, nodeTypes[i]["schema"])
		assert.Contains(t, nodeTypes[i], "default_config")
	}
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	app := setupTestApp(t)

	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{"successful creation", web.CreateWorkflowRequest{Name: "Support line"}, http.StatusCreated},
		{"missing name", map[string]any{}, http.StatusBadRequest},
		{"blank name", web.CreateWorkflowRequest{Name: "   "}, http.StatusBadRequest},
		{"invalid json", "not-an-object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodPost, "/workflows", tt.body)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if status == http.StatusCreated {
				workflow := decode[web.WorkflowResponse](t, body)
				assert.Equal(t, "Support line", workflow.Name)
				assert.NotEmpty(t, workflow.ID)
				require.Len(t, workflow.Nodes, 1)
				assert.Equal(t, workflow.Nodes[0].ID, workflow.EntryNodeID)
				assert.False(t, workflow.Dirty)
			}
		})
	}
}

func TestAPIHandlers_GetWorkflowNotFound(t *testing.T) {
	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "workflow_not_found", decode[problem](t, body).Type)
}

func TestAPIHandlers_ListAndDeleteWorkflows(t *testing.T) {
	app := setupTestApp(t)

	first := createWorkflow(t, app, "Support")
	createWorkflow(t, app, "Billing")

	status, body := do(t, app, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, status)

	list := decode[struct {
		Workflows []map[string]any `json:"workflows"`
		Total     int              `json:"total_count"`
	}](t, body)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "Billing", list.Workflows[0]["name"])

	status, _ = do(t, app, http.MethodDelete, "/workflows/"+first.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodGet, "/workflows/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_AuthoringFlow(t *testing.T) {
	deployer := &mocks.MockDeployer{}
	deployer.On("Deploy", mock.Anything, mock.Anything).Return(deploy.Handle{ID: "dep-7", Target: "test"}, nil)

	app := setupTestApp(t, services.WithDeployer(deployer))
	workflow := createWorkflow(t, app, "Support")
	base := "/workflows/" + workflow.ID

	status, body := do(t, app, http.MethodPost, base+"/validate", nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[web.ValidationResponse](t, body).Valid)

	end := connectEnd(t, app, workflow)
	assert.Equal(t, "Goodbye", end.Title)
	assert.Equal(t, &models.EndCallConfig{Message: "Thanks for calling"}, end.Config)

	status, body = do(t, app, http.MethodPost, base+"/validate", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[web.ValidationResponse](t, body).Valid)

	status, body = do(t, app, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[web.WorkflowResponse](t, body).Dirty)

	status, body = do(t, app, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.True(t, decode[web.SaveResponse](t, body).Saved)

	status, body = do(t, app, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[web.SaveResponse](t, body).Saved, "clean workflow must not be saved again")

	status, body = do(t, app, http.MethodPost, base+"/compile", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	definition := decode[models.RoutingDefinition](t, body)
	assert.Equal(t, workflow.EntryNodeID, definition.EntryNodeID)
	assert.Len(t, definition.Actions, 2)
	require.Len(t, definition.Transitions, 1)
	assert.Equal(t, end.ID, definition.Transitions[0].To)

	status, body = do(t, app, http.MethodPost, base+"/deploy", nil)
	require.Equal(t, http.StatusAccepted, status, string(body))

	deployed := decode[web.DeployResponse](t, body)
	assert.Equal(t, "dep-7", deployed.DeploymentID)
	assert.Equal(t, workflow.ID, deployed.Definition.WorkflowID)

	deployer.AssertExpectations(t)
}

func TestAPIHandlers_SaveBlockedByErrors(t *testing.T) {
	app := setupTestApp(t)
	workflow := createWorkflow(t, app, "Support")
	base := "/workflows/" + workflow.ID

	status, body := do(t, app, http.MethodPatch, base+"/nodes/"+workflow.EntryNodeID, map[string]any{
		"title": "Inbound",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = do(t, app, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	p := decode[problem](t, body)
	assert.Equal(t, "workflow_invalid", p.Type)
	assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
	assert.Equal(t, base+"/save", p.Instance)
	require.NotEmpty(t, p.Findings)
	assert.Equal(t, "dead_end", p.Findings[0]["code"])

	status, body = do(t, app, http.MethodPost, base+"/save?force=true", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	saved := decode[web.SaveResponse](t, body)
	assert.True(t, saved.Saved)
	assert.False(t, saved.Valid)

	status, _ = do(t, app, http.MethodPost, base+"/save?force=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_CompileInvalidWorkflow(t *testing.T) {
	app := setupTestApp(t)
	workflow := createWorkflow(t, app, "Support")

	status, body := do(t, app, http.MethodPost, "/workflows/"+workflow.ID+"/compile", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.NotEmpty(t, decode[problem](t, body).Findings)
}

func TestAPIHandlers_DeployWithoutDeployer(t *testing.T) {
	app := setupTestApp(t)
	workflow := createWorkflow(t, app, "Support")
	connectEnd(t, app, workflow)

	status, body := do(t, app, http.MethodPost, "/workflows/"+workflow.ID+"/deploy", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", decode[problem](t, body).Type)
}

func TestAPIHandlers_NodeErrors(t *testing.T) {
	app := setupTestApp(t)
	workflow := createWorkflow(t, app, "Support")
	base := "/workflows/" + workflow.ID

	tests := []struct {
		name           string
		method         string
		path           string
		body           any
		expectedStatus int
		expectedType   string
	}{
		{"unknown kind", http.MethodPost, base + "/nodes", map[string]any{"kind": "voicemail"}, http.StatusBadRequest, "validation_error"},
		{"missing kind", http.MethodPost, base + "/nodes", map[string]any{}, http.StatusBadRequest, "validation_error"},
		{"config of wrong shape", http.MethodPost, base + "/nodes", map[string]any{"kind": "end_call", "config": map[string]any{"message": 3}}, http.StatusBadRequest, "validation_error"},
		{"update unknown node", http.MethodPatch, base + "/nodes/ghost", map[string]any{"title": "x"}, http.StatusNotFound, "node_not_found"},
		{"delete entry node", http.MethodDelete, base + "/nodes/" + workflow.EntryNodeID, nil, http.StatusConflict, "conflict"},
		{"re-kind entry node", http.MethodPatch, base + "/nodes/" + workflow.EntryNodeID, map[string]any{"kind": "end_call"}, http.StatusConflict, "conflict"},
		{"node on missing workflow", http.MethodPost, "/workflows/missing/nodes", map[string]any{"kind": "end_call"}, http.StatusNotFound, "workflow_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, status, string(body))
			assert.Equal(t, tt.expectedType, decode[problem](t, body).Type)
		})
	}
}

func TestAPIHandlers_UpdateNodeChangesKind(t *testing.T) {
	app := setupTestApp(t)
	workflow := createWorkflow(t, app, "Support")
	base := "/workflows/" + workflow.ID

	status, body := do(t, app, http.MethodPost, base+"/nodes", map[string]any{"kind": "end_call"})
	require.Equal(t, http.StatusCreated, status)

	node := decode[models.Node](t, body)

	status, body = do(t, app, http.MethodPatch, base+"/nodes/"+node.ID, map[string]any{
		"kind":     "transfer_call",
		"position": map[string]any{"x": 10, "y": 20},
		"config":   map[string]any{"destination": "+15550100", "message": "Transferring you now"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	updated := decode[models.Node](t, body)
	assert.Equal(t, models.NodeKindTransferCall, updated.Kind)
	assert.Equal(t, models.Position{X: 10, Y: 20}, updated.Position)
	assert.Equal(t, &models.TransferCallConfig{Destination: "+15550100", Message: "Transferring you now"}, updated.Config)

	status, _ = do(t, app, http.MethodDelete, base+"/nodes/"+node.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestAPIHandlers_UpdateNodeMergesPartialConfig(t *testing.T) {
	app := setupTestApp(t)
	workflow := createWorkflow(t, app, "Support")
	base := "/workflows/" + workflow.ID

	status, body := do(t, app, http.MethodPost, base+"/nodes", map[string]any{"kind": "conversation"})
	require.Equal(t, http.StatusCreated, status, string(body))

	node := decode[models.Node](t, body)

	status, body = do(t, app, http.MethodPatch, base+"/nodes/"+node.ID, map[string]any{
		"config": map[string]any{"prompt": "Hi there"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	config, ok := decode[models.Node](t, body).Config.(*models.ConversationConfig)
	require.True(t, ok)
	assert.Equal(t, "Hi there", config.Prompt)
	assert.Equal(t, conversation.DefaultModel, config.Model)
	assert.InDelta(t, conversation.DefaultTemperature, config.Temperature, 0.0001)
	assert.Equal(t, conversation.DefaultVoiceProvider, config.Voice.Provider)
	assert.Equal(t, conversation.DefaultVoiceID, config.Voice.VoiceID)

	status, body = do(t, app, http.MethodPatch, base+"/nodes/"+node.ID, map[string]any{
		"config": map[string]any{"voice": map[string]any{"speed": 1.25}},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	config, ok = decode[models.Node](t, body).Config.(*models.ConversationConfig)
	require.True(t, ok)
	assert.Equal(t, "Hi there", config.Prompt)
	assert.Equal(t, conversation.DefaultVoiceID, config.Voice.VoiceID)
	assert.InDelta(t, 1.25, config.Voice.Speed, 0.0001)
}

func TestAPIHandlers_CreateNodeMergesConfigOntoDefault(t *testing.T) {
	app := setupTestApp(t)
	workflow := createWorkflow(t, app, "Support")

	status, body := do(t, app, http.MethodPost, "/workflows/"+workflow.ID+"/nodes", map[string]any{
		"kind":   "conversation",
		"config": map[string]any{"prompt": "How can I help?"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	config, ok := decode[models.Node](t, body).Config.(*models.ConversationConfig)
	require.True(t, ok)
	assert.Equal(t, "How can I help?", config.Prompt)
	assert.Equal(t, conversation.DefaultModel, config.Model)
	assert.Equal(t, conversation.DefaultVoiceID, config.Voice.VoiceID)
}

func TestAPIHandlers_Edges(t *testing.T) {
	app := setupTestApp(t)
	workflow := createWorkflow(t, app, "Support")
	base := "/workflows/" + workflow.ID
	end := connectEnd(t, app, workflow)

	status, body := do(t, app, http.MethodPost, base+"/edges", web.CreateEdgeRequest{
		Source:    workflow.EntryNodeID,
		Target:    end.ID,
		Condition: models.LogicalCondition(`intent == "goodbye"`),
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	edge := decode[models.Edge](t, body)
	assert.False(t, edge.IsDefault())

	status, body = do(t, app, http.MethodPatch, base+"/edges/"+edge.ID, map[string]any{
		"condition": map[string]any{"type": "ai", "description": "caller says goodbye"},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, models.AICondition("caller says goodbye"), decode[models.Edge](t, body).Condition)

	status, body = do(t, app, http.MethodPatch, base+"/edges/"+edge.ID, map[string]any{
		"condition": map[string]any{"type": "logical"},
	})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = do(t, app, http.MethodDelete, base+"/edges/ghost", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "edge_not_found", decode[problem](t, body).Type)

	status, _ = do(t, app, http.MethodDelete, base+"/edges/"+edge.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestAPIHandlers_ReplaceAndRoute(t *testing.T) {
	app := setupTestApp(t)
	workflow := createWorkflow(t, app, "Support")
	base := "/workflows/" + workflow.ID
	billing := testutil.CreateBillingWorkflow()

	status, body := do(t, app, http.MethodPut, base, web.UpdateWorkflowRequest{
		Name:  billing.Name,
		Nodes: billing.Nodes,
		Edges: billing.Edges[:1],
	})
	require.Equal(t, http.StatusUnprocessableEntity, status, string(body))

	status, body = do(t, app, http.MethodPut, base, web.UpdateWorkflowRequest{
		Name:      billing.Name,
		Nodes:     billing.Nodes,
		Edges:     billing.Edges,
		Variables: billing.Variables,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = do(t, app, http.MethodPost, base+"/route", web.RouteRequest{
		From: testutil.BillingConversationID,
		Turn: condition.TurnContext{Intent: "billing"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	decision := decode[condition.Decision](t, body)
	assert.Equal(t, testutil.BillingToBillingEdge, decision.EdgeID)
	assert.Equal(t, testutil.BillingTransferID, decision.Target)
	assert.Equal(t, condition.ReasonCondition, decision.Reason)

	status, body = do(t, app, http.MethodPost, base+"/route", web.RouteRequest{
		From: testutil.BillingConversationID,
		Turn: condition.TurnContext{Intent: "sales"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, testutil.BillingDefaultEdge, decode[condition.Decision](t, body).EdgeID)

	status, _ = do(t, app, http.MethodPost, base+"/route", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_RouteWithoutMatch(t *testing.T) {
	app := setupTestApp(t)
	workflow := createWorkflow(t, app, "Support")
	base := "/workflows/" + workflow.ID
	end := connectEnd(t, app, workflow)

	status, body := do(t, app, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status)

	edgeID := decode[web.WorkflowResponse](t, body).Edges[0].ID

	status, body = do(t, app, http.MethodPatch, base+"/edges/"+edgeID, map[string]any{
		"condition": map[string]any{"type": "logical", "expression": `intent == "goodbye"`},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = do(t, app, http.MethodPost, base+"/route", web.RouteRequest{
		From: workflow.EntryNodeID,
		Turn: condition.TurnContext{Intent: "hello"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "no_route", decode[problem](t, body).Type)

	status, body = do(t, app, http.MethodPost, base+"/route", web.RouteRequest{
		From: workflow.EntryNodeID,
		Turn: condition.TurnContext{Intent: "goodbye"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, end.ID, decode[condition.Decision](t, body).Target)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	health := decode[web.HealthResponse](t, body)
	assert.Equal(t, "healthy", health.Status)
	assert.Contains(t, health.Checkers, "registry")
	assert.Contains(t, health.Checkers, "persistence")
}
