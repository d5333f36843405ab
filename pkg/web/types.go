// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"encoding/json"
	"time"

	"github.com/dukex/callflow/pkg/condition"
	"github.com/dukex/callflow/pkg/deploy"
	"github.com/dukex/callflow/pkg/editor"
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/protocol"
	"github.com/dukex/callflow/pkg/validation"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// UpdateWorkflowRequest replaces the whole graph of a workflow.
type UpdateWorkflowRequest struct {
	Name      string         `json:"name"                validate:"required,min=1,max=200"`
	Nodes     []*models.Node `json:"nodes"               validate:"required,min=1"`
	Edges     []*models.Edge `json:"edges"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Snapshot converts the request into an importable snapshot for workflow id.
func (r UpdateWorkflowRequest) Snapshot(id string) *models.Snapshot {
	edges := r.Edges
	if edges == nil {
		edges = []*models.Edge{}
	}

	return models.NewSnapshot(&models.Workflow{
		ID:        id,
		Name:      r.Name,
		Nodes:     r.Nodes,
		Edges:     edges,
		Variables: r.Variables,
	})
}

// CreateNodeRequest represents the request body for adding a node.
// Config is optional; the kind's default configuration is used when absent.
type CreateNodeRequest struct {
	Kind     string          `json:"kind"              validate:"required"`
	Title    string          `json:"title,omitempty"`
	Position models.Position `json:"position"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// UpdateNodeRequest represents a partial node edit. Omitted fields are left
// untouched. A kind change replaces the config with the new kind's default
// before Config is applied.
type UpdateNodeRequest struct {
	Kind        *string          `json:"kind,omitempty"`
	Title       *string          `json:"title,omitempty"       validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty"`
	Position    *models.Position `json:"position,omitempty"`
	Config      json.RawMessage  `json:"config,omitempty"`
}

// CreateEdgeRequest represents the request body for connecting two nodes.
// A missing condition creates the default edge of the source.
type CreateEdgeRequest struct {
	Source    string            `json:"source"              validate:"required"`
	Target    string            `json:"target"              validate:"required"`
	Condition *models.Condition `json:"condition,omitempty"`
}

// UpdateEdgeRequest replaces the condition of an edge. A null condition turns
// the edge into the default edge of its source.
type UpdateEdgeRequest struct {
	Condition *models.Condition `json:"condition"`
}

// RouteRequest asks which edge a turn would follow out of a node.
type RouteRequest struct {
	From string                `json:"from" validate:"required"`
	Turn condition.TurnContext `json:"turn"`
}

// WorkflowResponse is a workflow as seen by an editor client.
type WorkflowResponse struct {
	models.Workflow

	EntryNodeID string           `json:"entry_node_id"`
	Dirty       bool             `json:"dirty"`
	Selection   editor.Selection `json:"selection"`
}

// NewWorkflowResponse renders the current state of an editing session.
func NewWorkflowResponse(session *editor.Session) WorkflowResponse {
	s := session.Store()

	return WorkflowResponse{
		Workflow:    s.Export().Workflow,
		EntryNodeID: s.EntryNodeID(),
		Dirty:       s.Dirty(),
		Selection:   session.Selection(),
	}
}

// NodeTypeResponse describes a node kind available in the palette.
type NodeTypeResponse struct {
	Kind          models.NodeKind        `json:"kind"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Terminal      bool                   `json:"terminal"`
	Primitive     models.ActionPrimitive `json:"primitive"`
	DefaultConfig models.NodeConfig      `json:"default_config"`
	Schema        map[string]any         `json:"schema"`
}

// TransformNodeType renders a registered factory for the palette.
func TransformNodeType(factory protocol.NodeFactory) NodeTypeResponse {
	return NodeTypeResponse{
		Kind:          factory.Kind(),
		Name:          factory.Name(),
		Description:   factory.Description(),
		Terminal:      factory.Terminal(),
		Primitive:     factory.Primitive(),
		DefaultConfig: factory.DefaultConfig(),
		Schema:        factory.Schema(),
	}
}

// ValidationResponse carries the findings of a validation pass.
type ValidationResponse struct {
	Valid    bool                 `json:"valid"`
	Findings []validation.Finding `json:"findings"`
}

// NewValidationResponse renders a report. A report without error findings is valid.
func NewValidationResponse(report *validation.Report) ValidationResponse {
	findings := report.Findings
	if findings == nil {
		findings = []validation.Finding{}
	}

	return ValidationResponse{Valid: !report.HasErrors(), Findings: findings}
}

// SaveResponse reports the outcome of a save.
type SaveResponse struct {
	Saved bool `json:"saved"`
	ValidationResponse
}

// DeployResponse reports where a compiled definition went.
type DeployResponse struct {
	DeploymentID string                    `json:"deployment_id"`
	Target       string                    `json:"target"`
	Definition   *models.RoutingDefinition `json:"definition"`
}

// NewDeployResponse renders a deployment handle with the definition it carried.
func NewDeployResponse(handle deploy.Handle, definition *models.RoutingDefinition) DeployResponse {
	return DeployResponse{DeploymentID: handle.ID, Target: handle.Target, Definition: definition}
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Checkers  map[string]string `json:"checkers"`
	Timestamp time.Time         `json:"timestamp"`
}
