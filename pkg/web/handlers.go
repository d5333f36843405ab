// Package web provides HTTP handlers and REST API endpoints for workflow authoring.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/services"
	"github.com/dukex/callflow/pkg/store"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflows *services.Workflows
	validator *validator.Validate
}

func NewAPIHandlers(workflows *services.Workflows, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		workflows: workflows,
		validator: validator,
	}
}

// Register mounts every endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/node-types", h.GetNodeTypes)
	router.Get("/health", h.HealthCheck)

	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/save", h.SaveWorkflow)
	w.Post("/:id/validate", h.ValidateWorkflow)
	w.Post("/:id/compile", h.CompileWorkflow)
	w.Post("/:id/deploy", h.DeployWorkflow)
	w.Post("/:id/route", h.RouteWorkflow)

	w.Post("/:id/nodes", h.CreateWorkflowNode)
	w.Patch("/:id/nodes/:nodeId", h.UpdateWorkflowNode)
	w.Delete("/:id/nodes/:nodeId", h.DeleteWorkflowNode)

	w.Post("/:id/edges", h.CreateWorkflowEdge)
	w.Patch("/:id/edges/:edgeId", h.UpdateWorkflowEdge)
	w.Delete("/:id/edges/:edgeId", h.DeleteWorkflowEdge)
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	factories := h.workflows.Registry().GetAvailableNodes()

	nodeTypes := make([]NodeTypeResponse, 0, len(factories))
	for _, factory := range factories {
		nodeTypes = append(nodeTypes, TransformNodeType(factory))
	}

	return c.JSON(fiber.Map{"node_types": nodeTypes})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := "Registry is healthy", true
	if err := h.workflows.Registry().HealthCheck(); err != nil {
		registryCheck, regOk = "Registry is unhealthy: "+err.Error(), false
	}

	persistenceCheck, perOk := h.workflows.HealthCheck(c.Context())

	response := HealthResponse{
		Status:  "unhealthy",
		Message: "Callflow API is unhealthy",
		Checkers: map[string]string{
			"registry":    registryCheck,
			"persistence": persistenceCheck,
		},
		Timestamp: time.Now().UTC(),
	}
	httpStatus := http.StatusInternalServerError

	if regOk && perOk {
		response.Status = "healthy"
		response.Message = "Callflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(response)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	summaries, err := h.workflows.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.workflows.Create(c.Context(), req.Name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(NewWorkflowResponse(session))
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	session, err := h.workflows.Open(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NewWorkflowResponse(session))
}

// UpdateWorkflow replaces the whole graph. Pass force=true to persist a graph
// with error findings.
func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	force, err := parseForce(c)
	if err != nil {
		return badRequest(c, "Invalid force parameter")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")

	result, err := h.workflows.Replace(c.Context(), id, req.Snapshot(id), force)
	if err != nil {
		return handleServiceError(c, err)
	}

	session, err := h.workflows.Session(id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow":   NewWorkflowResponse(session),
		"validation": NewValidationResponse(result.Report),
	})
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflows.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	force, err := parseForce(c)
	if err != nil {
		return badRequest(c, "Invalid force parameter")
	}

	id := c.Params("id")

	if _, err := h.workflows.Open(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	result, err := h.workflows.Save(c.Context(), id, force)
	if err != nil {
		return handleServiceError(c, err)
	}

	response := SaveResponse{Saved: result.Saved, ValidationResponse: ValidationResponse{Valid: true}}
	if result.Report != nil {
		response.ValidationResponse = NewValidationResponse(result.Report)
	}

	return c.JSON(response)
}

func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.workflows.Open(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	report, err := h.workflows.Validate(id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NewValidationResponse(report))
}

func (h *APIHandlers) CompileWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.workflows.Open(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	definition, err := h.workflows.Compile(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) DeployWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.workflows.Open(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	result, err := h.workflows.Deploy(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(NewDeployResponse(result.Handle, result.Definition))
}

// RouteWorkflow dry-runs routing: it answers which edge a turn would follow out
// of a node without running anything.
func (h *APIHandlers) RouteWorkflow(c fiber.Ctx) error {
	var req RouteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")

	if _, err := h.workflows.Open(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	decision, err := h.workflows.Route(c.Context(), id, req.From, req.Turn)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(decision)
}

func (h *APIHandlers) CreateWorkflowNode(c fiber.Ctx) error {
	var req CreateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	kind, err := models.ParseNodeKind(req.Kind)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var update store.NodeUpdate

	if len(req.Config) > 0 {
		base, err := h.workflows.Registry().DefaultConfig(kind)
		if err != nil {
			return badRequest(c, err.Error())
		}

		update.Config, err = models.PatchConfig(kind, base, req.Config)
		if err != nil {
			return badRequest(c, err.Error())
		}
	}

	if req.Title != "" {
		update.Title = &req.Title
	}

	s, err := h.openStore(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	node, err := s.AddNode(kind, req.Position)
	if err != nil {
		return handleServiceError(c, err)
	}

	if update.Title != nil || update.Config != nil {
		node, err = s.UpdateNode(node.ID, update)
		if err != nil {
			return handleServiceError(c, err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

// UpdateWorkflowNode applies a partial edit. A partial config is merged onto the
// current one, or onto the new kind's default when the kind changes.
func (h *APIHandlers) UpdateWorkflowNode(c fiber.Ctx) error {
	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	s, err := h.openStore(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	nodeID := c.Params("nodeId")

	node, err := s.Node(nodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	kind := node.Kind
	if req.Kind != nil {
		kind, err = models.ParseNodeKind(*req.Kind)
		if err != nil {
			return badRequest(c, err.Error())
		}
	}

	update := store.NodeUpdate{
		Title:       req.Title,
		Description: req.Description,
		Position:    req.Position,
	}

	if len(req.Config) > 0 {
		base := node.Config
		if kind != node.Kind {
			base, err = h.workflows.Registry().DefaultConfig(kind)
			if err != nil {
				return badRequest(c, err.Error())
			}
		}

		update.Config, err = models.PatchConfig(kind, base, req.Config)
		if err != nil {
			return badRequest(c, err.Error())
		}
	}

	if kind != node.Kind {
		node, err = s.ChangeKind(nodeID, kind)
		if err != nil {
			return handleServiceError(c, err)
		}
	}

	if update != (store.NodeUpdate{}) {
		node, err = s.UpdateNode(nodeID, update)
		if err != nil {
			return handleServiceError(c, err)
		}
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeleteWorkflowNode(c fiber.Ctx) error {
	s, err := h.openStore(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := s.DeleteNode(c.Params("nodeId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateWorkflowEdge(c fiber.Ctx) error {
	var req CreateEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	s, err := h.openStore(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	edge, err := s.Connect(req.Source, req.Target, req.Condition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (h *APIHandlers) UpdateWorkflowEdge(c fiber.Ctx) error {
	var req UpdateEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	s, err := h.openStore(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	edge, err := s.UpdateEdgeCondition(c.Params("edgeId"), req.Condition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(edge)
}

func (h *APIHandlers) DeleteWorkflowEdge(c fiber.Ctx) error {
	s, err := h.openStore(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := s.Disconnect(c.Params("edgeId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// openStore opens the workflow named by the id route parameter.
func (h *APIHandlers) openStore(c fiber.Ctx) (*store.Store, error) {
	session, err := h.workflows.Open(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}

	return session.Store(), nil
}

func parseForce(c fiber.Ctx) (bool, error) {
	value := c.Query("force")
	if value == "" {
		return false, nil
	}

	return strconv.ParseBool(value)
}
