package services

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/dukex/callflow/pkg/compiler"
	"github.com/dukex/callflow/pkg/condition"
	"github.com/dukex/callflow/pkg/deploy"
	"github.com/dukex/callflow/pkg/editor"
	"github.com/dukex/callflow/pkg/eventbus"
	"github.com/dukex/callflow/pkg/events"
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/otelhelper"
	"github.com/dukex/callflow/pkg/persistence"
	"github.com/dukex/callflow/pkg/registry"
	"github.com/dukex/callflow/pkg/store"
	"github.com/dukex/callflow/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Option configures the Workflows service.
type Option func(*Workflows)

// WithDeployer sets the target of Deploy.
func WithDeployer(deployer deploy.Deployer) Option {
	return func(w *Workflows) {
		w.deployer = deployer
	}
}

// WithEventBus publishes saved, deleted and compiled events on bus.
func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(w *Workflows) {
		w.bus = bus
	}
}

// WithClassifier judges AI conditions during dry-run routing.
func WithClassifier(classifier condition.IntentClassifier) Option {
	return func(w *Workflows) {
		w.classifier = classifier
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(w *Workflows) {
		w.tracer = tracer
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Workflows) {
		w.now = now
	}
}

// Workflows manages the open editing sessions and moves workflows between the
// sessions, persistence, the compiler and the deployer.
type Workflows struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	logical     *condition.LogicalEvaluator
	validator   *validation.Validator
	compiler    *compiler.Compiler
	router      *condition.Router
	classifier  condition.IntentClassifier
	deployer    deploy.Deployer
	bus         eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*editor.Session
}

// NewWorkflows creates a new workflow service.
func NewWorkflows(p persistence.Persistence, reg *registry.Registry, logger *slog.Logger, opts ...Option) *Workflows {
	w := &Workflows{
		persistence: p,
		registry:    reg,
		tracer:      otelhelper.NoopTracer(),
		logger:      logger.With("module", "workflows"),
		now:         time.Now,
		sessions:    make(map[string]*editor.Session),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logical = condition.NewLogicalEvaluator(logger)
	w.validator = validation.NewValidator(reg, w.logical, logger)
	w.compiler = compiler.NewCompiler(reg, w.validator, w.tracer, logger, compiler.WithClock(w.now))
	w.router = condition.NewRouter(w.logical, w.classifier, logger)

	return w
}

// Registry returns the node type registry the service authors against.
func (w *Workflows) Registry() *registry.Registry {
	return w.registry
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflows) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create starts a new workflow holding a single entry node, persists it and opens
// a session on it.
func (w *Workflows) Create(ctx context.Context, name string) (*editor.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("Create", "name_required", "", ErrWorkflowNameRequired)
	}

	s, err := store.New(w.registry, store.WithName(name), store.WithLogger(w.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	snapshot := s.Export()
	snapshot.SavedAt = w.now().UTC()

	err = w.persistence.Save(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to persist workflow %s: %w", snapshot.ID, err)
	}

	session := editor.NewSession(s)

	w.mu.Lock()
	w.sessions[s.ID()] = session
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Created workflow", "workflow_id", s.ID(), "name", name)
	w.publish(ctx, snapshot.ID, events.WorkflowSaved{
		BaseEvent: events.NewBaseEvent(events.WorkflowSavedEvent, snapshot.ID),
		Name:      snapshot.Name,
		NodeCount: len(snapshot.Nodes),
		EdgeCount: len(snapshot.Edges),
	})

	return session, nil
}

// Open returns the session for id, loading the workflow from persistence when it
// is not open yet.
func (w *Workflows) Open(ctx context.Context, id string) (*editor.Session, error) {
	w.mu.RLock()
	session, ok := w.sessions[id]
	w.mu.RUnlock()

	if ok {
		return session, nil
	}

	snapshot, err := w.persistence.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}

	s, err := store.New(w.registry, store.WithWorkflowID(id), store.WithLogger(w.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow %s: %w", id, err)
	}

	snapshot.ID = id

	err = s.Import(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow %s: %w", id, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.sessions[id]; ok {
		return existing, nil
	}

	session = editor.NewSession(s)
	w.sessions[id] = session

	w.logger.InfoContext(ctx, "Opened workflow", "workflow_id", id)

	return session, nil
}

// Session returns an already open session.
func (w *Workflows) Session(id string) (*editor.Session, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	session, ok := w.sessions[id]
	if !ok {
		return nil, &ServiceError{Op: "Session", Code: "not_open", Err: ErrSessionNotOpen}
	}

	return session, nil
}

// Close drops the session for id. Unsaved changes are discarded.
func (w *Workflows) Close(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.sessions, id)
}

// SaveResult reports the outcome of Save.
type SaveResult struct {
	Saved  bool               `json:"saved"`
	Report *validation.Report `json:"report"`
}

// Save persists the open workflow. A clean store is not written again. Error
// findings block the save unless force is set. Saving is last write wins.
func (w *Workflows) Save(ctx context.Context, id string, force bool) (*SaveResult, error) {
	session, err := w.Session(id)
	if err != nil {
		return nil, err
	}

	s := session.Store()
	if !s.Dirty() {
		return &SaveResult{Saved: false}, nil
	}

	snapshot, revision := s.Checkpoint()

	return w.persist(ctx, "Save", s, snapshot, revision, force)
}

// persist validates snapshot, writes it and marks s clean unless s moved past
// revision while the write was in flight.
func (w *Workflows) persist(
	ctx context.Context,
	op string,
	s *store.Store,
	snapshot *models.Snapshot,
	revision uint64,
	force bool,
) (*SaveResult, error) {
	id := snapshot.ID
	report := w.validator.Validate(&snapshot.Workflow)

	if report.HasErrors() && !force {
		return &SaveResult{Report: report}, validationFailed(op, report)
	}

	snapshot.SavedAt = w.now().UTC()

	err := w.persistence.Save(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to persist workflow %s: %w", id, err)
	}

	if !s.MarkCleanAt(revision) {
		w.logger.DebugContext(ctx, "Workflow changed while saving, keeping it dirty", "workflow_id", id)
	}

	w.logger.InfoContext(ctx, "Saved workflow", "workflow_id", id, "forced", force, "findings", len(report.Findings))
	w.publish(ctx, id, events.WorkflowSaved{
		BaseEvent: events.NewBaseEvent(events.WorkflowSavedEvent, id),
		Name:      snapshot.Name,
		NodeCount: len(snapshot.Nodes),
		EdgeCount: len(snapshot.Edges),
		Forced:    force && report.HasErrors(),
	})

	return &SaveResult{Saved: true, Report: report}, nil
}

func validationFailed(op string, report *validation.Report) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    "validation_failed",
		Message: fmt.Sprintf("%d error finding(s)", len(report.Errors())),
		Report:  report,
		Err:     ErrWorkflowInvalid,
	}
}

// Replace swaps the whole workflow for snapshot and persists it. The snapshot is
// checked the way Save checks the store.
func (w *Workflows) Replace(ctx context.Context, id string, snapshot *models.Snapshot, force bool) (*SaveResult, error) {
	session, err := w.Open(ctx, id)
	if err != nil {
		return nil, err
	}

	if snapshot == nil {
		return nil, NewValidationError("Replace", "invalid_snapshot", "snapshot is required", ErrInvalidRequest)
	}

	incoming := snapshot.Clone()
	incoming.ID = id

	staging, err := store.New(w.registry, store.WithWorkflowID(id), store.WithLogger(w.logger))
	if err != nil {
		return nil, err
	}

	err = staging.Import(incoming)
	if err != nil {
		return nil, err
	}

	report := w.validator.Validate(&staging.Export().Workflow)
	if report.HasErrors() && !force {
		return &SaveResult{Report: report}, validationFailed("Replace", report)
	}

	s := session.Store()

	err = s.Import(incoming)
	if err != nil {
		return nil, err
	}

	snapshot, revision := s.Checkpoint()

	return w.persist(ctx, "Replace", s, snapshot, revision, force)
}

// Validate runs the validator over the open workflow.
func (w *Workflows) Validate(id string) (*validation.Report, error) {
	session, err := w.Session(id)
	if err != nil {
		return nil, err
	}

	return w.validator.Validate(&session.Store().Export().Workflow), nil
}

// Compile lowers the open workflow into a routing definition.
func (w *Workflows) Compile(ctx context.Context, id string) (*models.RoutingDefinition, error) {
	session, err := w.Session(id)
	if err != nil {
		return nil, err
	}

	definition, err := w.compiler.Compile(ctx, session.Store().Export())
	if err != nil {
		return nil, err
	}

	w.publish(ctx, id, events.WorkflowCompiled{
		BaseEvent:       events.NewBaseEvent(events.WorkflowCompiledEvent, id),
		SchemaVersion:   definition.SchemaVersion,
		ActionCount:     len(definition.Actions),
		TransitionCount: len(definition.Transitions),
		CompiledAt:      definition.CompiledAt,
	})

	return definition, nil
}

// DeployResult reports what Deploy handed to the runtime.
type DeployResult struct {
	Handle     deploy.Handle             `json:"handle"`
	Definition *models.RoutingDefinition `json:"definition"`
}

// Deploy compiles the open workflow and hands the definition to the deployer.
// Deployer errors are returned unchanged.
func (w *Workflows) Deploy(ctx context.Context, id string) (result *DeployResult, err error) {
	if w.deployer == nil {
		return nil, &ServiceError{Op: "Deploy", Code: "deployer_missing", Err: ErrDeployerNotConfigured}
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflows.deploy",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.DeployerKey, fmt.Sprintf("%T", w.deployer)),
	)
	defer func() {
		otelhelper.Finish(span, err)
	}()

	definition, err := w.Compile(ctx, id)
	if err != nil {
		return nil, err
	}

	handle, err := w.deployer.Deploy(ctx, definition)
	if err != nil {
		w.logger.ErrorContext(ctx, "Deployment failed", "workflow_id", id, "error", err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.DeploymentIDKey, handle.ID))
	w.logger.InfoContext(ctx, "Deployed workflow", "workflow_id", id, "deployment", handle.String())

	return &DeployResult{Handle: handle, Definition: definition}, nil
}

// Route dry-runs the routing decision of node from for one turn. The open
// workflow is compiled first and routed over its definition, so an invalid graph
// fails the way a deploy would. Workflow variables are visible unless the turn
// overrides them.
func (w *Workflows) Route(ctx context.Context, id, from string, turn condition.TurnContext) (*condition.Decision, error) {
	session, err := w.Session(id)
	if err != nil {
		return nil, err
	}

	s := session.Store()

	if _, err := s.Node(from); err != nil {
		return nil, err
	}

	definition, err := w.compiler.Compile(ctx, s.Export())
	if err != nil {
		return nil, err
	}

	variables := maps.Clone(definition.Variables)
	if variables == nil {
		variables = make(map[string]any)
	}

	maps.Copy(variables, turn.Variables)
	turn.Variables = variables

	return w.router.RouteDefinition(ctx, definition, from, turn)
}

// Delete removes the workflow from persistence and closes its session.
func (w *Workflows) Delete(ctx context.Context, id string) error {
	err := w.persistence.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	w.Close(id)

	w.logger.InfoContext(ctx, "Deleted workflow", "workflow_id", id)
	w.publish(ctx, id, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, id),
	})

	return nil
}

// List returns summaries of the stored workflows.
func (w *Workflows) List(ctx context.Context) ([]persistence.WorkflowSummary, error) {
	summaries, err := w.persistence.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return summaries, nil
}

// publish is best effort: the workflow change has already happened.
func (w *Workflows) publish(ctx context.Context, key string, event eventbus.Event) {
	if w.bus == nil {
		return
	}

	err := w.bus.Publish(ctx, key, event)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}
