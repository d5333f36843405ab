// Package compiler lowers a validated workflow graph into a RoutingDefinition for
// the call-handling runtime.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/otelhelper"
	"github.com/dukex/callflow/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrGraphNotValid indicates the workflow has error findings and cannot be compiled.
	ErrGraphNotValid = errors.New("graph not valid")

	// ErrNilSnapshot indicates Compile was called without a snapshot.
	ErrNilSnapshot = errors.New("snapshot cannot be nil")
)

// CompileError carries the full validation report of a rejected workflow.
type CompileError struct {
	WorkflowID string
	Report     *validation.Report
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile workflow %s: %v: %d error finding(s)",
		e.WorkflowID, ErrGraphNotValid, len(e.Report.Errors()))
}

func (e *CompileError) Unwrap() error {
	return ErrGraphNotValid
}

// ReportFrom extracts the validation report from a compile error.
func ReportFrom(err error) (*validation.Report, bool) {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return compileErr.Report, true
	}

	return nil, false
}

// NodeTypes is the part of the node type registry the compiler needs.
type NodeTypes interface {
	Primitive(kind models.NodeKind) (models.ActionPrimitive, error)
	IsTerminal(kind models.NodeKind) bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithClock replaces the clock used for the compilation timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) {
		c.now = now
	}
}

// Compiler is a structural translation: one action per node and one transition
// per edge, in declaration order. It never reorders, inlines or prunes.
type Compiler struct {
	types     NodeTypes
	validator *validation.Validator
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

func NewCompiler(
	types NodeTypes,
	validator *validation.Validator,
	tracer trace.Tracer,
	logger *slog.Logger,
	opts ...Option,
) *Compiler {
	c := &Compiler{
		types:     types,
		validator: validator,
		tracer:    tracer,
		logger:    logger.With("module", "compiler"),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Compile validates the snapshot and lowers it. A workflow with any error finding
// yields a *CompileError and no definition.
func (c *Compiler) Compile(ctx context.Context, snapshot *models.Snapshot) (definition *models.RoutingDefinition, err error) {
	if snapshot == nil {
		return nil, ErrNilSnapshot
	}

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "compiler.compile",
		attribute.String(otelhelper.WorkflowIDKey, snapshot.ID),
		attribute.String(otelhelper.WorkflowNameKey, snapshot.Name),
		attribute.Int(otelhelper.NodeCountKey, len(snapshot.Nodes)),
		attribute.Int(otelhelper.EdgeCountKey, len(snapshot.Edges)),
	)
	defer func() {
		otelhelper.Finish(span, err, attribute.String(otelhelper.WorkflowIDKey, snapshot.ID))
	}()

	logger := c.logger.With("workflow_id", snapshot.ID)

	report := c.validator.Validate(&snapshot.Workflow)
	span.SetAttributes(attribute.Int(otelhelper.FindingCountKey, len(report.Findings)))

	if report.HasErrors() {
		logger.InfoContext(ctx, "Refusing to compile invalid workflow", "errors", len(report.Errors()))

		return nil, &CompileError{WorkflowID: snapshot.ID, Report: report}
	}

	definition = &models.RoutingDefinition{
		SchemaVersion: models.RoutingSchemaVersion,
		WorkflowID:    snapshot.ID,
		Name:          snapshot.Name,
		Actions:       make([]models.Action, 0, len(snapshot.Nodes)),
		Transitions:   make([]models.Transition, 0, len(snapshot.Edges)),
		Variables:     models.CopyMap(snapshot.Variables),
		CompiledAt:    c.now().UTC(),
	}

	for _, node := range snapshot.Nodes {
		action, err := c.lowerNode(node)
		if err != nil {
			return nil, err
		}

		if node.IsEntry() {
			definition.EntryNodeID = node.ID
		}

		definition.Actions = append(definition.Actions, action)
	}

	order := make(map[string]int)

	for _, edge := range snapshot.Edges {
		definition.Transitions = append(definition.Transitions, lowerEdge(edge, order[edge.Source]))
		order[edge.Source]++
	}

	logger.InfoContext(ctx, "Workflow compiled",
		"actions", len(definition.Actions),
		"transitions", len(definition.Transitions),
		"warnings", len(report.Warnings()))

	return definition, nil
}

func (c *Compiler) lowerNode(node *models.Node) (models.Action, error) {
	primitive, err := c.types.Primitive(node.Kind)
	if err != nil {
		return models.Action{}, fmt.Errorf("lower node %s: %w", node.ID, err)
	}

	return models.Action{
		NodeID:    node.ID,
		Kind:      node.Kind,
		Primitive: primitive,
		Terminal:  c.types.IsTerminal(node.Kind),
		Global:    node.IsGlobal(),
		Config:    models.CloneConfig(node.Config),
	}, nil
}

func lowerEdge(edge *models.Edge, order int) models.Transition {
	transition := models.Transition{
		EdgeID: edge.ID,
		From:   edge.Source,
		To:     edge.Target,
		Order:  order,
	}

	switch {
	case edge.IsDefault():
		transition.ConditionType = models.TransitionDefault
	case edge.Condition.Type == models.ConditionTypeAI:
		transition.ConditionType = models.TransitionAI
		transition.Description = edge.Condition.Description
	default:
		transition.ConditionType = models.TransitionLogical
		transition.Expression = edge.Condition.Expression
	}

	return transition
}
