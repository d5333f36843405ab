package validation

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/dukex/callflow/pkg/condition"
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/template"
)

const (
	deadEndMessage     = "non-terminal node with no outgoing edge"
	coverageGapMessage = "conditioned outgoing edges without a default edge to fall back on"
)

// NodeTypes is the part of the node type registry the validator needs.
type NodeTypes interface {
	IsTerminal(kind models.NodeKind) bool
	ValidateConfig(kind models.NodeKind, config models.NodeConfig) error
}

// Validator runs the graph checks. It never mutates the workflow and holds no
// state between calls, so it is safe for concurrent use.
type Validator struct {
	types   NodeTypes
	logical *condition.LogicalEvaluator
	logger  *slog.Logger
}

func NewValidator(types NodeTypes, logical *condition.LogicalEvaluator, logger *slog.Logger) *Validator {
	return &Validator{
		types:   types,
		logical: logical,
		logger:  logger.With("module", "validator"),
	}
}

// graph indexes a workflow for the checks.
type graph struct {
	nodes    []*models.Node
	edges    []*models.Edge
	byID     map[string]*models.Node
	outgoing map[string][]*models.Edge
}

func newGraph(workflow *models.Workflow) *graph {
	g := &graph{
		byID:     make(map[string]*models.Node),
		outgoing: make(map[string][]*models.Edge),
	}

	for _, node := range workflow.Nodes {
		if node == nil {
			continue
		}

		g.nodes = append(g.nodes, node)
		if _, exists := g.byID[node.ID]; !exists {
			g.byID[node.ID] = node
		}
	}

	for _, edge := range workflow.Edges {
		if edge == nil {
			continue
		}

		g.edges = append(g.edges, edge)
		g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
	}

	return g
}

// Validate runs every check in order and returns the full report.
func (v *Validator) Validate(workflow *models.Workflow) *Report {
	report := &Report{Findings: []Finding{}}
	g := newGraph(workflow)

	entry := v.checkEntryCount(g, report)
	v.checkReachability(g, entry, report)
	v.checkDanglingEdges(g, report)
	v.checkDeadEnds(g, report)
	v.checkAmbiguousDefaults(g, report)
	v.checkCoverageGaps(g, report)
	v.checkConditions(g, report)
	v.checkTerminalOutgoing(g, report)
	v.checkConfigs(g, report)
	v.checkDuplicateIDs(g, report)
	v.checkTemplates(g, report)

	v.logger.Debug("Workflow validated",
		"workflow_id", workflow.ID,
		"errors", len(report.Errors()),
		"warnings", len(report.Warnings()))

	return report
}

// checkEntryCount returns the unique entry node, or nil.
func (v *Validator) checkEntryCount(g *graph, report *Report) *models.Node {
	var entries []*models.Node

	for _, node := range g.nodes {
		if node.IsEntry() {
			entries = append(entries, node)
		}
	}

	switch len(entries) {
	case 1:
		return entries[0]
	case 0:
		report.add(SeverityError, CodeEntryCount, "workflow has no entry node", "", "")
	default:
		for _, entry := range entries {
			report.add(SeverityError, CodeEntryCount,
				fmt.Sprintf("workflow has %d entry nodes, expected exactly one", len(entries)), entry.ID, "")
		}
	}

	return nil
}

// checkReachability walks the graph from the entry node and from every global node.
// Nodes reached only through a global node are reachable.
func (v *Validator) checkReachability(g *graph, entry *models.Node, report *Report) {
	if entry == nil {
		return
	}

	visited := map[string]bool{entry.ID: true}
	queue := []string{entry.ID}

	for _, node := range g.nodes {
		if node.IsGlobal() && !visited[node.ID] {
			visited[node.ID] = true
			queue = append(queue, node.ID)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range g.outgoing[current] {
			if _, exists := g.byID[edge.Target]; exists && !visited[edge.Target] {
				visited[edge.Target] = true
				queue = append(queue, edge.Target)
			}
		}
	}

	for _, node := range g.nodes {
		if !visited[node.ID] {
			report.add(SeverityWarning, CodeUnreachableNode, "node is not reachable from the entry node", node.ID, "")
		}
	}
}

func (v *Validator) checkDanglingEdges(g *graph, report *Report) {
	for _, edge := range g.edges {
		if _, exists := g.byID[edge.Source]; !exists {
			report.add(SeverityError, CodeDanglingEdge,
				fmt.Sprintf("edge source %q does not exist", edge.Source), "", edge.ID)
		}

		if _, exists := g.byID[edge.Target]; !exists {
			report.add(SeverityError, CodeDanglingEdge,
				fmt.Sprintf("edge target %q does not exist", edge.Target), "", edge.ID)
		}
	}
}

func (v *Validator) checkDeadEnds(g *graph, report *Report) {
	for _, node := range g.nodes {
		if node.IsGlobal() || v.types.IsTerminal(node.Kind) {
			continue
		}

		if len(g.outgoing[node.ID]) == 0 {
			report.add(SeverityError, CodeDeadEnd, deadEndMessage, node.ID, "")
		}
	}
}

func (v *Validator) checkAmbiguousDefaults(g *graph, report *Report) {
	for _, node := range g.nodes {
		defaults := 0

		for _, edge := range g.outgoing[node.ID] {
			if edge.IsDefault() {
				defaults++
			}
		}

		if defaults > 1 {
			report.add(SeverityError, CodeAmbiguousDefault,
				fmt.Sprintf("node has %d unconditioned outgoing edges, expected at most one", defaults), node.ID, "")
		}
	}
}

// checkCoverageGaps flags nodes whose conditioned edges have no default to fall
// back on. A turn that matches none of them has nowhere to go.
func (v *Validator) checkCoverageGaps(g *graph, report *Report) {
	for _, node := range g.nodes {
		if node.IsGlobal() || v.types.IsTerminal(node.Kind) {
			continue
		}

		outgoing := g.outgoing[node.ID]
		if len(outgoing) == 0 {
			continue
		}

		if !slices.ContainsFunc(outgoing, (*models.Edge).IsDefault) {
			report.add(SeverityWarning, CodeCoverageGap, coverageGapMessage, node.ID, "")
		}
	}
}

func (v *Validator) checkConditions(g *graph, report *Report) {
	for _, edge := range g.edges {
		if edge.IsDefault() {
			continue
		}

		if err := edge.Condition.Validate(); err != nil {
			report.add(SeverityError, CodeInvalidCondition, err.Error(), "", edge.ID)

			continue
		}

		if edge.Condition.Type != models.ConditionTypeLogical {
			continue
		}

		if _, err := v.logical.Compile(edge.Condition.Expression); err != nil {
			report.add(SeverityError, CodeInvalidCondition, err.Error(), "", edge.ID)
		}
	}
}

func (v *Validator) checkTerminalOutgoing(g *graph, report *Report) {
	for _, node := range g.nodes {
		if v.types.IsTerminal(node.Kind) && len(g.outgoing[node.ID]) > 0 {
			report.add(SeverityWarning, CodeTerminalHasOutgoing,
				"terminal node has outgoing edges that will never be taken", node.ID, "")
		}
	}
}

func (v *Validator) checkConfigs(g *graph, report *Report) {
	for _, node := range g.nodes {
		if err := v.types.ValidateConfig(node.Kind, node.Config); err != nil {
			report.add(SeverityError, CodeInvalidConfig, err.Error(), node.ID, "")
		}
	}
}

func (v *Validator) checkDuplicateIDs(g *graph, report *Report) {
	seenNodes := make(map[string]bool)

	for _, node := range g.nodes {
		if seenNodes[node.ID] {
			report.add(SeverityError, CodeDuplicateID, "duplicate node id", node.ID, "")
		}

		seenNodes[node.ID] = true
	}

	seenEdges := make(map[string]bool)

	for _, edge := range g.edges {
		if seenEdges[edge.ID] {
			report.add(SeverityError, CodeDuplicateID, "duplicate edge id", "", edge.ID)
		}

		seenEdges[edge.ID] = true
	}
}

// checkTemplates warns about spoken text that will not render at call time.
func (v *Validator) checkTemplates(g *graph, report *Report) {
	for _, node := range g.nodes {
		spoken := template.Spoken(node.Config)

		for _, field := range slices.Sorted(maps.Keys(spoken)) {
			if err := template.Check(spoken[field]); err != nil {
				report.add(SeverityWarning, CodeInvalidTemplate, field+": "+err.Error(), node.ID, "")
			}
		}
	}
}
