package condition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/callflow/pkg/models"
)

// ErrNoRoute indicates that no condition matched and the node has no default edge.
var ErrNoRoute = errors.New("no matching transition and no default")

// Reason explains why a transition was taken.
type Reason string

const (
	ReasonCondition Reason = "condition"
	ReasonDefault   Reason = "default"
)

// Decision is the transition selected for a turn.
type Decision struct {
	EdgeID     string               `json:"edge_id"`
	Target     string               `json:"target"`
	Reason     Reason               `json:"reason"`
	Condition  models.ConditionType `json:"condition_type,omitempty"`
	Confidence float64              `json:"confidence,omitempty"`
}

// candidate is an edge or a compiled transition, in evaluation order.
type candidate struct {
	id          string
	target      string
	kind        models.ConditionType
	expression  string
	description string
	isDefault   bool
}

// Router selects the outgoing transition of a node for a turn. Conditioned
// transitions are tried in declaration order and the first positive match wins;
// ties between AI matches are never broken by confidence. The default transition
// is the fallback.
type Router struct {
	logical    *LogicalEvaluator
	classifier IntentClassifier
	logger     *slog.Logger
}

// NewRouter creates a router. A nil classifier makes every AI condition non-matching.
func NewRouter(logical *LogicalEvaluator, classifier IntentClassifier, logger *slog.Logger) *Router {
	return &Router{
		logical:    logical,
		classifier: classifier,
		logger:     logger.With("module", "router"),
	}
}

// Route selects among the outgoing edges of one node, given in declaration order.
func (r *Router) Route(ctx context.Context, edges []*models.Edge, turn TurnContext) (*Decision, error) {
	candidates := make([]candidate, 0, len(edges))

	for _, edge := range edges {
		c := candidate{id: edge.ID, target: edge.Target, isDefault: edge.IsDefault()}
		if !c.isDefault {
			c.kind = edge.Condition.Type
			c.expression = edge.Condition.Expression
			c.description = edge.Condition.Description
		}

		candidates = append(candidates, c)
	}

	return r.route(ctx, candidates, turn)
}

// RouteDefinition selects among the compiled transitions leaving fromNodeID.
func (r *Router) RouteDefinition(
	ctx context.Context,
	definition *models.RoutingDefinition,
	fromNodeID string,
	turn TurnContext,
) (*Decision, error) {
	transitions := definition.TransitionsFrom(fromNodeID)
	slices.SortStableFunc(transitions, func(a, b models.Transition) int {
		return a.Order - b.Order
	})

	candidates := make([]candidate, 0, len(transitions))

	for _, transition := range transitions {
		c := candidate{id: transition.EdgeID, target: transition.To}

		switch transition.ConditionType {
		case models.TransitionDefault:
			c.isDefault = true
		case models.TransitionLogical:
			c.kind = models.ConditionTypeLogical
			c.expression = transition.Expression
		case models.TransitionAI:
			c.kind = models.ConditionTypeAI
			c.description = transition.Description
		default:
			return nil, fmt.Errorf("transition %s: unknown condition type %q", transition.EdgeID, transition.ConditionType)
		}

		candidates = append(candidates, c)
	}

	return r.route(ctx, candidates, turn)
}

func (r *Router) route(ctx context.Context, candidates []candidate, turn TurnContext) (*Decision, error) {
	var fallback *candidate

	for i := range candidates {
		c := &candidates[i]

		if c.isDefault {
			if fallback == nil {
				fallback = c
			}

			continue
		}

		matched, confidence, err := r.evaluate(ctx, c, turn)
		if err != nil {
			return nil, fmt.Errorf("evaluate condition of %s: %w", c.id, err)
		}

		if matched {
			r.logger.DebugContext(ctx, "Transition matched", "edge_id", c.id, "condition_type", c.kind)

			return &Decision{
				EdgeID:     c.id,
				Target:     c.target,
				Reason:     ReasonCondition,
				Condition:  c.kind,
				Confidence: confidence,
			}, nil
		}
	}

	if fallback != nil {
		r.logger.DebugContext(ctx, "Falling back to default transition", "edge_id", fallback.id)

		return &Decision{EdgeID: fallback.id, Target: fallback.target, Reason: ReasonDefault}, nil
	}

	return nil, ErrNoRoute
}

func (r *Router) evaluate(ctx context.Context, c *candidate, turn TurnContext) (bool, float64, error) {
	switch c.kind {
	case models.ConditionTypeLogical:
		return r.logical.EvaluateSource(c.expression, turn), 0, nil
	case models.ConditionTypeAI:
		if r.classifier == nil {
			return false, 0, nil
		}

		match, err := r.classifier.Evaluate(ctx, c.description, turn)
		if err != nil {
			return false, 0, err
		}

		return match.Matched, match.Confidence, nil
	default:
		return false, 0, nil
	}
}
