package condition

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

var ErrInvalidExpression = errors.New("invalid logical expression")

// Expression is a parsed logical condition.
type Expression struct {
	source string
	expr   hclsyntax.Expression
}

func (e *Expression) String() string {
	return e.source
}

// References returns the root names the expression reads.
func (e *Expression) References() []string {
	var names []string

	seen := make(map[string]bool)

	for _, traversal := range e.expr.Variables() {
		name := traversal.RootName()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	return names
}

// LogicalEvaluator evaluates side-effect-free boolean expressions written in HCL
// native syntax, for example `intent == "billing" && slots.amount > 100`.
type LogicalEvaluator struct {
	logger    *slog.Logger
	functions map[string]function.Function
}

func NewLogicalEvaluator(logger *slog.Logger) *LogicalEvaluator {
	return &LogicalEvaluator{
		logger: logger.With("module", "logical_evaluator"),
		functions: map[string]function.Function{
			"lower":     stdlib.LowerFunc,
			"upper":     stdlib.UpperFunc,
			"trimspace": stdlib.TrimSpaceFunc,
			"strlen":    stdlib.StrlenFunc,
			"length":    stdlib.LengthFunc,
			"contains":  stdlib.ContainsFunc,
			"coalesce":  stdlib.CoalesceFunc,
		},
	}
}

// Compile parses source. Errors wrap ErrInvalidExpression.
func (l *LogicalEvaluator) Compile(source string) (*Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(source), "condition", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, diags.Error())
	}

	return &Expression{source: source, expr: expr}, nil
}

// Evaluate reports whether expr holds for turn. Unresolved references evaluate to
// null; evaluation errors and non-boolean results are false.
func (l *LogicalEvaluator) Evaluate(expr *Expression, turn TurnContext) (matched bool) {
	if expr == nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Logical expression panicked", "expression", expr.source, "panic", r)
			matched = false
		}
	}()

	variables := l.scope(turn, expr)

	value, diags := expr.expr.Value(&hcl.EvalContext{
		Variables: variables,
		Functions: l.functions,
	})
	if diags.HasErrors() {
		l.logger.Debug("Logical expression evaluated with errors", "expression", expr.source, "error", diags.Error())

		return false
	}

	if !value.IsKnown() || value.IsNull() || !value.Type().Equals(cty.Bool) {
		return false
	}

	return value.True()
}

// EvaluateSource compiles and evaluates source in one step. Invalid expressions are false.
func (l *LogicalEvaluator) EvaluateSource(source string, turn TurnContext) bool {
	expr, err := l.Compile(source)
	if err != nil {
		l.logger.Debug("Invalid logical expression", "expression", source, "error", err)

		return false
	}

	return l.Evaluate(expr, turn)
}

// scope binds the call context and workflow variables for expr. Every path expr
// reads that the turn does not carry is bound to null, at any depth.
func (l *LogicalEvaluator) scope(turn TurnContext, expr *Expression) map[string]cty.Value {
	root := l.normalize(turn.Variables)

	root[ScopeIntent] = turn.Intent
	root[ScopeUtterance] = turn.Utterance
	root[ScopeSlots] = l.normalize(turn.Slots)
	root[ScopeVars] = l.normalize(turn.Variables)

	for _, traversal := range expr.expr.Variables() {
		fillMissing(root, referencePath(traversal))
	}

	return l.toValues(root)
}

// referencePath returns the attribute and string-key steps of traversal, stopping
// at the first step that is neither.
func referencePath(traversal hcl.Traversal) []string {
	path := []string{traversal.RootName()}

	for _, step := range traversal[1:] {
		switch s := step.(type) {
		case hcl.TraverseAttr:
			path = append(path, s.Name)
		case hcl.TraverseIndex:
			if !s.Key.IsKnown() || s.Key.IsNull() || !s.Key.Type().Equals(cty.String) {
				return path
			}

			path = append(path, s.Key.AsString())
		default:
			return path
		}
	}

	return path
}

// fillMissing creates the absent part of path in tree, ending in a nil leaf.
// Present non-object values are left untouched.
func fillMissing(tree map[string]any, path []string) {
	for i, key := range path {
		value, ok := tree[key]
		if !ok {
			if i == len(path)-1 {
				tree[key] = nil

				return
			}

			next := make(map[string]any)
			tree[key] = next
			tree = next

			continue
		}

		next, isObject := value.(map[string]any)
		if !isObject {
			return
		}

		tree = next
	}
}

// normalize returns a fresh JSON-shaped copy of values. Values that cannot be
// represented yield an empty map.
func (l *LogicalEvaluator) normalize(values map[string]any) map[string]any {
	result := make(map[string]any, len(values))
	if len(values) == 0 {
		return result
	}

	data, err := json.Marshal(values)
	if err != nil {
		l.logger.Debug("Cannot encode variables for evaluation", "error", err)

		return result
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return make(map[string]any)
	}

	return result
}

// toValues converts the JSON-shaped root scope into cty values. Nil becomes a
// null of dynamic type.
func (l *LogicalEvaluator) toValues(root map[string]any) map[string]cty.Value {
	variables := make(map[string]cty.Value, len(root))

	for name, value := range root {
		variables[name] = l.toValue(value)
	}

	return variables
}

func (l *LogicalEvaluator) toValue(value any) cty.Value {
	if value == nil {
		return cty.NullVal(cty.DynamicPseudoType)
	}

	data, err := json.Marshal(value)
	if err != nil {
		l.logger.Debug("Cannot encode value for evaluation", "error", err)

		return cty.NullVal(cty.DynamicPseudoType)
	}

	impliedType, err := ctyjson.ImpliedType(data)
	if err != nil {
		return cty.NullVal(cty.DynamicPseudoType)
	}

	converted, err := ctyjson.Unmarshal(data, impliedType)
	if err != nil {
		return cty.NullVal(cty.DynamicPseudoType)
	}

	return converted
}
