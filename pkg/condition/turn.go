// Package condition evaluates edge conditions and routes a conversational turn to
// the next node.
package condition

// Scope names bound for every logical expression. Workflow variables are also
// bound at the top level unless they collide with one of these.
const (
	ScopeIntent    = "intent"
	ScopeUtterance = "utterance"
	ScopeSlots     = "slots"
	ScopeVars      = "vars"
)

// TurnContext is the conversational state a routing decision is made on.
type TurnContext struct {
	Intent    string         `json:"intent,omitempty"`
	Utterance string         `json:"utterance,omitempty"`
	Slots     map[string]any `json:"slots,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
}
