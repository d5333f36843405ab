package models

import (
	"errors"
	"strings"
)

// ConditionType tags the variant carried by a Condition.
type ConditionType string

const (
	ConditionTypeLogical ConditionType = "logical" // Deterministic boolean expression over variables
	ConditionTypeAI      ConditionType = "ai"      // Natural-language criterion judged by an intent classifier
)

var (
	ErrConditionTypeUnknown        = errors.New("unknown condition type")
	ErrConditionExpressionMissing  = errors.New("logical condition requires an expression")
	ErrConditionDescriptionMissing = errors.New("ai condition requires a description")
)

// Condition guards an edge. Exactly one of Expression or Description is used, selected by Type.
type Condition struct {
	Type        ConditionType `json:"type"                  validate:"required,oneof=logical ai"`
	Expression  string        `json:"expression,omitempty"`
	Description string        `json:"description,omitempty"`
}

// LogicalCondition builds a logical-expression condition.
func LogicalCondition(expression string) *Condition {
	return &Condition{Type: ConditionTypeLogical, Expression: expression}
}

// AICondition builds an AI intent condition.
func AICondition(description string) *Condition {
	return &Condition{Type: ConditionTypeAI, Description: description}
}

// Validate checks that the condition carries the field its type requires.
func (c *Condition) Validate() error {
	switch c.Type {
	case ConditionTypeLogical:
		if strings.TrimSpace(c.Expression) == "" {
			return ErrConditionExpressionMissing
		}
	case ConditionTypeAI:
		if strings.TrimSpace(c.Description) == "" {
			return ErrConditionDescriptionMissing
		}
	default:
		return ErrConditionTypeUnknown
	}

	return nil
}

// Clone returns a copy of the condition, or nil.
func (c *Condition) Clone() *Condition {
	if c == nil {
		return nil
	}

	copied := *c

	return &copied
}

// Edge is a directed, optionally conditioned transition between two nodes.
type Edge struct {
	ID        string     `json:"id"                  validate:"required"`
	Source    string     `json:"source"              validate:"required"`
	Target    string     `json:"target"              validate:"required"`
	Condition *Condition `json:"condition,omitempty"`
}

// IsDefault reports whether the edge is the unconditioned fallback transition of its source.
func (e *Edge) IsDefault() bool {
	return e.Condition == nil
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}

	clone := *e
	clone.Condition = e.Condition.Clone()

	return &clone
}
