// Package validation checks a workflow graph for well-formedness before it is saved
// or compiled.
package validation

import (
	"fmt"
	"strings"
)

// Severity grades a finding. Errors block compilation; warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code identifies the check that produced a finding.
type Code string

const (
	CodeEntryCount          Code = "entry_count"
	CodeUnreachableNode     Code = "unreachable_node"
	CodeDanglingEdge        Code = "dangling_edge"
	CodeDeadEnd             Code = "dead_end"
	CodeAmbiguousDefault    Code = "ambiguous_default"
	CodeCoverageGap         Code = "coverage_gap"
	CodeInvalidCondition    Code = "invalid_condition"
	CodeTerminalHasOutgoing Code = "terminal_has_outgoing"
	CodeInvalidConfig       Code = "invalid_config"
	CodeDuplicateID         Code = "duplicate_id"
	CodeInvalidTemplate     Code = "invalid_template"
)

// Finding is one validation result.
type Finding struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	NodeID   string   `json:"node_id,omitempty"`
	EdgeID   string   `json:"edge_id,omitempty"`
}

func (f Finding) String() string {
	var target string

	switch {
	case f.NodeID != "":
		target = " node " + f.NodeID
	case f.EdgeID != "":
		target = " edge " + f.EdgeID
	}

	return fmt.Sprintf("%s [%s]%s: %s", f.Severity, f.Code, target, f.Message)
}

// Report is the full list of findings, in check order.
type Report struct {
	Findings []Finding `json:"findings"`
}

// HasErrors reports whether any finding blocks compilation.
func (r *Report) HasErrors() bool {
	for _, finding := range r.Findings {
		if finding.Severity == SeverityError {
			return true
		}
	}

	return false
}

// Errors returns the error findings.
func (r *Report) Errors() []Finding {
	return r.filter(SeverityError)
}

// Warnings returns the warning findings.
func (r *Report) Warnings() []Finding {
	return r.filter(SeverityWarning)
}

// ByCode returns the findings produced by one check.
func (r *Report) ByCode(code Code) []Finding {
	var findings []Finding

	for _, finding := range r.Findings {
		if finding.Code == code {
			findings = append(findings, finding)
		}
	}

	return findings
}

func (r *Report) filter(severity Severity) []Finding {
	var findings []Finding

	for _, finding := range r.Findings {
		if finding.Severity == severity {
			findings = append(findings, finding)
		}
	}

	return findings
}

func (r *Report) String() string {
	lines := make([]string, 0, len(r.Findings))
	for _, finding := range r.Findings {
		lines = append(lines, finding.String())
	}

	return strings.Join(lines, "\n")
}

func (r *Report) add(severity Severity, code Code, message, nodeID, edgeID string) {
	r.Findings = append(r.Findings, Finding{
		Severity: severity,
		Code:     code,
		Message:  message,
		NodeID:   nodeID,
		EdgeID:   edgeID,
	})
}
