package domain

import (
	"fmt"
	"strings"
)

// ValidationIssue is one structured validation failure.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationReport collects issues raised during a draft save. Draft saves
// report issues alongside best-effort data; publish turns a non-empty report
// into a hard failure.
type ValidationReport struct {
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// Add appends an issue to the report.
func (r *ValidationReport) Add(field, message string) {
	r.Issues = append(r.Issues, ValidationIssue{Field: field, Message: message})
}

// Merge appends all issues from another report.
func (r *ValidationReport) Merge(other ValidationReport) {
	r.Issues = append(r.Issues, other.Issues...)
}

// Empty reports whether the report carries no issues.
func (r *ValidationReport) Empty() bool {
	return r == nil || len(r.Issues) == 0
}

func (r *ValidationReport) String() string {
	if r.Empty() {
		return ""
	}
	parts := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return strings.Join(parts, "; ")
}
