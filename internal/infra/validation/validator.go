package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
)

// FieldRule binds a dotted payload path to a validation tag.
type FieldRule struct {
	Path string
	Tag  string
}

// DefaultRules covers the baseline payload shape: a metadata section with a
// non-empty title.
func DefaultRules() []FieldRule {
	return []FieldRule{
		{Path: "metadata", Tag: "required"},
		{Path: "metadata.title", Tag: "required,min=1"},
	}
}

// SchemaValidator checks payloads against a rule set and strips sections the
// schema does not know. The allowed top-level sections are the rule roots
// plus the files manifests.
type SchemaValidator struct {
	validate *validator.Validate
	rules    []FieldRule
	allowed  map[string]struct{}
}

// NewSchemaValidator builds the validator from the rule set.
func NewSchemaValidator(rules []FieldRule) *SchemaValidator {
	allowed := map[string]struct{}{
		"files":       {},
		"media_files": {},
		"access":      {},
	}
	for _, rule := range rules {
		root, _, _ := strings.Cut(rule.Path, ".")
		allowed[root] = struct{}{}
	}

	return &SchemaValidator{
		validate: validator.New(),
		rules:    rules,
		allowed:  allowed,
	}
}

// Validate returns the cleaned payload and the issues found. Unknown
// top-level sections are dropped rather than reported, so clients can send
// envelopes with transport noise.
func (v *SchemaValidator) Validate(ctx context.Context, data map[string]any) (map[string]any, domain.ValidationReport, error) {
	var report domain.ValidationReport

	clean := make(map[string]any, len(data))
	for key, value := range data {
		if _, ok := v.allowed[key]; ok {
			clean[key] = value
		}
	}

	for _, rule := range v.rules {
		value, found := lookupPath(clean, rule.Path)
		if err := v.validate.VarCtx(ctx, value, rule.Tag); err != nil {
			if _, ok := err.(validator.ValidationErrors); !ok {
				return nil, report, fmt.Errorf("validate %s: %w", rule.Path, err)
			}
			report.Add(rule.Path, describeFailure(rule.Tag, found))
		}
	}

	return clean, report, nil
}

func lookupPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	current := any(data)
	for _, part := range parts {
		section, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = section[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func describeFailure(tag string, present bool) string {
	if !present {
		return "missing required field"
	}
	return fmt.Sprintf("failed %q constraint", tag)
}

var _ port.MetadataValidator = (*SchemaValidator)(nil)
