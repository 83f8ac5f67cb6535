package usecase

import (
	"context"
	"fmt"

	"github.com/arklim/record-registry/internal/core/port"
)

// MetadataComponent runs the validation collaborator over the payload.
// Draft saves keep best-effort clean data and report issues; publish fails
// hard on any issue so an invalid record is never produced.
type MetadataComponent struct {
	BaseComponent
	validator port.MetadataValidator
}

// NewMetadataComponent wires the validation collaborator into the pipeline.
func NewMetadataComponent(validator port.MetadataValidator) *MetadataComponent {
	return &MetadataComponent{validator: validator}
}

func (c *MetadataComponent) Create(ctx context.Context, op *OpContext) error {
	return c.validateSoft(ctx, op)
}

func (c *MetadataComponent) UpdateDraft(ctx context.Context, op *OpContext) error {
	return c.validateSoft(ctx, op)
}

func (c *MetadataComponent) Publish(ctx context.Context, op *OpContext) error {
	clean, report, err := c.validator.Validate(ctx, op.Draft.Data)
	if err != nil {
		return fmt.Errorf("validate draft for publish: %w", err)
	}
	if !report.Empty() {
		return &ValidationError{Report: report}
	}
	op.Record.Data = clean
	return nil
}

func (c *MetadataComponent) validateSoft(ctx context.Context, op *OpContext) error {
	clean, report, err := c.validator.Validate(ctx, op.Data)
	if err != nil {
		return fmt.Errorf("validate draft data: %w", err)
	}
	op.Report.Merge(report)
	op.Draft.Data = clean
	return nil
}

var _ LifecycleComponent = (*MetadataComponent)(nil)
