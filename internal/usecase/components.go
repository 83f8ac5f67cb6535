package usecase

import (
	"context"

	"github.com/arklim/record-registry/internal/core/domain"
)

// OpContext carries the state a lifecycle hook may inspect or mutate during
// one service operation.
type OpContext struct {
	Identity domain.Identity
	// Data is the caller-supplied payload for create/update operations.
	Data   map[string]any
	Draft  *domain.Draft
	Record *domain.Record
	// LatestRecord is the parent's current published version, set where a
	// hook copies from it (import files).
	LatestRecord *domain.Record
	// Report collects soft validation issues. Draft saves return it to the
	// caller; publish treats a non-empty report as fatal.
	Report *domain.ValidationReport
	// Force marks a hard delete of a never-published draft.
	Force bool
	// FirstPublish is true when no published bucket exists yet for this
	// lineage, so the draft's bucket is handed off rather than synced.
	FirstPublish bool
	// UOW lets hooks stage extra persistence steps (e.g. persisting the
	// parent after registering its identifier).
	UOW *UnitOfWork
}

// LifecycleComponent is one pluggable step of the service pipeline. The
// service invokes each hook on every component in order; components embed
// BaseComponent and override only the hooks they care about.
type LifecycleComponent interface {
	Create(ctx context.Context, op *OpContext) error
	UpdateDraft(ctx context.Context, op *OpContext) error
	Edit(ctx context.Context, op *OpContext) error
	Publish(ctx context.Context, op *OpContext) error
	NewVersion(ctx context.Context, op *OpContext) error
	DeleteDraft(ctx context.Context, op *OpContext) error
	ImportFiles(ctx context.Context, op *OpContext) error
}

// BaseComponent provides no-op defaults for every lifecycle hook.
type BaseComponent struct{}

func (BaseComponent) Create(context.Context, *OpContext) error      { return nil }
func (BaseComponent) UpdateDraft(context.Context, *OpContext) error { return nil }
func (BaseComponent) Edit(context.Context, *OpContext) error        { return nil }
func (BaseComponent) Publish(context.Context, *OpContext) error     { return nil }
func (BaseComponent) NewVersion(context.Context, *OpContext) error  { return nil }
func (BaseComponent) DeleteDraft(context.Context, *OpContext) error { return nil }
func (BaseComponent) ImportFiles(context.Context, *OpContext) error { return nil }

var _ LifecycleComponent = BaseComponent{}

type hookFunc func(c LifecycleComponent, ctx context.Context, op *OpContext) error

func runHooks(ctx context.Context, components []LifecycleComponent, op *OpContext, hook hookFunc) error {
	for _, c := range components {
		if err := hook(c, ctx, op); err != nil {
			return err
		}
	}
	return nil
}
