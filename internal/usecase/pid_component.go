package usecase

import (
	"context"
	"fmt"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
)

// PIDComponent manages persistent identifiers across the draft/record
// lifecycle: new on create, registered on publish, deleted when a
// never-published draft is discarded.
type PIDComponent struct {
	BaseComponent
	pids port.PIDProvider
}

// NewPIDComponent wires the identifier collaborator into the pipeline.
func NewPIDComponent(pids port.PIDProvider) *PIDComponent {
	return &PIDComponent{pids: pids}
}

func (c *PIDComponent) Create(ctx context.Context, op *OpContext) error {
	return c.mint(ctx, op)
}

func (c *PIDComponent) NewVersion(ctx context.Context, op *OpContext) error {
	return c.mint(ctx, op)
}

// Publish registers the parent's identifier first, persisting the parent,
// then registers the entity's own identifier.
func (c *PIDComponent) Publish(ctx context.Context, op *OpContext) error {
	parent := op.Draft.Parent
	if parent != nil && parent.PIDStatus != domain.PIDStatusRegistered {
		if err := c.pids.Register(ctx, parent.PID); err != nil {
			return fmt.Errorf("register parent pid: %w", err)
		}
		expected := parent.Revision
		parent.PIDStatus = domain.PIDStatusRegistered
		parent.Revision++
		op.Record.Parent = parent
		op.UOW.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
			return repos.Parents.Update(ctx, *parent, expected)
		})
	}

	if op.Record.PIDStatus != domain.PIDStatusRegistered {
		if err := c.pids.Register(ctx, op.Record.PID); err != nil {
			return fmt.Errorf("register record pid: %w", err)
		}
		op.Record.PIDStatus = domain.PIDStatusRegistered
	}
	return nil
}

// DeleteDraft removes the draft's identifier on a force delete and, when the
// discarded draft was the parent's first version, the parent's identifier as
// well since no other version exists to keep it alive.
func (c *PIDComponent) DeleteDraft(ctx context.Context, op *OpContext) error {
	if !op.Force {
		return nil
	}
	// A soft-deleted draft only exists because a publish happened, so its
	// identifier lives on in the published record sharing it.
	if op.Draft.IsDeleted || op.Draft.PIDStatus == domain.PIDStatusRegistered {
		return nil
	}

	if op.Draft.PID != "" {
		if err := c.pids.Delete(ctx, op.Draft.PID); err != nil {
			return fmt.Errorf("delete draft pid: %w", err)
		}
		op.Draft.PIDStatus = domain.PIDStatusDeleted
	}

	// Sibling indices are never renumbered, so index 1 identifies the first
	// version of the lineage.
	if op.Draft.Index != nil && *op.Draft.Index == 1 && op.Draft.Parent != nil {
		if err := c.pids.Delete(ctx, op.Draft.Parent.PID); err != nil {
			return fmt.Errorf("delete parent pid: %w", err)
		}
		op.Draft.Parent.PIDStatus = domain.PIDStatusDeleted
	}

	return nil
}

func (c *PIDComponent) mint(ctx context.Context, op *OpContext) error {
	pid, err := c.pids.Mint(ctx, op.Draft.ID, op.Draft.Data)
	if err != nil {
		return fmt.Errorf("mint draft pid: %w", err)
	}
	op.Draft.PID = pid
	op.Draft.PIDStatus = domain.PIDStatusNew
	return nil
}

var _ LifecycleComponent = (*PIDComponent)(nil)
