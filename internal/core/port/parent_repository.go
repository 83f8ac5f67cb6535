package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
)

// ParentRepository persists the anchor entity shared by all versions of an
// item.
type ParentRepository interface {
	Create(ctx context.Context, parent domain.Parent) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Parent, error)
	// Update guards on the expected revision and bumps it on success.
	Update(ctx context.Context, parent domain.Parent, expectedRevision int64) error
	// Delete removes the parent row. It is a no-op while any record or draft
	// still references the parent; the storage layer enforces the restriction.
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}
