package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
)

// VersionStateRepository persists the per-parent version pointer row.
type VersionStateRepository interface {
	// GetOrCreate materializes the row on first access.
	GetOrCreate(ctx context.Context, parentID uuid.UUID) (*domain.VersionState, error)
	Get(ctx context.Context, parentID uuid.UUID) (*domain.VersionState, error)
	Save(ctx context.Context, state domain.VersionState) error
	Count(ctx context.Context) (int, error)
}
