package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
)

// RecordRepository persists published records.
type RecordRepository interface {
	Create(ctx context.Context, record domain.Record) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	GetByPID(ctx context.Context, pid string) (*domain.Record, error)
	// Update overwrites the payload of an already-published record (re-publish
	// of an edit). Guards on the expected revision and bumps it on success.
	Update(ctx context.Context, record domain.Record, expectedRevision int64) error
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.Record, error)
	// MaxIndexForParent returns the highest positional index among the
	// parent's records, or 0 when none exist.
	MaxIndexForParent(ctx context.Context, parentID uuid.UUID) (int, error)
	List(ctx context.Context, limit, offset int) ([]domain.Record, error)
}
