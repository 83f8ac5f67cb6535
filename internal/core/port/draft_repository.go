package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
)

// DraftRepository persists mutable drafts, including soft-deleted rows kept
// for revision continuity.
type DraftRepository interface {
	Create(ctx context.Context, draft domain.Draft) error
	// Get resolves an active (not soft-deleted) draft.
	Get(ctx context.Context, id uuid.UUID) (*domain.Draft, error)
	// GetIncludingDeleted resolves a draft regardless of its deletion flag.
	// Edit uses it to resurrect a draft that was soft-deleted on publish.
	GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*domain.Draft, error)
	GetByPID(ctx context.Context, pid string) (*domain.Draft, error)
	Update(ctx context.Context, draft domain.Draft, expectedRevision int64) error
	// SoftDelete flags the draft as removed while keeping the row and its
	// revision counter.
	SoftDelete(ctx context.Context, id uuid.UUID, expectedRevision int64) error
	// HardDelete removes the row. Callers must clear the parent's next-draft
	// pointer first.
	HardDelete(ctx context.Context, id uuid.UUID) error
	ListByParent(ctx context.Context, parentID uuid.UUID, includeDeleted bool) ([]domain.Draft, error)
	MaxIndexForParent(ctx context.Context, parentID uuid.UUID) (int, error)
	// ListCleanupCandidates returns soft-deleted drafts last touched before
	// deletedBefore, plus never-published drafts expired before expiredBefore.
	ListCleanupCandidates(ctx context.Context, deletedBefore, expiredBefore time.Time) ([]domain.Draft, error)
	List(ctx context.Context, limit, offset int) ([]domain.Draft, error)
}
