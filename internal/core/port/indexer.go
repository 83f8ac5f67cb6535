package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
)

// Indexer is the search indexing collaborator. Calls are fire-and-forget:
// the engine schedules the work and the caller does not await ordering
// guarantees, except where refresh is set.
type Indexer interface {
	Index(ctx context.Context, entity domain.Indexable, payload map[string]any, refresh bool) error
	Delete(ctx context.Context, entity domain.Indexable, refresh bool) error
	BulkIndex(ctx context.Context, kind domain.EntityKind, ids []uuid.UUID) error
}
