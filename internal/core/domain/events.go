package domain

import (
	"time"

	"github.com/google/uuid"
)

// IndexOp enumerates the operations the search indexer consumes.
type IndexOp string

const (
	IndexOpIndex  IndexOp = "index"
	IndexOpDelete IndexOp = "delete"
	IndexOpBulk   IndexOp = "bulk_index"
)

// IndexEvent is the envelope handed to the search indexer. Indexing is
// fire-and-forget relative to the caller; Refresh asks the search engine to
// make the change visible before the caller re-queries.
type IndexEvent struct {
	EventID    string         `json:"event_id"`
	Op         IndexOp        `json:"op"`
	EntityKind EntityKind     `json:"entity_kind"`
	EntityID   uuid.UUID      `json:"entity_id"`
	EntityIDs  []uuid.UUID    `json:"entity_ids,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Refresh    bool           `json:"refresh,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
