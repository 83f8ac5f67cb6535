package domain

import (
	"time"

	"github.com/google/uuid"
)

// PIDStatus enumerates the lifecycle states of a persistent identifier.
type PIDStatus string

const (
	PIDStatusNew        PIDStatus = "new"
	PIDStatusReserved   PIDStatus = "reserved"
	PIDStatusRegistered PIDStatus = "registered"
	PIDStatusDeleted    PIDStatus = "deleted"
)

// EntityKind tags a slot identifier with the table a lookup should resolve into.
// A record and the draft it was published from share the same identifier, so
// the kind must travel alongside the id.
type EntityKind string

const (
	KindRecord EntityKind = "record"
	KindDraft  EntityKind = "draft"
	KindParent EntityKind = "parent"
)

// Parent anchors all versions of one logical item. It mirrors the persisted
// representation in the registry.parents table.
type Parent struct {
	ID        uuid.UUID
	PID       string
	PIDStatus PIDStatus
	Revision  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VersionState is the per-parent pointer row: which published version is
// current and whether a draft for the next version exists. At most one row per
// parent; materialized lazily on first access.
type VersionState struct {
	ParentID    uuid.UUID
	LatestID    *uuid.UUID
	LatestIndex *int
	NextDraftID *uuid.UUID
}

// Record is a published, version-stamped snapshot. Immutable outside publish.
type Record struct {
	ID         uuid.UUID
	ParentID   uuid.UUID
	Index      int
	Data       map[string]any
	PID        string
	PIDStatus  PIDStatus
	Revision   int64
	Files      FilesState
	MediaFiles FilesState
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Parent is hydrated by the relations component for indexing and reads.
	Parent *Parent
}

// Draft is the mutable in-progress version of an item. It shares its
// identifier with the record it publishes into.
type Draft struct {
	ID       uuid.UUID
	ParentID uuid.UUID
	// Index is nil for a draft whose position was cleared ahead of a hard
	// delete, 1-based otherwise.
	Index *int
	Data  map[string]any
	// ForkVersionID is the revision of the record this draft was forked from,
	// nil for a brand-new unpublished item.
	ForkVersionID *int64
	PID           string
	PIDStatus     PIDStatus
	ExpiresAt     *time.Time
	IsDeleted     bool
	Revision      int64
	Files         FilesState
	MediaFiles    FilesState
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Parent *Parent
}

// Identity describes the caller on whose behalf an operation runs.
type Identity struct {
	ID    string
	Roles []string
}

// IndexKind implements Indexable.
func (r *Record) IndexKind() EntityKind { return KindRecord }

// IndexID implements Indexable.
func (r *Record) IndexID() uuid.UUID { return r.ID }

func (d *Draft) IndexKind() EntityKind { return KindDraft }

func (d *Draft) IndexID() uuid.UUID { return d.ID }

// Indexable is anything the search indexer can ingest or evict.
type Indexable interface {
	IndexKind() EntityKind
	IndexID() uuid.UUID
}
