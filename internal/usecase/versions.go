package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
)

// VersionsManager computes derived version facts for one parent and mutates
// its VersionState row. The state row is materialized lazily on first access
// and cached on the manager so one request does not re-read it.
type VersionsManager struct {
	repos    port.RepositorySet
	parentID uuid.UUID
	cached   *domain.VersionState
}

// NewVersionsManager binds a manager to one parent.
func NewVersionsManager(repos port.RepositorySet, parentID uuid.UUID) *VersionsManager {
	return &VersionsManager{repos: repos, parentID: parentID}
}

// State returns the parent's version state, creating the row on first access.
func (m *VersionsManager) State(ctx context.Context) (*domain.VersionState, error) {
	if m.cached != nil {
		return m.cached, nil
	}
	state, err := m.repos.VersionStates.GetOrCreate(ctx, m.parentID)
	if err != nil {
		return nil, fmt.Errorf("get or create version state: %w", err)
	}
	m.cached = state
	return state, nil
}

// Invalidate drops the cached state so the next access re-reads it.
func (m *VersionsManager) Invalidate() {
	m.cached = nil
}

// NextIndex returns the next free positional index among the parent's records
// and drafts: max(index) + 1, or 1 when no sibling exists.
func (m *VersionsManager) NextIndex(ctx context.Context) (int, error) {
	recordMax, err := m.repos.Records.MaxIndexForParent(ctx, m.parentID)
	if err != nil {
		return 0, fmt.Errorf("max record index: %w", err)
	}
	draftMax, err := m.repos.Drafts.MaxIndexForParent(ctx, m.parentID)
	if err != nil {
		return 0, fmt.Errorf("max draft index: %w", err)
	}
	max := recordMax
	if draftMax > max {
		max = draftMax
	}
	return max + 1, nil
}

// SetNext marks the draft as the parent's pending next version and assigns
// its positional index. Called exactly once, at creation of a draft that
// represents an unpublished version.
func (m *VersionsManager) SetNext(ctx context.Context, draft *domain.Draft) error {
	state, err := m.State(ctx)
	if err != nil {
		return err
	}
	index, err := m.NextIndex(ctx)
	if err != nil {
		return err
	}
	draft.Index = &index
	id := draft.ID
	state.NextDraftID = &id
	if err := m.repos.VersionStates.Save(ctx, *state); err != nil {
		return fmt.Errorf("save version state: %w", err)
	}
	return nil
}

// SetLatest points the parent at the freshly published record and clears the
// pending next-draft pointer. Called exactly once, when an entity is
// published.
func (m *VersionsManager) SetLatest(ctx context.Context, record *domain.Record) error {
	state, err := m.State(ctx)
	if err != nil {
		return err
	}
	id := record.ID
	index := record.Index
	state.LatestID = &id
	state.LatestIndex = &index
	state.NextDraftID = nil
	if err := m.repos.VersionStates.Save(ctx, *state); err != nil {
		return fmt.Errorf("save version state: %w", err)
	}
	return nil
}

// ClearNext removes the next-draft pointer ahead of a hard delete so the
// parent is left with no dangling reference, and clears the draft's own
// index.
func (m *VersionsManager) ClearNext(ctx context.Context, draft *domain.Draft) error {
	state, err := m.State(ctx)
	if err != nil {
		return err
	}
	if state.NextDraftID != nil && *state.NextDraftID == draft.ID {
		state.NextDraftID = nil
		if err := m.repos.VersionStates.Save(ctx, *state); err != nil {
			return fmt.Errorf("save version state: %w", err)
		}
	}
	draft.Index = nil
	return nil
}

// IsLatest reports whether id is the parent's current published version.
func (m *VersionsManager) IsLatest(ctx context.Context, id uuid.UUID) (bool, error) {
	state, err := m.State(ctx)
	if err != nil {
		return false, err
	}
	return state.LatestID != nil && *state.LatestID == id, nil
}

// IsLatestDraft reports whether id is the draft a caller should edit next:
// the pending next-version draft when one exists, the latest published
// version otherwise.
func (m *VersionsManager) IsLatestDraft(ctx context.Context, id uuid.UUID) (bool, error) {
	state, err := m.State(ctx)
	if err != nil {
		return false, err
	}
	if state.NextDraftID != nil {
		return *state.NextDraftID == id, nil
	}
	return state.LatestID != nil && *state.LatestID == id, nil
}
