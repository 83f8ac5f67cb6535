package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
)

func seedVersionsStore(t *testing.T) (*memStore, uuid.UUID) {
	t.Helper()
	store := newMemStore()
	parentID := uuid.New()
	store.parents[parentID] = domain.Parent{ID: parentID, PID: "pid-parent", Revision: 1}
	return store, parentID
}

func TestNextIndexSpansRecordsAndDrafts(t *testing.T) {
	store, parentID := seedVersionsStore(t)
	ctx := context.Background()
	vm := NewVersionsManager(store.set(), parentID)

	index, err := vm.NextIndex(ctx)
	if err != nil {
		t.Fatalf("next index: %v", err)
	}
	if index != 1 {
		t.Fatalf("expected 1 for an empty lineage, got %d", index)
	}

	recordID := uuid.New()
	store.records[recordID] = domain.Record{ID: recordID, ParentID: parentID, Index: 2}
	draftID := uuid.New()
	draftIndex := 3
	store.drafts[draftID] = domain.Draft{ID: draftID, ParentID: parentID, Index: &draftIndex}

	index, err = vm.NextIndex(ctx)
	if err != nil {
		t.Fatalf("next index: %v", err)
	}
	if index != 4 {
		t.Fatalf("expected 4 past record 2 and draft 3, got %d", index)
	}
}

func TestSetNextAssignsIndexAndPointer(t *testing.T) {
	store, parentID := seedVersionsStore(t)
	ctx := context.Background()
	vm := NewVersionsManager(store.set(), parentID)

	draft := &domain.Draft{ID: uuid.New(), ParentID: parentID}
	if err := vm.SetNext(ctx, draft); err != nil {
		t.Fatalf("set next: %v", err)
	}
	if draft.Index == nil || *draft.Index != 1 {
		t.Fatalf("expected index 1, got %v", draft.Index)
	}

	state := store.states[parentID]
	if state.NextDraftID == nil || *state.NextDraftID != draft.ID {
		t.Fatalf("next pointer not saved, got %v", state.NextDraftID)
	}
}

func TestSetLatestClearsNextPointer(t *testing.T) {
	store, parentID := seedVersionsStore(t)
	ctx := context.Background()
	vm := NewVersionsManager(store.set(), parentID)

	draft := &domain.Draft{ID: uuid.New(), ParentID: parentID}
	if err := vm.SetNext(ctx, draft); err != nil {
		t.Fatalf("set next: %v", err)
	}

	record := &domain.Record{ID: draft.ID, ParentID: parentID, Index: *draft.Index}
	if err := vm.SetLatest(ctx, record); err != nil {
		t.Fatalf("set latest: %v", err)
	}

	state := store.states[parentID]
	if state.LatestID == nil || *state.LatestID != record.ID {
		t.Fatalf("latest pointer not saved, got %v", state.LatestID)
	}
	if state.LatestIndex == nil || *state.LatestIndex != record.Index {
		t.Fatalf("latest index not saved, got %v", state.LatestIndex)
	}
	if state.NextDraftID != nil {
		t.Fatal("next pointer must be cleared when the draft publishes")
	}
}

func TestClearNextOnlyWhenPointing(t *testing.T) {
	store, parentID := seedVersionsStore(t)
	ctx := context.Background()
	vm := NewVersionsManager(store.set(), parentID)

	pending := &domain.Draft{ID: uuid.New(), ParentID: parentID}
	if err := vm.SetNext(ctx, pending); err != nil {
		t.Fatalf("set next: %v", err)
	}

	otherIndex := 7
	other := &domain.Draft{ID: uuid.New(), ParentID: parentID, Index: &otherIndex}
	if err := vm.ClearNext(ctx, other); err != nil {
		t.Fatalf("clear next: %v", err)
	}
	if other.Index != nil {
		t.Fatal("clear next must drop the draft's own index")
	}
	if state := store.states[parentID]; state.NextDraftID == nil || *state.NextDraftID != pending.ID {
		t.Fatal("pointer to a different draft must survive")
	}

	vm.Invalidate()
	if err := vm.ClearNext(ctx, pending); err != nil {
		t.Fatalf("clear next: %v", err)
	}
	if state := store.states[parentID]; state.NextDraftID != nil {
		t.Fatal("pointer must be cleared for the pending draft")
	}
}

func TestIsLatestDraft(t *testing.T) {
	store, parentID := seedVersionsStore(t)
	ctx := context.Background()

	latestID := uuid.New()
	latestIndex := 1
	nextID := uuid.New()
	store.states[parentID] = domain.VersionState{
		ParentID:    parentID,
		LatestID:    &latestID,
		LatestIndex: &latestIndex,
		NextDraftID: &nextID,
	}

	vm := NewVersionsManager(store.set(), parentID)
	if ok, err := vm.IsLatestDraft(ctx, nextID); err != nil || !ok {
		t.Fatalf("pending draft should win: ok=%v err=%v", ok, err)
	}
	if ok, _ := vm.IsLatestDraft(ctx, latestID); ok {
		t.Fatal("latest record loses to a pending next draft")
	}

	store.states[parentID] = domain.VersionState{ParentID: parentID, LatestID: &latestID, LatestIndex: &latestIndex}
	vm.Invalidate()
	if ok, err := vm.IsLatestDraft(ctx, latestID); err != nil || !ok {
		t.Fatalf("latest record should win without a pending draft: ok=%v err=%v", ok, err)
	}
}

func TestStateIsCachedUntilInvalidated(t *testing.T) {
	store, parentID := seedVersionsStore(t)
	ctx := context.Background()
	vm := NewVersionsManager(store.set(), parentID)

	first, err := vm.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}

	latestID := uuid.New()
	store.states[parentID] = domain.VersionState{ParentID: parentID, LatestID: &latestID}

	cached, err := vm.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if cached != first {
		t.Fatal("state must be served from the manager cache")
	}

	vm.Invalidate()
	fresh, err := vm.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if fresh.LatestID == nil || *fresh.LatestID != latestID {
		t.Fatal("invalidate must force a re-read")
	}
}
