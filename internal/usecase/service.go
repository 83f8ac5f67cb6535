package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
	"github.com/arklim/record-registry/internal/repository"
)

// Actions checked against the permission collaborator.
const (
	ActionCreate     = "create"
	ActionRead       = "read"
	ActionUpdate     = "update"
	ActionPublish    = "publish"
	ActionNewVersion = "new_version"
	ActionDelete     = "delete_draft"
)

// RecordServiceOptions configures optional behaviours of the service.
type RecordServiceOptions struct {
	// DraftTTL is how long a never-published draft may sit untouched before
	// cleanup may remove it.
	DraftTTL time.Duration
	// GCMargin pads the cleanup grace period to let the search engine apply
	// its own pending deletes first.
	GCMargin time.Duration
}

// RecordService orchestrates the draft/record versioning engine: entity
// resolution, permission checks, the lifecycle-component pipeline, and the
// unit of work that batches persistence and indexing side effects.
type RecordService struct {
	repos      port.RepositorySet
	tm         port.TransactionManager
	indexer    port.Indexer
	perms      port.PermissionChecker
	components []LifecycleComponent
	draftTTL   time.Duration
	gcMargin   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewRecordService constructs the versioning service.
func NewRecordService(
	repos port.RepositorySet,
	tm port.TransactionManager,
	indexer port.Indexer,
	perms port.PermissionChecker,
	components []LifecycleComponent,
	opts RecordServiceOptions,
) *RecordService {
	svc := &RecordService{
		repos:      repos,
		tm:         tm,
		indexer:    indexer,
		perms:      perms,
		components: components,
		draftTTL:   opts.DraftTTL,
		gcMargin:   opts.GCMargin,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	if svc.draftTTL <= 0 {
		svc.draftTTL = 30 * 24 * time.Hour
	}
	if svc.gcMargin <= 0 {
		svc.gcMargin = 5 * time.Minute
	}
	return svc
}

// WithLogger attaches a structured logger to the service.
func (s *RecordService) WithLogger(logger *zap.Logger) *RecordService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock, primarily for deterministic testing.
func (s *RecordService) WithNow(now func() time.Time) *RecordService {
	if now != nil {
		s.now = now
	}
	return s
}

// stateCacheInvalidator is implemented by version-state repositories that
// layer an external cache over the persistent rows. Pointer moves commit
// through transaction-bound repositories that bypass such a decorator, so the
// service drops the cached entry itself once the transaction is through.
type stateCacheInvalidator interface {
	InvalidateState(ctx context.Context, parentID uuid.UUID) error
}

func (s *RecordService) invalidateState(ctx context.Context, parentID uuid.UUID) {
	cache, ok := s.repos.VersionStates.(stateCacheInvalidator)
	if !ok {
		return
	}
	if err := cache.InvalidateState(ctx, parentID); err != nil {
		s.logger.Warn("invalidate version state cache failed",
			zap.String("parent_id", parentID.String()),
			zap.Error(err),
		)
	}
}

// Create validates the payload (reporting, not raising), mints a draft with a
// freshly persisted parent, and marks it as the parent's next draft.
func (s *RecordService) Create(ctx context.Context, identity domain.Identity, data map[string]any) (*domain.Draft, domain.ValidationReport, error) {
	var report domain.ValidationReport
	if !s.perms.Allows(ctx, identity, ActionCreate, nil) {
		return nil, report, fmt.Errorf("create draft: %w", ErrPermissionDenied)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.draftTTL)
	draft := &domain.Draft{
		ID:        uuid.New(),
		Data:      cloneData(data),
		PIDStatus: domain.PIDStatusNew,
		ExpiresAt: &expiresAt,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	uow := NewUnitOfWork(s.tm, s.indexer, s.logger)
	op := &OpContext{Identity: identity, Data: data, Draft: draft, Report: &report, UOW: uow}
	if err := runHooks(ctx, s.components, op, LifecycleComponent.Create); err != nil {
		return nil, report, err
	}

	uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
		vm := NewVersionsManager(repos, draft.ParentID)
		if err := vm.SetNext(ctx, draft); err != nil {
			return err
		}
		return repos.Drafts.Create(ctx, *draft)
	})
	if err := uow.Commit(ctx); err != nil {
		return nil, report, err
	}
	s.invalidateState(ctx, draft.ParentID)

	state, err := s.manager(draft.ParentID).State(ctx)
	if err != nil {
		return nil, report, err
	}
	s.indexDraft(ctx, draft, state, false)

	s.logger.Info("draft created",
		zap.String("draft_id", draft.ID.String()),
		zap.String("parent_id", draft.ParentID.String()),
	)
	return draft, report, nil
}

// UpdateDraft saves the payload onto an existing draft with soft validation.
func (s *RecordService) UpdateDraft(ctx context.Context, identity domain.Identity, id uuid.UUID, data map[string]any, expectedRevision *int64) (*domain.Draft, domain.ValidationReport, error) {
	var report domain.ValidationReport

	draft, err := s.repos.Drafts.Get(ctx, id)
	if err != nil {
		return nil, report, fmt.Errorf("resolve draft %s: %w", id, err)
	}
	if !s.perms.Allows(ctx, identity, ActionUpdate, resource(draft.ParentID)) {
		return nil, report, fmt.Errorf("update draft: %w", ErrPermissionDenied)
	}
	if err := checkRevision(draft.Revision, expectedRevision); err != nil {
		return nil, report, err
	}
	if err := s.attachDraftParent(ctx, draft); err != nil {
		return nil, report, err
	}

	uow := NewUnitOfWork(s.tm, s.indexer, s.logger)
	op := &OpContext{Identity: identity, Data: data, Draft: draft, Report: &report, UOW: uow}
	if err := runHooks(ctx, s.components, op, LifecycleComponent.UpdateDraft); err != nil {
		return nil, report, err
	}

	expected := draft.Revision
	draft.UpdatedAt = s.now().UTC()
	uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
		return repos.Drafts.Update(ctx, *draft, expected)
	})

	state, err := s.manager(draft.ParentID).State(ctx)
	if err != nil {
		return nil, report, err
	}
	draft.Revision = expected + 1
	uow.RegisterIndex(draft, DumpDraft(draft, state), false)

	if err := uow.Commit(ctx); err != nil {
		return nil, report, err
	}
	return draft, report, nil
}

// Edit resolves the editable draft for a published record: the active draft
// when one exists, a resurrected soft-deleted draft when one is left over
// from a publish, or a fresh draft forked from the record. The fork carries
// the record's revision so a later publish can detect staleness.
func (s *RecordService) Edit(ctx context.Context, identity domain.Identity, id uuid.UUID) (*domain.Draft, error) {
	if active, err := s.repos.Drafts.Get(ctx, id); err == nil {
		if !s.perms.Allows(ctx, identity, ActionUpdate, resource(active.ParentID)) {
			return nil, fmt.Errorf("edit draft: %w", ErrPermissionDenied)
		}
		if err := s.attachDraftParent(ctx, active); err != nil {
			return nil, err
		}
		return active, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("resolve draft %s: %w", id, err)
	}

	record, err := s.repos.Records.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve record %s: %w", id, err)
	}
	if !s.perms.Allows(ctx, identity, ActionUpdate, resource(record.ParentID)) {
		return nil, fmt.Errorf("edit record: %w", ErrPermissionDenied)
	}
	parent, err := s.repos.Parents.Get(ctx, record.ParentID)
	if err != nil {
		return nil, fmt.Errorf("resolve parent: %w", err)
	}
	record.Parent = parent

	now := s.now().UTC()
	fork := record.Revision
	index := record.Index

	soft, err := s.repos.Drafts.GetIncludingDeleted(ctx, id)
	switch {
	case err == nil && soft.IsDeleted:
		// Resurrect the soft-deleted draft left over from publish; its
		// revision counter survives for concurrency control. The row's
		// identifier state went stale at publish, so it is refreshed from
		// the record, and a draft with a record sibling never expires.
		soft.IsDeleted = false
		soft.ParentID = record.ParentID
		soft.Parent = parent
		soft.ForkVersionID = &fork
		soft.Index = &index
		soft.Data = cloneData(record.Data)
		soft.PID = record.PID
		soft.PIDStatus = record.PIDStatus
		soft.ExpiresAt = nil
		soft.UpdatedAt = now

		uow := NewUnitOfWork(s.tm, s.indexer, s.logger)
		op := &OpContext{Identity: identity, Draft: soft, Record: record, UOW: uow}
		if err := runHooks(ctx, s.components, op, LifecycleComponent.Edit); err != nil {
			return nil, err
		}

		expected := soft.Revision
		uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
			return repos.Drafts.Update(ctx, *soft, expected)
		})
		soft.Revision = expected + 1
		state, err := s.manager(soft.ParentID).State(ctx)
		if err != nil {
			return nil, err
		}
		uow.RegisterIndex(soft, DumpDraft(soft, state), false)
		if err := uow.Commit(ctx); err != nil {
			return nil, err
		}
		return soft, nil

	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("resolve deleted draft %s: %w", id, err)
	}

	// Forked edit drafts carry no expiry: their record sibling keeps the
	// lineage alive, and only the soft-delete path may collect them.
	draft := &domain.Draft{
		ID:            record.ID,
		ParentID:      record.ParentID,
		Parent:        parent,
		Index:         &index,
		Data:          cloneData(record.Data),
		ForkVersionID: &fork,
		PID:           record.PID,
		PIDStatus:     record.PIDStatus,
		Revision:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	uow := NewUnitOfWork(s.tm, s.indexer, s.logger)
	op := &OpContext{Identity: identity, Draft: draft, Record: record, UOW: uow}
	if err := runHooks(ctx, s.components, op, LifecycleComponent.Edit); err != nil {
		return nil, err
	}

	// A concurrent edit may have created the draft already; the uniqueness
	// violation surfaces to the caller, who retries by re-reading.
	uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
		return repos.Drafts.Create(ctx, *draft)
	})
	state, err := s.manager(draft.ParentID).State(ctx)
	if err != nil {
		return nil, err
	}
	uow.RegisterIndex(draft, DumpDraft(draft, state), false)
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return draft, nil
}

// Publish turns a draft into its record, either creating the record and
// marking it latest, or overwriting the payload of an already-published
// record in place. Publishing never produces an invalid record: strict
// validation and file-completeness checks abort before anything persists.
func (s *RecordService) Publish(ctx context.Context, identity domain.Identity, id uuid.UUID, expectedRevision *int64) (*domain.Record, error) {
	draft, err := s.repos.Drafts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve draft %s: %w", id, err)
	}
	if !s.perms.Allows(ctx, identity, ActionPublish, resource(draft.ParentID)) {
		return nil, fmt.Errorf("publish draft: %w", ErrPermissionDenied)
	}
	if err := checkRevision(draft.Revision, expectedRevision); err != nil {
		return nil, err
	}
	if err := s.attachDraftParent(ctx, draft); err != nil {
		return nil, err
	}

	existing, err := s.repos.Records.Get(ctx, id)
	republish := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("resolve record %s: %w", id, err)
	}

	now := s.now().UTC()
	var record *domain.Record
	if republish {
		record = existing
		record.Parent = draft.Parent
		record.Data = cloneData(draft.Data)
		record.UpdatedAt = now
	} else {
		if draft.Index == nil {
			return nil, fmt.Errorf("draft %s has no version index", id)
		}
		record = &domain.Record{
			ID:        draft.ID,
			ParentID:  draft.ParentID,
			Parent:    draft.Parent,
			Index:     *draft.Index,
			Data:      cloneData(draft.Data),
			PID:       draft.PID,
			PIDStatus: draft.PIDStatus,
			Revision:  1,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	vm := s.manager(draft.ParentID)
	state, err := vm.State(ctx)
	if err != nil {
		return nil, err
	}
	var previousLatest *uuid.UUID
	if state.LatestID != nil {
		prev := *state.LatestID
		previousLatest = &prev
	}

	uow := NewUnitOfWork(s.tm, s.indexer, s.logger)
	op := &OpContext{Identity: identity, Draft: draft, Record: record, UOW: uow, FirstPublish: !republish}
	if err := runHooks(ctx, s.components, op, LifecycleComponent.Publish); err != nil {
		return nil, err
	}

	draftRevision := draft.Revision
	if republish {
		expected := record.Revision
		uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
			return repos.Records.Update(ctx, *record, expected)
		})
		record.Revision = expected + 1
	} else {
		uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
			if err := repos.Records.Create(ctx, *record); err != nil {
				return err
			}
			return NewVersionsManager(repos, record.ParentID).SetLatest(ctx, record)
		})
	}
	// The draft is soft-deleted, not removed: the record now owns the
	// identifier and the draft row preserves the revision counter.
	uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
		return repos.Drafts.SoftDelete(ctx, draft.ID, draftRevision)
	})

	indexed := *state
	if !republish {
		latestID := record.ID
		latestIndex := record.Index
		indexed.LatestID = &latestID
		indexed.LatestIndex = &latestIndex
		indexed.NextDraftID = nil
	}
	uow.RegisterIndex(record, DumpRecord(record, &indexed), false)
	uow.RegisterIndexDelete(draft, false)

	// Publishing an edit of an older version must not silently change which
	// version search reports as latest; the latest pointer's target is
	// re-indexed separately.
	if previousLatest != nil && *previousLatest != record.ID {
		uow.RegisterBulkIndex(domain.KindRecord, []uuid.UUID{*previousLatest})
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	vm.Invalidate()
	s.invalidateState(ctx, draft.ParentID)

	s.logger.Info("draft published",
		zap.String("record_id", record.ID.String()),
		zap.Int("index", record.Index),
		zap.Bool("republish", republish),
	)
	return record, nil
}

// NewVersion creates the draft for the next version of a published record.
// Idempotent: when the parent already has a pending next draft, that draft is
// returned instead of creating a second one, which also absorbs concurrent
// callers racing on the same record.
func (s *RecordService) NewVersion(ctx context.Context, identity domain.Identity, id uuid.UUID) (*domain.Draft, error) {
	record, err := s.repos.Records.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve record %s: %w", id, err)
	}
	if !s.perms.Allows(ctx, identity, ActionNewVersion, resource(record.ParentID)) {
		return nil, fmt.Errorf("new version: %w", ErrPermissionDenied)
	}
	parent, err := s.repos.Parents.Get(ctx, record.ParentID)
	if err != nil {
		return nil, fmt.Errorf("resolve parent: %w", err)
	}
	record.Parent = parent

	vm := s.manager(record.ParentID)
	state, err := vm.State(ctx)
	if err != nil {
		return nil, err
	}
	if state.NextDraftID != nil {
		existing, err := s.repos.Drafts.Get(ctx, *state.NextDraftID)
		if err != nil {
			return nil, fmt.Errorf("resolve next draft: %w", err)
		}
		existing.Parent = parent
		return existing, nil
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.draftTTL)
	draft := &domain.Draft{
		ID:        uuid.New(),
		ParentID:  record.ParentID,
		Parent:    parent,
		Data:      cloneData(record.Data),
		PIDStatus: domain.PIDStatusNew,
		ExpiresAt: &expiresAt,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	uow := NewUnitOfWork(s.tm, s.indexer, s.logger)
	op := &OpContext{Identity: identity, Draft: draft, Record: record, UOW: uow}
	if err := runHooks(ctx, s.components, op, LifecycleComponent.NewVersion); err != nil {
		return nil, err
	}

	uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
		txvm := NewVersionsManager(repos, draft.ParentID)
		if err := txvm.SetNext(ctx, draft); err != nil {
			return err
		}
		return repos.Drafts.Create(ctx, *draft)
	})
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	vm.Invalidate()
	s.invalidateState(ctx, draft.ParentID)

	state, err = vm.State(ctx)
	if err != nil {
		return nil, err
	}
	s.indexDraft(ctx, draft, state, false)
	return draft, nil
}

// DeleteDraft discards a draft. A draft whose record exists is soft-deleted
// so its revision counter survives; a never-published draft is hard-deleted
// after its next-draft pointer is cleared, and the parent goes with it when
// this was its last child.
func (s *RecordService) DeleteDraft(ctx context.Context, identity domain.Identity, id uuid.UUID, expectedRevision *int64) error {
	draft, err := s.repos.Drafts.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve draft %s: %w", id, err)
	}
	if !s.perms.Allows(ctx, identity, ActionDelete, resource(draft.ParentID)) {
		return fmt.Errorf("delete draft: %w", ErrPermissionDenied)
	}
	if err := checkRevision(draft.Revision, expectedRevision); err != nil {
		return err
	}
	if err := s.attachDraftParent(ctx, draft); err != nil {
		return err
	}

	record, err := s.repos.Records.Get(ctx, id)
	published := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("resolve record %s: %w", id, err)
	}

	vm := s.manager(draft.ParentID)
	state, err := vm.State(ctx)
	if err != nil {
		return err
	}

	uow := NewUnitOfWork(s.tm, s.indexer, s.logger)
	op := &OpContext{Identity: identity, Draft: draft, Record: record, UOW: uow, Force: !published}
	if err := runHooks(ctx, s.components, op, LifecycleComponent.DeleteDraft); err != nil {
		return err
	}

	if published {
		expected := draft.Revision
		uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
			return repos.Drafts.SoftDelete(ctx, draft.ID, expected)
		})
		record.Parent = draft.Parent
		uow.RegisterIndexDelete(draft, true)
		uow.RegisterIndex(record, DumpRecord(record, state), true)
	} else {
		uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
			txvm := NewVersionsManager(repos, draft.ParentID)
			if err := txvm.ClearNext(ctx, draft); err != nil {
				return err
			}
			if err := repos.Drafts.HardDelete(ctx, draft.ID); err != nil {
				return err
			}
			// No-op while sibling records or drafts remain.
			return repos.Parents.Delete(ctx, draft.ParentID)
		})
		uow.RegisterIndexDelete(draft, true)
		if state.LatestID != nil {
			uow.RegisterBulkIndex(domain.KindRecord, []uuid.UUID{*state.LatestID})
		}
	}

	if err := uow.Commit(ctx); err != nil {
		return err
	}
	vm.Invalidate()
	s.invalidateState(ctx, draft.ParentID)
	return nil
}

// CleanupDrafts hard-deletes soft-deleted drafts whose last update precedes
// now minus the grace period and the search GC margin, plus never-published
// drafts past their expiry. Idempotent; intended to run periodically.
func (s *RecordService) CleanupDrafts(ctx context.Context, grace time.Duration) (int, error) {
	now := s.now().UTC()
	deletedBefore := now.Add(-grace).Add(-s.gcMargin)

	candidates, err := s.repos.Drafts.ListCleanupCandidates(ctx, deletedBefore, now)
	if err != nil {
		return 0, fmt.Errorf("list cleanup candidates: %w", err)
	}

	removed := 0
	for i := range candidates {
		draft := candidates[i]
		if err := s.attachDraftParent(ctx, &draft); err != nil {
			s.logger.Warn("cleanup: attach parent failed",
				zap.String("draft_id", draft.ID.String()),
				zap.Error(err),
			)
			continue
		}

		uow := NewUnitOfWork(s.tm, s.indexer, s.logger)
		op := &OpContext{Draft: &draft, UOW: uow, Force: true}
		if err := runHooks(ctx, s.components, op, LifecycleComponent.DeleteDraft); err != nil {
			s.logger.Warn("cleanup: component hook failed",
				zap.String("draft_id", draft.ID.String()),
				zap.Error(err),
			)
			continue
		}

		draftCopy := draft
		uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
			txvm := NewVersionsManager(repos, draftCopy.ParentID)
			if err := txvm.ClearNext(ctx, &draftCopy); err != nil {
				return err
			}
			if err := repos.Drafts.HardDelete(ctx, draftCopy.ID); err != nil {
				return err
			}
			return repos.Parents.Delete(ctx, draftCopy.ParentID)
		})
		uow.RegisterIndexDelete(&draft, false)

		if err := uow.Commit(ctx); err != nil {
			s.logger.Warn("cleanup: delete failed",
				zap.String("draft_id", draft.ID.String()),
				zap.Error(err),
			)
			continue
		}
		s.invalidateState(ctx, draft.ParentID)
		removed++
	}

	if removed > 0 {
		s.logger.Info("draft cleanup finished", zap.Int("removed", removed))
	}
	return removed, nil
}

// ReadLatest resolves any record, draft, or parent identifier to the
// parent's current published version.
func (s *RecordService) ReadLatest(ctx context.Context, identity domain.Identity, id uuid.UUID) (*domain.Record, error) {
	parentID, err := s.resolveParentID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.perms.Allows(ctx, identity, ActionRead, resource(parentID)) {
		return nil, fmt.Errorf("read latest: %w", ErrPermissionDenied)
	}

	state, err := s.repos.VersionStates.Get(ctx, parentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoPublishedVersion
		}
		return nil, fmt.Errorf("resolve version state: %w", err)
	}
	if state.LatestID == nil {
		return nil, ErrNoPublishedVersion
	}

	record, err := s.repos.Records.Get(ctx, *state.LatestID)
	if err != nil {
		return nil, fmt.Errorf("resolve latest record: %w", err)
	}
	if err := s.attachRecordParent(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Read resolves a published record by identifier.
func (s *RecordService) Read(ctx context.Context, identity domain.Identity, id uuid.UUID) (*domain.Record, error) {
	record, err := s.repos.Records.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve record %s: %w", id, err)
	}
	if !s.perms.Allows(ctx, identity, ActionRead, resource(record.ParentID)) {
		return nil, fmt.Errorf("read record: %w", ErrPermissionDenied)
	}
	if err := s.attachRecordParent(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ReadDraft resolves an active draft by identifier. Soft-deleted drafts are
// not visible here.
func (s *RecordService) ReadDraft(ctx context.Context, identity domain.Identity, id uuid.UUID) (*domain.Draft, error) {
	draft, err := s.repos.Drafts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve draft %s: %w", id, err)
	}
	if !s.perms.Allows(ctx, identity, ActionRead, resource(draft.ParentID)) {
		return nil, fmt.Errorf("read draft: %w", ErrPermissionDenied)
	}
	if err := s.attachDraftParent(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// ImportFiles copies the latest published record's files into the draft.
func (s *RecordService) ImportFiles(ctx context.Context, identity domain.Identity, id uuid.UUID) (*domain.Draft, error) {
	draft, err := s.repos.Drafts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve draft %s: %w", id, err)
	}
	if !s.perms.Allows(ctx, identity, ActionUpdate, resource(draft.ParentID)) {
		return nil, fmt.Errorf("import files: %w", ErrPermissionDenied)
	}
	if err := s.attachDraftParent(ctx, draft); err != nil {
		return nil, err
	}

	vm := s.manager(draft.ParentID)
	state, err := vm.State(ctx)
	if err != nil {
		return nil, err
	}
	if state.LatestID == nil {
		return nil, ErrNoPublishedVersion
	}
	latest, err := s.repos.Records.Get(ctx, *state.LatestID)
	if err != nil {
		return nil, fmt.Errorf("resolve latest record: %w", err)
	}

	uow := NewUnitOfWork(s.tm, s.indexer, s.logger)
	op := &OpContext{Identity: identity, Draft: draft, LatestRecord: latest, UOW: uow}
	if err := runHooks(ctx, s.components, op, LifecycleComponent.ImportFiles); err != nil {
		return nil, err
	}

	expected := draft.Revision
	draft.UpdatedAt = s.now().UTC()
	uow.RegisterDB(func(ctx context.Context, repos port.RepositorySet) error {
		return repos.Drafts.Update(ctx, *draft, expected)
	})
	draft.Revision = expected + 1
	uow.RegisterIndex(draft, DumpDraft(draft, state), false)

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return draft, nil
}

// SearchVersions lists the published versions of one parent.
func (s *RecordService) SearchVersions(ctx context.Context, identity domain.Identity, parentID uuid.UUID) ([]domain.Record, error) {
	if !s.perms.Allows(ctx, identity, ActionRead, resource(parentID)) {
		return nil, fmt.Errorf("search versions: %w", ErrPermissionDenied)
	}
	records, err := s.repos.Records.ListByParent(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return records, nil
}

// Search lists published records.
func (s *RecordService) Search(ctx context.Context, identity domain.Identity, limit, offset int) ([]domain.Record, error) {
	if !s.perms.Allows(ctx, identity, ActionRead, nil) {
		return nil, fmt.Errorf("search: %w", ErrPermissionDenied)
	}
	records, err := s.repos.Records.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// SearchDrafts lists active drafts.
func (s *RecordService) SearchDrafts(ctx context.Context, identity domain.Identity, limit, offset int) ([]domain.Draft, error) {
	if !s.perms.Allows(ctx, identity, ActionRead, nil) {
		return nil, fmt.Errorf("search drafts: %w", ErrPermissionDenied)
	}
	drafts, err := s.repos.Drafts.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return drafts, nil
}

func (s *RecordService) manager(parentID uuid.UUID) *VersionsManager {
	return NewVersionsManager(s.repos, parentID)
}

func (s *RecordService) indexDraft(ctx context.Context, draft *domain.Draft, state *domain.VersionState, refresh bool) {
	if err := s.indexer.Index(ctx, draft, DumpDraft(draft, state), refresh); err != nil {
		s.logger.Warn("index draft failed",
			zap.String("draft_id", draft.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *RecordService) attachDraftParent(ctx context.Context, draft *domain.Draft) error {
	parent, err := s.repos.Parents.Get(ctx, draft.ParentID)
	if err != nil {
		return fmt.Errorf("resolve parent: %w", err)
	}
	draft.Parent = parent
	return nil
}

func (s *RecordService) attachRecordParent(ctx context.Context, record *domain.Record) error {
	parent, err := s.repos.Parents.Get(ctx, record.ParentID)
	if err != nil {
		return fmt.Errorf("resolve parent: %w", err)
	}
	record.Parent = parent
	return nil
}

func (s *RecordService) resolveParentID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	if record, err := s.repos.Records.Get(ctx, id); err == nil {
		return record.ParentID, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("resolve record %s: %w", id, err)
	}

	if draft, err := s.repos.Drafts.GetIncludingDeleted(ctx, id); err == nil {
		return draft.ParentID, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("resolve draft %s: %w", id, err)
	}

	if _, err := s.repos.Parents.Get(ctx, id); err == nil {
		return id, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("resolve parent %s: %w", id, err)
	}

	return uuid.Nil, fmt.Errorf("resolve %s: %w", id, repository.ErrNotFound)
}

func checkRevision(current int64, expected *int64) error {
	if expected == nil {
		return nil
	}
	if *expected != current {
		return fmt.Errorf("expected revision %d, found %d: %w", *expected, current, repository.ErrRevisionMismatch)
	}
	return nil
}

func resource(parentID uuid.UUID) map[string]any {
	return map[string]any{"parent_id": parentID.String()}
}

func cloneData(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if nested, ok := v.(map[string]any); ok {
			dst[k] = cloneData(nested)
			continue
		}
		dst[k] = v
	}
	return dst
}
