package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/repository"
)

func draftRow(draft domain.Draft) *pgxmock.Rows {
	data, files, media, _ := marshalRecordPayloads(draft.Data, draft.Files, draft.MediaFiles)
	return pgxmock.NewRows(draftColumns).AddRow(
		draft.ID,
		draft.ParentID,
		draft.Index,
		data,
		draft.ForkVersionID,
		draft.PID,
		string(draft.PIDStatus),
		draft.ExpiresAt,
		draft.IsDeleted,
		draft.Revision,
		files,
		media,
		draft.CreatedAt,
		draft.UpdatedAt,
	)
}

func TestDraftRepository_GetFiltersDeleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDraftRepository(mock)

	now := time.Now().UTC()
	index := 1
	draft := domain.Draft{
		ID:        uuid.New(),
		ParentID:  uuid.New(),
		Index:     &index,
		Data:      map[string]any{"metadata": map[string]any{"title": "Sample"}},
		PID:       "pid-0001",
		PIDStatus: domain.PIDStatusNew,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Identifiers in WHERE clauses reach the driver as strings through the
	// uuid Valuer.
	mock.ExpectQuery(`SELECT .*FROM registry\.drafts`).
		WithArgs(draft.ID.String(), false).
		WillReturnRows(draftRow(draft))

	got, err := repo.Get(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.ID != draft.ID || got.Revision != 1 {
		t.Fatalf("unexpected draft: %+v", got)
	}
	meta, ok := got.Data["metadata"].(map[string]any)
	if !ok || meta["title"] != "Sample" {
		t.Fatalf("payload not round-tripped: %v", got.Data)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDraftRepository_UpdateRevisionGuard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDraftRepository(mock)

	now := time.Now().UTC()
	draft := domain.Draft{
		ID:        uuid.New(),
		ParentID:  uuid.New(),
		Data:      map[string]any{},
		PID:       "pid-0002",
		PIDStatus: domain.PIDStatusNew,
		Revision:  3,
		UpdatedAt: now,
	}

	data, files, media, err := marshalRecordPayloads(draft.Data, draft.Files, draft.MediaFiles)
	if err != nil {
		t.Fatalf("marshal payloads: %v", err)
	}

	mock.ExpectExec(`UPDATE registry\.drafts SET`).
		WithArgs(nil, data, nil, draft.PID, string(draft.PIDStatus), nil, false, files, media, draft.UpdatedAt, draft.ID.String(), int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Update(context.Background(), draft, 2); !errors.Is(err, repository.ErrRevisionMismatch) {
		t.Fatalf("expected revision mismatch, got %v", err)
	}

	mock.ExpectExec(`UPDATE registry\.drafts SET`).
		WithArgs(nil, data, nil, draft.PID, string(draft.PIDStatus), nil, false, files, media, draft.UpdatedAt, draft.ID.String(), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Update(context.Background(), draft, 3); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDraftRepository_SoftDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDraftRepository(mock)
	id := uuid.New()

	mock.ExpectExec(`UPDATE registry\.drafts SET is_deleted`).
		WithArgs(true, pgxmock.AnyArg(), id.String(), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SoftDelete(context.Background(), id, 1); err != nil {
		t.Fatalf("SoftDelete returned error: %v", err)
	}

	mock.ExpectExec(`UPDATE registry\.drafts SET is_deleted`).
		WithArgs(true, pgxmock.AnyArg(), id.String(), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SoftDelete(context.Background(), id, 7); !errors.Is(err, repository.ErrRevisionMismatch) {
		t.Fatalf("expected revision mismatch, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDraftRepository_HardDeleteNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDraftRepository(mock)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM registry\.drafts`).
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.HardDelete(context.Background(), id); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDraftRepository_ListCleanupCandidates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDraftRepository(mock)

	now := time.Now().UTC()
	expiresAt := now.Add(-time.Hour)
	stale := domain.Draft{
		ID:        uuid.New(),
		ParentID:  uuid.New(),
		Data:      map[string]any{},
		PID:       "pid-0003",
		PIDStatus: domain.PIDStatusNew,
		ExpiresAt: &expiresAt,
		Revision:  1,
		CreatedAt: now.Add(-48 * time.Hour),
		UpdatedAt: now.Add(-48 * time.Hour),
	}

	deletedBefore := now.Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT .*FROM registry\.drafts`).
		WithArgs(true, deletedBefore, false, now).
		WillReturnRows(draftRow(stale))

	candidates, err := repo.ListCleanupCandidates(context.Background(), deletedBefore, now)
	if err != nil {
		t.Fatalf("ListCleanupCandidates returned error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != stale.ID {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
