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

func TestParentRepository_UpdateRevisionGuard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewParentRepository(mock)

	parent := domain.Parent{
		ID:        uuid.New(),
		PID:       "pid-parent",
		PIDStatus: domain.PIDStatusRegistered,
		Revision:  2,
		UpdatedAt: time.Now().UTC(),
	}

	// Identifiers in WHERE clauses reach the driver as strings through the
	// uuid Valuer.
	mock.ExpectExec(`UPDATE registry\.parents SET`).
		WithArgs(parent.PID, string(parent.PIDStatus), parent.UpdatedAt, parent.ID.String(), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Update(context.Background(), parent, 1); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	mock.ExpectExec(`UPDATE registry\.parents SET`).
		WithArgs(parent.PID, string(parent.PIDStatus), parent.UpdatedAt, parent.ID.String(), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Update(context.Background(), parent, 5); !errors.Is(err, repository.ErrRevisionMismatch) {
		t.Fatalf("expected revision mismatch, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestParentRepository_DeleteKeepsReferencedParent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewParentRepository(mock)
	id := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	if err := repo.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete must be a no-op for a referenced parent: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestParentRepository_DeleteRemovesOrphan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewParentRepository(mock)
	id := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`DELETE FROM registry\.version_states`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM registry\.parents`).
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := repo.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
