package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
	"github.com/arklim/record-registry/internal/repository"
)

// VersionStateRepository implements port.VersionStateRepository for PostgreSQL.
type VersionStateRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewVersionStateRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewVersionStateRepository(exec pgExecutor) *VersionStateRepository {
	repo := &VersionStateRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *VersionStateRepository) WithTx(tx pgx.Tx) *VersionStateRepository {
	if tx == nil {
		return r
	}
	return &VersionStateRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// GetOrCreate materializes the pointer row for a parent on first access.
// Concurrent callers converge on the same row through the conflict clause.
func (r *VersionStateRepository) GetOrCreate(ctx context.Context, parentID uuid.UUID) (*domain.VersionState, error) {
	const stmt = `
        INSERT INTO registry.version_states (parent_id, latest_id, latest_index, next_draft_id)
        VALUES ($1, NULL, NULL, NULL)
        ON CONFLICT (parent_id) DO UPDATE SET parent_id = EXCLUDED.parent_id
        RETURNING parent_id, latest_id, latest_index, next_draft_id
    `

	state, err := scanVersionState(r.exec.QueryRow(ctx, stmt, parentID))
	if err != nil {
		return nil, fmt.Errorf("upsert version state: %w", err)
	}
	return state, nil
}

// Get returns the pointer row for a parent.
func (r *VersionStateRepository) Get(ctx context.Context, parentID uuid.UUID) (*domain.VersionState, error) {
	sql, args, err := r.builder.
		Select("parent_id", "latest_id", "latest_index", "next_draft_id").
		From("registry.version_states").
		Where(squirrel.Eq{"parent_id": parentID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select version state sql: %w", err)
	}

	state, err := scanVersionState(r.exec.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan version state: %w", err)
	}
	return state, nil
}

// Save upserts the pointer row.
func (r *VersionStateRepository) Save(ctx context.Context, state domain.VersionState) error {
	const stmt = `
        INSERT INTO registry.version_states (parent_id, latest_id, latest_index, next_draft_id)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (parent_id) DO UPDATE
            SET latest_id = EXCLUDED.latest_id,
                latest_index = EXCLUDED.latest_index,
                next_draft_id = EXCLUDED.next_draft_id
    `

	if _, err := r.exec.Exec(ctx, stmt,
		state.ParentID,
		optionalUUID(state.LatestID),
		optionalInt(state.LatestIndex),
		optionalUUID(state.NextDraftID),
	); err != nil {
		return fmt.Errorf("save version state: %w", err)
	}

	return nil
}

// Count returns the number of pointer rows.
func (r *VersionStateRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.exec.QueryRow(ctx, "SELECT COUNT(*) FROM registry.version_states").Scan(&count); err != nil {
		return 0, fmt.Errorf("count version states: %w", err)
	}
	return count, nil
}

func scanVersionState(row pgx.Row) (*domain.VersionState, error) {
	var (
		state       domain.VersionState
		latestID    *uuid.UUID
		latestIndex *int
		nextDraftID *uuid.UUID
	)
	if err := row.Scan(&state.ParentID, &latestID, &latestIndex, &nextDraftID); err != nil {
		return nil, err
	}
	state.LatestID = latestID
	state.LatestIndex = latestIndex
	state.NextDraftID = nextDraftID
	return &state, nil
}

func optionalUUID(value *uuid.UUID) any {
	if value == nil {
		return nil
	}
	return *value
}

var _ port.VersionStateRepository = (*VersionStateRepository)(nil)
