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

// ParentRepository implements port.ParentRepository for PostgreSQL.
type ParentRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewParentRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewParentRepository(exec pgExecutor) *ParentRepository {
	repo := &ParentRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *ParentRepository) WithTx(tx pgx.Tx) *ParentRepository {
	if tx == nil {
		return r
	}
	return &ParentRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a parent row.
func (r *ParentRepository) Create(ctx context.Context, parent domain.Parent) error {
	sql, args, err := r.builder.Insert("registry.parents").
		Columns(
			"id",
			"pid",
			"pid_status",
			"revision",
			"created_at",
			"updated_at",
		).
		Values(
			parent.ID,
			parent.PID,
			string(parent.PIDStatus),
			parent.Revision,
			parent.CreatedAt,
			parent.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert parent sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return translateError(err, "insert parent")
	}

	return nil
}

// Get returns a parent by identifier.
func (r *ParentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Parent, error) {
	sql, args, err := r.builder.
		Select("id", "pid", "pid_status", "revision", "created_at", "updated_at").
		From("registry.parents").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select parent sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, sql, args...)

	var parent domain.Parent
	var status string
	if err := row.Scan(
		&parent.ID,
		&parent.PID,
		&status,
		&parent.Revision,
		&parent.CreatedAt,
		&parent.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan parent: %w", err)
	}
	parent.PIDStatus = domain.PIDStatus(status)

	return &parent, nil
}

// Update overwrites a parent row, guarding on the expected revision.
func (r *ParentRepository) Update(ctx context.Context, parent domain.Parent, expectedRevision int64) error {
	sql, args, err := r.builder.Update("registry.parents").
		Set("pid", parent.PID).
		Set("pid_status", string(parent.PIDStatus)).
		Set("revision", squirrel.Expr("revision + 1")).
		Set("updated_at", parent.UpdatedAt).
		Where(squirrel.Eq{"id": parent.ID, "revision": expectedRevision}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update parent sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update parent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrRevisionMismatch
	}

	return nil
}

// Delete removes a parent row together with its version state. A parent still
// referenced by records or drafts stays in place; the existence check keeps
// the surrounding transaction clean instead of tripping the foreign keys.
func (r *ParentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const childCheck = `
        SELECT EXISTS (SELECT 1 FROM registry.records WHERE parent_id = $1)
            OR EXISTS (SELECT 1 FROM registry.drafts WHERE parent_id = $1)
    `
	var hasChildren bool
	if err := r.exec.QueryRow(ctx, childCheck, id).Scan(&hasChildren); err != nil {
		return fmt.Errorf("check parent children: %w", err)
	}
	if hasChildren {
		return nil
	}

	if _, err := r.exec.Exec(ctx, "DELETE FROM registry.version_states WHERE parent_id = $1", id); err != nil {
		return fmt.Errorf("delete version state: %w", err)
	}

	sql, args, err := r.builder.Delete("registry.parents").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete parent sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete parent: %w", err)
	}

	return nil
}

// Count returns the number of parent rows.
func (r *ParentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.exec.QueryRow(ctx, "SELECT COUNT(*) FROM registry.parents").Scan(&count); err != nil {
		return 0, fmt.Errorf("count parents: %w", err)
	}
	return count, nil
}

var _ port.ParentRepository = (*ParentRepository)(nil)
