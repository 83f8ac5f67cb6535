package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
	"github.com/arklim/record-registry/internal/repository"
)

var draftColumns = []string{
	"id",
	"parent_id",
	"version_index",
	"data",
	"fork_version_id",
	"pid",
	"pid_status",
	"expires_at",
	"is_deleted",
	"revision",
	"files",
	"media_files",
	"created_at",
	"updated_at",
}

// DraftRepository implements port.DraftRepository for PostgreSQL.
type DraftRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewDraftRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewDraftRepository(exec pgExecutor) *DraftRepository {
	repo := &DraftRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *DraftRepository) WithTx(tx pgx.Tx) *DraftRepository {
	if tx == nil {
		return r
	}
	return &DraftRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a draft row.
func (r *DraftRepository) Create(ctx context.Context, draft domain.Draft) error {
	data, files, media, err := marshalRecordPayloads(draft.Data, draft.Files, draft.MediaFiles)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Insert("registry.drafts").
		Columns(draftColumns...).
		Values(
			draft.ID,
			draft.ParentID,
			optionalInt(draft.Index),
			data,
			optionalInt64(draft.ForkVersionID),
			draft.PID,
			string(draft.PIDStatus),
			optionalTime(draft.ExpiresAt),
			draft.IsDeleted,
			draft.Revision,
			files,
			media,
			draft.CreatedAt,
			draft.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert draft sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return translateError(err, "insert draft")
	}

	return nil
}

// Get resolves an active draft. Soft-deleted rows behave as missing.
func (r *DraftRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Draft, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id, "is_deleted": false})
}

// GetIncludingDeleted resolves a draft regardless of its deletion flag.
func (r *DraftRepository) GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*domain.Draft, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByPID resolves an active draft by its persistent identifier.
func (r *DraftRepository) GetByPID(ctx context.Context, pid string) (*domain.Draft, error) {
	return r.getOne(ctx, squirrel.Eq{"pid": pid, "is_deleted": false})
}

// Update overwrites a draft row, guarding on the expected revision and
// bumping it on success.
func (r *DraftRepository) Update(ctx context.Context, draft domain.Draft, expectedRevision int64) error {
	data, files, media, err := marshalRecordPayloads(draft.Data, draft.Files, draft.MediaFiles)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Update("registry.drafts").
		Set("version_index", optionalInt(draft.Index)).
		Set("data", data).
		Set("fork_version_id", optionalInt64(draft.ForkVersionID)).
		Set("pid", draft.PID).
		Set("pid_status", string(draft.PIDStatus)).
		Set("expires_at", optionalTime(draft.ExpiresAt)).
		Set("is_deleted", draft.IsDeleted).
		Set("files", files).
		Set("media_files", media).
		Set("revision", squirrel.Expr("revision + 1")).
		Set("updated_at", draft.UpdatedAt).
		Where(squirrel.Eq{"id": draft.ID, "revision": expectedRevision}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update draft sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrRevisionMismatch
	}

	return nil
}

// SoftDelete flags the draft as removed while keeping the row, guarding on
// the expected revision.
func (r *DraftRepository) SoftDelete(ctx context.Context, id uuid.UUID, expectedRevision int64) error {
	sql, args, err := r.builder.Update("registry.drafts").
		Set("is_deleted", true).
		Set("revision", squirrel.Expr("revision + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id, "revision": expectedRevision}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete draft sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("soft delete draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrRevisionMismatch
	}

	return nil
}

// HardDelete removes the draft row.
func (r *DraftRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	sql, args, err := r.builder.Delete("registry.drafts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete draft sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListByParent returns the parent's drafts ordered by index.
func (r *DraftRepository) ListByParent(ctx context.Context, parentID uuid.UUID, includeDeleted bool) ([]domain.Draft, error) {
	builder := r.builder.
		Select(draftColumns...).
		From("registry.drafts").
		Where(squirrel.Eq{"parent_id": parentID}).
		OrderBy("version_index ASC NULLS LAST")
	if !includeDeleted {
		builder = builder.Where(squirrel.Eq{"is_deleted": false})
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list drafts by parent sql: %w", err)
	}
	return r.list(ctx, sql, args)
}

// MaxIndexForParent returns the highest version index among the parent's
// drafts, 0 when none carry one.
func (r *DraftRepository) MaxIndexForParent(ctx context.Context, parentID uuid.UUID) (int, error) {
	var max int
	stmt := `SELECT COALESCE(MAX(version_index), 0) FROM registry.drafts WHERE parent_id = $1`
	if err := r.exec.QueryRow(ctx, stmt, parentID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max draft index: %w", err)
	}
	return max, nil
}

// ListCleanupCandidates returns drafts eligible for garbage collection:
// soft-deleted rows last touched before deletedBefore, plus never-published
// rows whose expiry precedes expiredBefore. Drafts forked from a record share
// its identifier and may only be collected via the soft-delete path, so the
// expiry branch skips them.
func (r *DraftRepository) ListCleanupCandidates(ctx context.Context, deletedBefore, expiredBefore time.Time) ([]domain.Draft, error) {
	sql, args, err := r.builder.
		Select(draftColumns...).
		From("registry.drafts").
		Where(squirrel.Or{
			squirrel.And{
				squirrel.Eq{"is_deleted": true},
				squirrel.Lt{"updated_at": deletedBefore},
			},
			squirrel.And{
				squirrel.Eq{"is_deleted": false},
				squirrel.Eq{"fork_version_id": nil},
				squirrel.NotEq{"expires_at": nil},
				squirrel.Lt{"expires_at": expiredBefore},
			},
		}).
		OrderBy("updated_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cleanup candidates sql: %w", err)
	}
	return r.list(ctx, sql, args)
}

// List returns a page of active drafts ordered by creation time.
func (r *DraftRepository) List(ctx context.Context, limit, offset int) ([]domain.Draft, error) {
	builder := r.builder.
		Select(draftColumns...).
		From("registry.drafts").
		Where(squirrel.Eq{"is_deleted": false}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list drafts sql: %w", err)
	}
	return r.list(ctx, sql, args)
}

func (r *DraftRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.Draft, error) {
	sql, args, err := r.builder.
		Select(draftColumns...).
		From("registry.drafts").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select draft sql: %w", err)
	}

	draft, err := scanDraft(r.exec.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	return draft, nil
}

func (r *DraftRepository) list(ctx context.Context, sql string, args []any) ([]domain.Draft, error) {
	rows, err := r.exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	defer rows.Close()

	var drafts []domain.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		drafts = append(drafts, *draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}

	return drafts, nil
}

func scanDraft(row pgx.Row) (*domain.Draft, error) {
	var (
		draft     domain.Draft
		status    string
		index     *int
		fork      *int64
		expiresAt *time.Time
		data      []byte
		files     []byte
		media     []byte
	)
	if err := row.Scan(
		&draft.ID,
		&draft.ParentID,
		&index,
		&data,
		&fork,
		&draft.PID,
		&status,
		&expiresAt,
		&draft.IsDeleted,
		&draft.Revision,
		&files,
		&media,
		&draft.CreatedAt,
		&draft.UpdatedAt,
	); err != nil {
		return nil, err
	}
	draft.PIDStatus = domain.PIDStatus(status)
	draft.Index = index
	draft.ForkVersionID = fork
	draft.ExpiresAt = expiresAt

	if err := unmarshalRecordPayloads(data, files, media, &draft.Data, &draft.Files, &draft.MediaFiles); err != nil {
		return nil, err
	}
	return &draft, nil
}

func optionalInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func optionalInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func optionalTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

var _ port.DraftRepository = (*DraftRepository)(nil)
