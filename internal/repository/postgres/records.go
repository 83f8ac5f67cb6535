package postgres

import (
	"context"
	"encoding/json"
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

var recordColumns = []string{
	"id",
	"parent_id",
	"version_index",
	"data",
	"pid",
	"pid_status",
	"revision",
	"files",
	"media_files",
	"created_at",
	"updated_at",
}

// RecordRepository implements port.RecordRepository for PostgreSQL.
type RecordRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRecordRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewRecordRepository(exec pgExecutor) *RecordRepository {
	repo := &RecordRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *RecordRepository) WithTx(tx pgx.Tx) *RecordRepository {
	if tx == nil {
		return r
	}
	return &RecordRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a record row.
func (r *RecordRepository) Create(ctx context.Context, record domain.Record) error {
	data, files, media, err := marshalRecordPayloads(record.Data, record.Files, record.MediaFiles)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Insert("registry.records").
		Columns(recordColumns...).
		Values(
			record.ID,
			record.ParentID,
			record.Index,
			data,
			record.PID,
			string(record.PIDStatus),
			record.Revision,
			files,
			media,
			record.CreatedAt,
			record.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert record sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return translateError(err, "insert record")
	}

	return nil
}

// Get returns a record by identifier.
func (r *RecordRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByPID returns a record by its persistent identifier.
func (r *RecordRepository) GetByPID(ctx context.Context, pid string) (*domain.Record, error) {
	return r.getOne(ctx, squirrel.Eq{"pid": pid})
}

// Update overwrites the payload of a record, guarding on the expected
// revision and bumping it on success.
func (r *RecordRepository) Update(ctx context.Context, record domain.Record, expectedRevision int64) error {
	data, files, media, err := marshalRecordPayloads(record.Data, record.Files, record.MediaFiles)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Update("registry.records").
		Set("data", data).
		Set("pid", record.PID).
		Set("pid_status", string(record.PIDStatus)).
		Set("files", files).
		Set("media_files", media).
		Set("revision", squirrel.Expr("revision + 1")).
		Set("updated_at", record.UpdatedAt).
		Where(squirrel.Eq{"id": record.ID, "revision": expectedRevision}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update record sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrRevisionMismatch
	}

	return nil
}

// ListByParent returns the parent's published versions ordered by index.
func (r *RecordRepository) ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.Record, error) {
	sql, args, err := r.builder.
		Select(recordColumns...).
		From("registry.records").
		Where(squirrel.Eq{"parent_id": parentID}).
		OrderBy("version_index ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list records by parent sql: %w", err)
	}
	return r.list(ctx, sql, args)
}

// MaxIndexForParent returns the highest version index among the parent's
// records, 0 when none exist.
func (r *RecordRepository) MaxIndexForParent(ctx context.Context, parentID uuid.UUID) (int, error) {
	var max int
	stmt := `SELECT COALESCE(MAX(version_index), 0) FROM registry.records WHERE parent_id = $1`
	if err := r.exec.QueryRow(ctx, stmt, parentID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max record index: %w", err)
	}
	return max, nil
}

// List returns a page of records ordered by creation time.
func (r *RecordRepository) List(ctx context.Context, limit, offset int) ([]domain.Record, error) {
	builder := r.builder.
		Select(recordColumns...).
		From("registry.records").
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list records sql: %w", err)
	}
	return r.list(ctx, sql, args)
}

func (r *RecordRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.Record, error) {
	sql, args, err := r.builder.
		Select(recordColumns...).
		From("registry.records").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select record sql: %w", err)
	}

	record, err := scanRecord(r.exec.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return record, nil
}

func (r *RecordRepository) list(ctx context.Context, sql string, args []any) ([]domain.Record, error) {
	rows, err := r.exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

func scanRecord(row pgx.Row) (*domain.Record, error) {
	var (
		record domain.Record
		status string
		data   []byte
		files  []byte
		media  []byte
	)
	if err := row.Scan(
		&record.ID,
		&record.ParentID,
		&record.Index,
		&data,
		&record.PID,
		&status,
		&record.Revision,
		&files,
		&media,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	record.PIDStatus = domain.PIDStatus(status)

	if err := unmarshalRecordPayloads(data, files, media, &record.Data, &record.Files, &record.MediaFiles); err != nil {
		return nil, err
	}
	return &record, nil
}

func marshalRecordPayloads(data map[string]any, files, media domain.FilesState) ([]byte, []byte, []byte, error) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal record data: %w", err)
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal files state: %w", err)
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal media files state: %w", err)
	}
	return dataJSON, filesJSON, mediaJSON, nil
}

func unmarshalRecordPayloads(data, files, media []byte, dataDst *map[string]any, filesDst, mediaDst *domain.FilesState) error {
	if len(data) > 0 {
		if err := json.Unmarshal(data, dataDst); err != nil {
			return fmt.Errorf("unmarshal record data: %w", err)
		}
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, filesDst); err != nil {
			return fmt.Errorf("unmarshal files state: %w", err)
		}
	}
	if len(media) > 0 {
		if err := json.Unmarshal(media, mediaDst); err != nil {
			return fmt.Errorf("unmarshal media files state: %w", err)
		}
	}
	return nil
}

var _ port.RecordRepository = (*RecordRepository)(nil)
