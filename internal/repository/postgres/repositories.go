package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/record-registry/internal/core/port"
)

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Parents       *ParentRepository
	Records       *RecordRepository
	Drafts        *DraftRepository
	VersionStates *VersionStateRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Parents:       NewParentRepository(pool),
		Records:       NewRecordRepository(pool),
		Drafts:        NewDraftRepository(pool),
		VersionStates: NewVersionStateRepository(pool),
	}
}

// Set adapts the concrete repositories to the port bundle.
func (r *Repositories) Set() port.RepositorySet {
	return port.RepositorySet{
		Parents:       r.Parents,
		Records:       r.Records,
		Drafts:        r.Drafts,
		VersionStates: r.VersionStates,
	}
}

// withTx returns the bundle rebound to the supplied transaction.
func (r *Repositories) withTx(tx pgx.Tx) port.RepositorySet {
	return port.RepositorySet{
		Parents:       r.Parents.WithTx(tx),
		Records:       r.Records.WithTx(tx),
		Drafts:        r.Drafts.WithTx(tx),
		VersionStates: r.VersionStates.WithTx(tx),
	}
}

// TxManager runs unit-of-work functions inside a single pgx transaction.
type TxManager struct {
	pool  *pgxpool.Pool
	repos *Repositories
}

// NewTxManager constructs a transaction manager over the pool.
func NewTxManager(pool *pgxpool.Pool, repos *Repositories) *TxManager {
	return &TxManager{pool: pool, repos: repos}
}

// WithinTx begins a transaction, hands fn repositories bound to it, and
// commits iff fn returns nil.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.RepositorySet) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(ctx, m.repos.withTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("rollback tx after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

var _ port.TransactionManager = (*TxManager)(nil)
