package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
)

// DBOp is one persistence step queued by a service operation. It receives
// repositories bound to the unit of work's transaction.
type DBOp func(ctx context.Context, repos port.RepositorySet) error

type indexOpKind int

const (
	indexOpIndex indexOpKind = iota
	indexOpDelete
	indexOpBulk
)

type indexOp struct {
	kind    indexOpKind
	entity  domain.Indexable
	payload map[string]any
	refresh bool
	bulk    domain.EntityKind
	ids     []uuid.UUID
}

// UnitOfWork batches the database-visible mutations of one service operation
// into a single transaction and defers indexing side effects until after the
// transaction commits, so search never observes a state the store has not
// durably committed.
type UnitOfWork struct {
	tm      port.TransactionManager
	indexer port.Indexer
	logger  *zap.Logger
	dbOps   []DBOp
	idxOps  []indexOp
}

// NewUnitOfWork starts an empty unit of work.
func NewUnitOfWork(tm port.TransactionManager, indexer port.Indexer, logger *zap.Logger) *UnitOfWork {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnitOfWork{tm: tm, indexer: indexer, logger: logger}
}

// RegisterDB queues a persistence step. Steps run in registration order
// inside one transaction.
func (u *UnitOfWork) RegisterDB(op DBOp) {
	u.dbOps = append(u.dbOps, op)
}

// RegisterIndex queues an index call for after commit.
func (u *UnitOfWork) RegisterIndex(entity domain.Indexable, payload map[string]any, refresh bool) {
	u.idxOps = append(u.idxOps, indexOp{kind: indexOpIndex, entity: entity, payload: payload, refresh: refresh})
}

// RegisterIndexDelete queues a search eviction for after commit.
func (u *UnitOfWork) RegisterIndexDelete(entity domain.Indexable, refresh bool) {
	u.idxOps = append(u.idxOps, indexOp{kind: indexOpDelete, entity: entity, refresh: refresh})
}

// RegisterBulkIndex queues a bulk reindex of the given ids for after commit.
func (u *UnitOfWork) RegisterBulkIndex(kind domain.EntityKind, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	u.idxOps = append(u.idxOps, indexOp{kind: indexOpBulk, bulk: kind, ids: ids})
}

// Commit flushes the queued persistence steps in one transaction, then
// dispatches the queued index operations. Index failures are logged, not
// returned: indexing is fire-and-forget relative to the caller.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if len(u.dbOps) > 0 {
		err := u.tm.WithinTx(ctx, func(ctx context.Context, repos port.RepositorySet) error {
			for _, op := range u.dbOps {
				if err := op(ctx, repos); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("unit of work: %w", err)
		}
	}

	for _, op := range u.idxOps {
		var err error
		switch op.kind {
		case indexOpIndex:
			err = u.indexer.Index(ctx, op.entity, op.payload, op.refresh)
		case indexOpDelete:
			err = u.indexer.Delete(ctx, op.entity, op.refresh)
		case indexOpBulk:
			err = u.indexer.BulkIndex(ctx, op.bulk, op.ids)
		}
		if err != nil {
			u.logger.Warn("index dispatch failed",
				zap.Error(err),
			)
		}
	}

	u.dbOps = nil
	u.idxOps = nil
	return nil
}
