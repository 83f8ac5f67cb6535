package kafka

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
)

// StubIndexer logs index events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubIndexer struct {
	logger *zap.Logger
}

// NewStubIndexer constructs a development-friendly indexer.
func NewStubIndexer(logger *zap.Logger) *StubIndexer {
	return &StubIndexer{logger: logger}
}

func (s *StubIndexer) Index(_ context.Context, entity domain.Indexable, payload map[string]any, refresh bool) error {
	s.logger.Info("stub index",
		zap.String("entity_kind", string(entity.IndexKind())),
		zap.String("entity_id", entity.IndexID().String()),
		zap.Bool("refresh", refresh),
		zap.Any("payload", payload),
	)
	return nil
}

func (s *StubIndexer) Delete(_ context.Context, entity domain.Indexable, refresh bool) error {
	s.logger.Info("stub index delete",
		zap.String("entity_kind", string(entity.IndexKind())),
		zap.String("entity_id", entity.IndexID().String()),
		zap.Bool("refresh", refresh),
	)
	return nil
}

func (s *StubIndexer) BulkIndex(_ context.Context, kind domain.EntityKind, ids []uuid.UUID) error {
	s.logger.Info("stub bulk index",
		zap.String("entity_kind", string(kind)),
		zap.Int("count", len(ids)),
	)
	return nil
}

var _ port.Indexer = (*StubIndexer)(nil)
