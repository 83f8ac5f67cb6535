package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
)

const indexTopic = "indexing"

// Indexer publishes index events to Kafka for the search ingestion pipeline.
// Messages are keyed by entity id so per-entity ordering survives partitioning.
type Indexer struct {
	producer *Producer
	logger   *zap.Logger
	now      func() time.Time
}

// NewIndexer wires the indexer over the async producer.
func NewIndexer(producer *Producer, logger *zap.Logger) *Indexer {
	return &Indexer{producer: producer, logger: logger, now: time.Now}
}

// WithNow overrides the event clock for tests.
func (i *Indexer) WithNow(now func() time.Time) *Indexer {
	if now != nil {
		i.now = now
	}
	return i
}

// Index publishes an ingest event carrying the entity payload.
func (i *Indexer) Index(ctx context.Context, entity domain.Indexable, payload map[string]any, refresh bool) error {
	return i.publish(ctx, domain.IndexEvent{
		EventID:    uuid.NewString(),
		Op:         domain.IndexOpIndex,
		EntityKind: entity.IndexKind(),
		EntityID:   entity.IndexID(),
		Payload:    payload,
		Refresh:    refresh,
		OccurredAt: i.now().UTC(),
	})
}

// Delete publishes an eviction event for the entity.
func (i *Indexer) Delete(ctx context.Context, entity domain.Indexable, refresh bool) error {
	return i.publish(ctx, domain.IndexEvent{
		EventID:    uuid.NewString(),
		Op:         domain.IndexOpDelete,
		EntityKind: entity.IndexKind(),
		EntityID:   entity.IndexID(),
		Refresh:    refresh,
		OccurredAt: i.now().UTC(),
	})
}

// BulkIndex publishes a re-index request for a set of entity identifiers. The
// consumer loads current state from the database, so no payload travels here.
func (i *Indexer) BulkIndex(ctx context.Context, kind domain.EntityKind, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return i.publish(ctx, domain.IndexEvent{
		EventID:    uuid.NewString(),
		Op:         domain.IndexOpBulk,
		EntityKind: kind,
		EntityID:   ids[0],
		EntityIDs:  ids,
		OccurredAt: i.now().UTC(),
	})
}

func (i *Indexer) publish(ctx context.Context, event domain.IndexEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal index event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: i.producer.TopicName(indexTopic),
		Key:   sarama.StringEncoder(event.EntityID.String()),
		Value: sarama.ByteEncoder(value),
	}

	select {
	case i.producer.Producer().Input() <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}

	i.logger.Debug("index event published",
		zap.String("event_id", event.EventID),
		zap.String("op", string(event.Op)),
		zap.String("entity_kind", string(event.EntityKind)),
		zap.String("entity_id", event.EntityID.String()),
	)
	return nil
}

var _ port.Indexer = (*Indexer)(nil)
