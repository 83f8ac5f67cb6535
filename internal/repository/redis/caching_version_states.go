package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
)

// CachingVersionStates layers the redis cache over a persistent version state
// repository. Reads prefer the cache; writes pass through and drop the cached
// entry. Transactional writes bypass this decorator, so the TTL bounds how
// long a pointer read may lag.
type CachingVersionStates struct {
	inner  port.VersionStateRepository
	cache  *VersionStateCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachingVersionStates wraps the repository with the cache.
func NewCachingVersionStates(inner port.VersionStateRepository, cache *VersionStateCache, ttl time.Duration, logger *zap.Logger) *CachingVersionStates {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachingVersionStates{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// GetOrCreate delegates to the repository and drops the cached entry.
func (r *CachingVersionStates) GetOrCreate(ctx context.Context, parentID uuid.UUID) (*domain.VersionState, error) {
	state, err := r.inner.GetOrCreate(ctx, parentID)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, parentID)
	return state, nil
}

// Get serves the pointer row from the cache when present.
func (r *CachingVersionStates) Get(ctx context.Context, parentID uuid.UUID) (*domain.VersionState, error) {
	if state, err := r.cache.Get(ctx, parentID); err == nil {
		return state, nil
	}

	state, err := r.inner.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, *state, r.ttl); err != nil {
		r.logger.Warn("cache version state failed",
			zap.String("parent_id", parentID.String()),
			zap.Error(err),
		)
	}
	return state, nil
}

// Save writes through and drops the cached entry.
func (r *CachingVersionStates) Save(ctx context.Context, state domain.VersionState) error {
	if err := r.inner.Save(ctx, state); err != nil {
		return err
	}
	r.invalidate(ctx, state.ParentID)
	return nil
}

// Count delegates to the repository.
func (r *CachingVersionStates) Count(ctx context.Context) (int, error) {
	return r.inner.Count(ctx)
}

// InvalidateState drops the cached entry. Callers use it after committing a
// pointer move through a transaction-bound repository that bypasses this
// decorator.
func (r *CachingVersionStates) InvalidateState(ctx context.Context, parentID uuid.UUID) error {
	return r.cache.Delete(ctx, parentID)
}

func (r *CachingVersionStates) invalidate(ctx context.Context, parentID uuid.UUID) {
	if err := r.cache.Delete(ctx, parentID); err != nil {
		r.logger.Warn("invalidate version state cache failed",
			zap.String("parent_id", parentID.String()),
			zap.Error(err),
		)
	}
}

var _ port.VersionStateRepository = (*CachingVersionStates)(nil)
