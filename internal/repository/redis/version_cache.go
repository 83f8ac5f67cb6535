package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/repository"
)

const defaultVersionStatePrefix = "registry:version_state"

// VersionStateCache caches per-parent version pointers so latest-version
// resolution does not hit PostgreSQL on every read. Entries are invalidated
// on any write that moves a pointer; stale reads are bounded by the TTL.
type VersionStateCache struct {
	client *red.Client
	prefix string
}

// NewVersionStateCache constructs the version state cache helper.
func NewVersionStateCache(client *red.Client, keyPrefix string) *VersionStateCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultVersionStatePrefix
	}

	return &VersionStateCache{client: client, prefix: prefix}
}

type cachedVersionState struct {
	LatestID    *uuid.UUID `json:"latest_id,omitempty"`
	LatestIndex *int       `json:"latest_index,omitempty"`
	NextDraftID *uuid.UUID `json:"next_draft_id,omitempty"`
}

// Get fetches the cached pointer row for a parent.
func (c *VersionStateCache) Get(ctx context.Context, parentID uuid.UUID) (*domain.VersionState, error) {
	result, err := c.client.Get(ctx, c.key(parentID)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get version state: %w", err)
	}

	var cached cachedVersionState
	if err := json.Unmarshal([]byte(result), &cached); err != nil {
		return nil, fmt.Errorf("parse cached version state: %w", err)
	}

	return &domain.VersionState{
		ParentID:    parentID,
		LatestID:    cached.LatestID,
		LatestIndex: cached.LatestIndex,
		NextDraftID: cached.NextDraftID,
	}, nil
}

// Set stores the pointer row with TTL.
func (c *VersionStateCache) Set(ctx context.Context, state domain.VersionState, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	payload, err := json.Marshal(cachedVersionState{
		LatestID:    state.LatestID,
		LatestIndex: state.LatestIndex,
		NextDraftID: state.NextDraftID,
	})
	if err != nil {
		return fmt.Errorf("marshal version state: %w", err)
	}

	if err := c.client.Set(ctx, c.key(state.ParentID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set version state: %w", err)
	}

	return nil
}

// Delete removes the cached entry for a parent.
func (c *VersionStateCache) Delete(ctx context.Context, parentID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(parentID)).Err(); err != nil {
		return fmt.Errorf("redis delete version state: %w", err)
	}

	return nil
}

func (c *VersionStateCache) key(parentID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", c.prefix, parentID)
}
