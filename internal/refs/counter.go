// Package refs counts how many documents use a shareable document.
package refs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pageblocks/api/internal/store"
)

// Count is the number of distinct documents referencing a target. Known is
// false when no target was given.
type Count struct {
	Known     bool      `json:"known"`
	N         int       `json:"count"`
	CheckedAt time.Time `json:"checkedAt,omitempty"`
}

// Source lists the ids of documents holding a reference to targetID.
type Source interface {
	ReferencingIDs(ctx context.Context, targetID string) ([]string, error)
}

// Cache keeps the last count per published id.
type Cache interface {
	Get(ctx context.Context, id string) (Count, bool, error)
	Set(ctx context.Context, id string, c Count, ttl time.Duration) error
}

type Counter struct {
	source Source
	cache  Cache
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewCounter(source Source, cache Cache, ttl time.Duration, log zerolog.Logger) *Counter {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Counter{source: source, cache: cache, ttl: ttl, now: time.Now, log: log}
}

// Count returns the cached count for id, querying the store on a miss.
func (c *Counter) Count(ctx context.Context, id string) (Count, error) {
	published := store.PublishedID(id)
	if published == "" {
		return Count{}, nil
	}
	cached, ok, err := c.cache.Get(ctx, published)
	if err != nil {
		c.log.Warn().Err(err).Str("id", published).Msg("reference count cache read failed")
	}
	if ok {
		return cached, nil
	}
	return c.Revalidate(ctx, id)
}

// Revalidate recounts the referrers of id and refreshes the cache.
func (c *Counter) Revalidate(ctx context.Context, id string) (Count, error) {
	published := store.PublishedID(id)
	if published == "" {
		return Count{}, nil
	}
	ids, err := c.source.ReferencingIDs(ctx, published)
	if err != nil {
		return Count{}, fmt.Errorf("count references to %s: %w", published, err)
	}
	out := Count{Known: true, N: distinctPublished(ids), CheckedAt: c.now().UTC()}
	if err := c.cache.Set(ctx, published, out, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("id", published).Msg("reference count cache write failed")
	}
	return out, nil
}

// a draft and its published document count once
func distinctPublished(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[store.PublishedID(id)] = struct{}{}
	}
	return len(seen)
}

type invalidator interface {
	Invalidate(ctx context.Context, ids ...string) error
}

// Invalidate drops the cached counts of ids when the cache supports it.
func (c *Counter) Invalidate(ctx context.Context, ids ...string) {
	inv, ok := c.cache.(invalidator)
	if !ok || len(ids) == 0 {
		return
	}
	published := make([]string, len(ids))
	for i, id := range ids {
		published[i] = store.PublishedID(id)
	}
	if err := inv.Invalidate(ctx, published...); err != nil {
		c.log.Warn().Err(err).Strs("ids", published).Msg("reference count invalidation failed")
	}
}
