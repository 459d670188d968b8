// Package ancestorcache keeps the concept ancestor relation in Redis so
// repeated builds over the same vocabulary skip the ancestor table scan.
package ancestorcache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/concept"
)

const keyPrefix = "ancestors:"

// KV is satisfied by *redis.Client.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Loader fetches the relation from the system of record.
type Loader func(ctx context.Context) ([]concept.AncestorPair, error)

type Cache struct {
	kv     KV
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(kv KV, ttl time.Duration) *Cache {
	return &Cache{
		kv:     kv,
		ttl:    ttl,
		logger: slog.Default().With("component", "ancestor-cache"),
	}
}

// GetOrLoad returns the ancestor map for scope, calling load on a miss and
// storing its result. Concurrent misses for one scope share a single load.
// Cache failures are logged and fall through to load.
func (c *Cache) GetOrLoad(ctx context.Context, scope string, load Loader) (concept.AncestorMap, bool, error) {
	key := buildKey(scope)
	if pairs, ok := c.get(ctx, key); ok {
		return concept.NewAncestorMap(pairs), true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if pairs, ok := c.get(ctx, key); ok {
			return pairs, nil
		}
		pairs, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, pairs)
		return pairs, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("loading ancestors for %q: %w", scope, err)
	}
	return concept.NewAncestorMap(val.([]concept.AncestorPair)), false, nil
}

func (c *Cache) get(ctx context.Context, key string) ([]concept.AncestorPair, bool) {
	data, found, err := c.kv.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if err != nil || !found {
		c.misses.Add(1)
		return nil, false
	}
	var pairs []concept.AncestorPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key, "pairs", len(pairs))
	return pairs, true
}

func (c *Cache) set(ctx context.Context, key string, pairs []concept.AncestorPair) {
	data, err := json.Marshal(pairs)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached relation.
func (c *Cache) Invalidate(ctx context.Context) error {
	deleted, err := c.kv.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating ancestor cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func buildKey(scope string) string {
	hash := sha256.Sum256([]byte(scope))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
