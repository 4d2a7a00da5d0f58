// Package cache holds advisory read caches. Nothing here is ever
// authoritative for balance correctness; a miss or a stale hit only costs a
// store read.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/baharkarakas/prediction-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const marketTTL = 30 * time.Second

// MarketCache keeps short-lived JSON snapshots of market documents in Redis.
type MarketCache struct {
	rdb *redis.Client
}

func NewMarketCache(addr string) *MarketCache {
	return &MarketCache{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func marketKey(id string) string { return "market:" + id }

// Get returns a cached snapshot if present and fresh.
func (c *MarketCache) Get(ctx context.Context, id string) (models.Market, bool) {
	data, err := c.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		return models.Market{}, false
	}
	var m models.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return models.Market{}, false
	}
	return m, true
}

// Set stores a snapshot with the advisory TTL. Failures are logged and
// swallowed; the cache must never fail a request.
func (c *MarketCache) Set(ctx context.Context, m models.Market) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, marketKey(m.ID), data, marketTTL).Err(); err != nil {
		slog.Debug("market cache set failed", "market_id", m.ID, "err", err)
	}
}

// Invalidate drops a market's snapshot after a write.
func (c *MarketCache) Invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, marketKey(id)).Err(); err != nil {
		slog.Debug("market cache invalidate failed", "market_id", id, "err", err)
	}
}
