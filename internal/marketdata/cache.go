package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"breakout_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// CachingHistory — redis-декоратор над HistorySource. Скан гоняет сотни
// запросов истории подряд; повторный скан в течение TTL ходит в кэш.
// Кэш best-effort: любой его отказ прозрачно проваливается в источник.
type CachingHistory struct {
	inner HistorySource
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCachingHistory(rdb *redis.Client, ttl time.Duration, inner HistorySource) *CachingHistory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachingHistory{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *CachingHistory) FetchHistory(ctx context.Context, symbol, rng, interval string) ([]models.Bar, error) {
	if c.rdb == nil {
		return c.inner.FetchHistory(ctx, symbol, rng, interval)
	}

	key := cacheKey(symbol, rng, interval)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []models.Bar
		if err := sonic.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		_ = c.rdb.Del(ctx, key).Err() // битую запись выкидываем
	}

	out, err := c.inner.FetchHistory(ctx, symbol, rng, interval)
	if err != nil {
		return nil, err
	}

	if b, err := sonic.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

func cacheKey(symbol, rng, interval string) string {
	return fmt.Sprintf("bars:%s:%s:%s", safe(symbol), safe(rng), safe(interval))
}

func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, ":", "_")
}
