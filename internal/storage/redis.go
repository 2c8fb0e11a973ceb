package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deusflow/ainews/internal/news"
)

const (
	redisKeyPrefix = "ainews:sent:"
	redisIndexKey  = "ainews:sent_index"
)

// RedisCache keeps one expiring key per sent item plus a sorted index by
// send time for Recent.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return newRedisCache(rdb, ttl), nil
}

func newRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		rdb:    rdb,
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default().With("component", "storage"),
	}
}

func (rc *RedisCache) Seen(ctx context.Context, url string) bool {
	n, err := rc.rdb.Exists(ctx, redisKeyPrefix+HashURL(url)).Result()
	if err != nil {
		rc.logger.Warn("error checking sent history", "url", url, "error", err)
		return false
	}
	return n > 0
}

func (rc *RedisCache) MarkSent(ctx context.Context, item *news.Item) error {
	sent := newSentItem(item, rc.now())
	data, err := json.Marshal(sent)
	if err != nil {
		return err
	}

	pipe := rc.rdb.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+sent.Hash, data, rc.ttl)
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(sent.SentAt.Unix()), Member: sent.Hash})
	if rc.ttl > 0 {
		pipe.ZRemRangeByScore(ctx, redisIndexKey, "-inf", "("+rc.indexCutoff())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark as sent: %w", err)
	}
	return nil
}

// indexCutoff is the lowest index score still inside the TTL window.
func (rc *RedisCache) indexCutoff() string {
	if rc.ttl <= 0 {
		return "-inf"
	}
	return strconv.FormatInt(rc.now().Add(-rc.ttl).Unix(), 10)
}

func (rc *RedisCache) Recent(ctx context.Context, limit int) ([]SentItem, error) {
	if limit <= 0 {
		limit = 10
	}
	hashes, err := rc.rdb.ZRevRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{
		Min:   rc.indexCutoff(),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return nil, nil
	}

	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = redisKeyPrefix + h
	}
	values, err := rc.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var items []SentItem
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// expired
			continue
		}
		var item SentItem
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (rc *RedisCache) Close() error {
	return rc.rdb.Close()
}
