package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"scheletro/backend/internal/table"
)

const redisKeyPrefix = "tablecache:"

// RedisBackend shares the cache across processes. Payloads are JSON-encoded
// row sets; a missing key is a miss, not an error.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(addr, password string, db int) *RedisBackend {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) Get(ctx context.Context, name string) ([][]string, bool, error) {
	val, err := b.client.Get(ctx, redisKeyPrefix+name).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rows [][]string
	if err := json.Unmarshal([]byte(val), &rows); err != nil {
		return nil, false, err
	}
	return rows, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, name string, rows [][]string, ttl time.Duration) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, redisKeyPrefix+name, payload, ttl).Err()
}

// Clear deletes the cache entry of every known table. The key space is
// closed (table names are compile-time constants), so no SCAN is needed.
func (b *RedisBackend) Clear(ctx context.Context) error {
	keys := []string{
		redisKeyPrefix + table.Inventory,
		redisKeyPrefix + table.Sales,
		redisKeyPrefix + table.SaleDetail,
		redisKeyPrefix + table.Expenses,
		redisKeyPrefix + table.Config,
	}
	return b.client.Del(ctx, keys...).Err()
}
