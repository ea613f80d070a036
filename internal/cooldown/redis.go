package cooldown

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// RedisCache stores the map as a single redis hash of symbol → epoch millis.
type RedisCache struct {
	client *redis.Client
	key    string
}

// RedisOptions configures NewRedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisCacheWithClient(client, opts.Key), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, key string) *RedisCache {
	if key == "" {
		key = "stockalert:cooldown"
	}
	return &RedisCache{client: client, key: key}
}

// Load reads the hash. Fields that are not integers are dropped and reported
// as ErrCorrupt along with the remaining entries.
func (c *RedisCache) Load(ctx context.Context) (Entries, error) {
	fields, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return Entries{}, fmt.Errorf("failed to read cooldown hash: %w", err)
	}
	entries := make(Entries, len(fields))
	var bad int
	for symbol, v := range fields {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			bad++
			continue
		}
		entries[symbol] = ts
	}
	if bad > 0 {
		return entries, fmt.Errorf("%w: %d non-numeric fields in %s", ErrCorrupt, bad, c.key)
	}
	return entries, nil
}

// Save replaces the hash in one MULTI/EXEC.
func (c *RedisCache) Save(ctx context.Context, entries Entries) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.key)
		if len(entries) == 0 {
			return nil
		}
		values := make(map[string]interface{}, len(entries))
		for symbol, ts := range entries {
			values[symbol] = ts
		}
		pipe.HSet(ctx, c.key, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save cooldown hash: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
