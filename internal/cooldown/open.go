package cooldown

import (
	"context"
	"fmt"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/config"
)

// Open builds the cache selected by cfg.CooldownBackend.
func Open(ctx context.Context, cfg config.StorageConfig) (Cache, error) {
	switch cfg.CooldownBackend {
	case "", "file":
		return NewFileCache(cfg.CooldownFile()), nil
	case "redis":
		c, err := NewRedisCache(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cooldown backend: %s", cfg.CooldownBackend)
	}
}
