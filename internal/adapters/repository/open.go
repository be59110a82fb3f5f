package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/cigame/internal/config"
)

// Open returns the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		return NewMemoryStore(WithScoreCardLimit(cfg.ScoreCardLimit)), nil
	case config.StoreSQLite:
		return OpenSQLite(ctx, cfg.StorePath)
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client, ""), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrDriver, cfg.StoreDriver)
	}
}
