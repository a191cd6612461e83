package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// NewIdempotencyStore builds the store selected by engine.idempotency_backend.
// The redis backend fails fast when the server does not answer a ping.
func NewIdempotencyStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (shared.IdempotencyStore, error) {
	switch cfg.Engine.IdempotencyBackend {
	case config.IdempotencyBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr(), err)
		}

		logger.Info("using Redis idempotency store", zap.String("addr", cfg.Redis.Addr()))
		return NewRedisIdempotencyStore(client, ""), nil

	case config.IdempotencyBackendMemory, "":
		logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil

	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", cfg.Engine.IdempotencyBackend)
	}
}
