package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"creator_collab/pkg/logger"
)

//go:generate mockgen -source=rate_limit.go -destination=../mocks/mock_rate_limit_repository.go -package=mocks

// RateLimitRepository keeps fixed-window counters in Redis.
type RateLimitRepository interface {
	// Increment bumps the counter for key and returns the new value. The
	// window starts with the first hit.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

func (r *rateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		r.log.Error("Failed to increment rate limit", "error", err, "key", key)
		return 0, err
	}

	return incr.Val(), nil
}

func (r *rateLimitRepository) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.redis.TTL(ctx, key).Result()
	if err != nil {
		r.log.Error("Failed to read rate limit ttl", "error", err, "key", key)
		return 0, err
	}
	return ttl, nil
}
