// Package dedup guards reportbridge against forwarding the same
// divergence report twice, using Redis as an idempotency side table
// the same way the teacher's internal/dict package uses Redis to
// store small per-task lookup state.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const forwardedKeyPattern = "nezha:reportbridge:forwarded:%s" // nezha:reportbridge:forwarded:<report key>

const ttl = 7 * 24 * time.Hour

type Guard struct {
	logger      *zap.Logger
	redisClient *redis.Client
}

type GuardParams struct {
	fx.In

	Logger      *zap.Logger
	RedisClient *redis.Client
}

func NewGuard(p GuardParams) *Guard {
	return &Guard{
		logger:      p.Logger,
		redisClient: p.RedisClient,
	}
}

// ClaimOnce reports whether key has not been seen before and marks it
// seen for ttl. A false return means some prior call (this process or
// another) already claimed key and the caller should skip forwarding.
func (g *Guard) ClaimOnce(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf(forwardedKeyPattern, key)
	claimed, err := g.redisClient.SetNX(ctx, redisKey, 1, ttl).Result()
	if err != nil {
		g.logger.Error("dedup claim failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("dedup: claim %s: %w", key, err)
	}
	if !claimed {
		g.logger.Debug("report already forwarded, skipping", zap.String("key", key))
	}
	return claimed, nil
}
