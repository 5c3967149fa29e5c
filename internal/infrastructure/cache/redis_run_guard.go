package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKeyPrefix namespaces sweep claims in a shared Redis
const DefaultKeyPrefix = "entitlement:sweep:"

// RedisRunGuard claims sweep keys with SET NX so that only one worker
// instance runs a given sweep window
type RedisRunGuard struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRunGuard connects to Redis and verifies the connection
func NewRedisRunGuard(ctx context.Context, cfg config.RedisConfig) (*RedisRunGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr(), err)
	}

	return NewRedisRunGuardWithClient(client, DefaultKeyPrefix), nil
}

// NewRedisRunGuardWithClient wraps an existing client
func NewRedisRunGuardWithClient(client *redis.Client, keyPrefix string) *RedisRunGuard {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisRunGuard{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed claims key for ttl. Returns false when another instance holds it.
func (g *RedisRunGuard) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := g.client.SetNX(ctx, g.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return claimed, nil
}

// IsProcessed reports whether key is currently claimed
func (g *RedisRunGuard) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Exists(ctx, g.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	return n > 0, nil
}

// Close closes the Redis client
func (g *RedisRunGuard) Close() error {
	return g.client.Close()
}

// NewRunGuard returns a Redis guard when Redis is configured and reachable,
// otherwise an in-memory guard. With requireRedis set an unreachable Redis is an error.
func NewRunGuard(ctx context.Context, cfg config.RedisConfig, requireRedis bool, log *zap.Logger) (shared.IdempotencyStore, error) {
	if cfg.Host == "" {
		if requireRedis {
			return nil, fmt.Errorf("redis host is required")
		}
		log.Info("redis not configured, using in-memory sweep run-guard")
		return NewInMemoryRunGuard(), nil
	}

	guard, err := NewRedisRunGuard(ctx, cfg)
	if err == nil {
		log.Info("using redis sweep run-guard", zap.String("addr", cfg.Addr()))
		return guard, nil
	}
	if requireRedis {
		return nil, err
	}

	log.Warn("redis unavailable, falling back to in-memory sweep run-guard; "+
		"several worker instances may run the same sweep",
		zap.Error(err),
	)
	return NewInMemoryRunGuard(), nil
}

var _ shared.IdempotencyStore = (*RedisRunGuard)(nil)
