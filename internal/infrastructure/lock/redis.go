package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisLocker implements delivery.KeyLocker with SET NX PX and a
// compare-and-delete release, so several server instances can share one lock
// namespace.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisLocker connects to Redis and verifies the connection
func NewRedisLocker(cfg RedisConfig, logger *zap.Logger) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLockerWithClient(client, "", logger), nil
}

// NewRedisLockerWithClient creates a locker with an existing Redis client
func NewRedisLockerWithClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "delivery:lock:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// TryLock sets the key to a fresh owner token if it is absent
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// the caller's ctx may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}

// Close closes the Redis client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

var _ delivery.KeyLocker = (*RedisLocker)(nil)
