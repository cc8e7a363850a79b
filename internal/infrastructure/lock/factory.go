package lock

import (
	"fmt"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Locker is a KeyLocker with a lifecycle
type Locker interface {
	delivery.KeyLocker
	Close() error
}

// Factory creates lockers based on configuration
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-process locker
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create returns a Redis locker when Redis is enabled and reachable, and an
// in-process locker otherwise (unless fallback is disabled).
func (f *Factory) Create() (Locker, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("using in-process automation lock")
		return NewMemoryLocker(), nil
	}

	locker, err := NewRedisLocker(RedisConfig{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.logger)
	if err == nil {
		f.logger.Info("using Redis automation lock", zap.String("addr", f.redisConfig.Addr()))
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for automation lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process automation lock. "+
		"Concurrent operations on other instances will not be excluded.",
		zap.Error(err),
	)
	return NewMemoryLocker(), nil
}
