package lock

import (
	"testing"

	"github.com/deliverysync/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_RedisDisabled(t *testing.T) {
	locker, err := NewFactory(config.RedisConfig{Enabled: false}).Create()
	require.NoError(t, err)

	_, ok := locker.(*MemoryLocker)
	assert.True(t, ok)
	assert.NoError(t, locker.Close())
}

func TestFactory_FallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	locker, err := NewFactory(cfg).Create()
	require.NoError(t, err)
	_, ok := locker.(*MemoryLocker)
	assert.True(t, ok)
}

func TestFactory_NoFallback(t *testing.T) {
	cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	_, err := NewFactory(cfg, WithInMemoryFallback(false)).Create()
	assert.Error(t, err)
}
