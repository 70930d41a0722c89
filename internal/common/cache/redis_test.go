// Package cache Redis 缓存模块单元测试
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestInit_Success(t *testing.T) {
	s := setupMiniRedis(t)

	client, err := Init(&config.RedisConfig{
		Host:        s.Host(),
		Port:        s.Server().Addr().Port,
		PoolSize:    4,
		DialTimeout: 1,
		ReadTimeout: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", time.Minute).Err())
	assert.True(t, s.Exists("k"))
}

func TestInit_Unreachable(t *testing.T) {
	_, err := Init(&config.RedisConfig{Host: "127.0.0.1", Port: 1, DialTimeout: 1})
	assert.Error(t, err)
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "lock:settle", BuildKey(KeyPrefixLock, "settle"))
	assert.Equal(t, "settlement:job:settle_due_income", BuildKey(KeyPrefixScheduler, "settle_due_income"))
	assert.Equal(t, "lock", BuildKey(KeyPrefixLock))
}

func TestLocker(t *testing.T) {
	s := setupMiniRedis(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewLocker(client)
	ctx := context.Background()

	t.Run("互斥", func(t *testing.T) {
		first, err := locker.TryAcquire(ctx, "lock:a", time.Minute)
		require.NoError(t, err)

		_, err = locker.TryAcquire(ctx, "lock:a", time.Minute)
		assert.ErrorIs(t, err, ErrLockNotAcquired)

		require.NoError(t, first.Release(ctx))
		second, err := locker.TryAcquire(ctx, "lock:a", time.Minute)
		require.NoError(t, err)
		require.NoError(t, second.Release(ctx))
	})

	t.Run("过期后不会误删他人的锁", func(t *testing.T) {
		stale, err := locker.TryAcquire(ctx, "lock:b", time.Second)
		require.NoError(t, err)

		s.FastForward(2 * time.Second)
		fresh, err := locker.TryAcquire(ctx, "lock:b", time.Minute)
		require.NoError(t, err)

		require.NoError(t, stale.Release(ctx))
		assert.True(t, s.Exists("lock:b"))
		require.NoError(t, fresh.Release(ctx))
		assert.False(t, s.Exists("lock:b"))
	})

	t.Run("未配置 Redis 时直接成功", func(t *testing.T) {
		l, err := NewLocker(nil).TryAcquire(ctx, "lock:c", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "lock:c", l.Key())
		assert.NoError(t, l.Release(ctx))
	})
}
