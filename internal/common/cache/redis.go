// Package cache 提供 Redis 客户端与分布式锁
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/redis/go-redis/v9"
)

// Init 初始化 Redis 连接
func Init(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	return client, nil
}

// 缓存键前缀
const (
	KeyPrefixLock      = "lock:"
	KeyPrefixScheduler = "settlement:job:"
)

// BuildKey 构建缓存键
func BuildKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(prefix, ":")
	}
	return prefix + strings.Join(parts, ":")
}
