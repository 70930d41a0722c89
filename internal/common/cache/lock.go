package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired 锁已被其他持有者占用
var ErrLockNotAcquired = errors.New("lock not acquired")

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SET NX PX 的分布式锁
type Locker struct {
	client redis.UniversalClient
}

// NewLocker 创建分布式锁工厂，client 为 nil 时所有加锁直接成功
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// Lock 已持有的锁
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// TryAcquire 非阻塞加锁
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if l == nil || l.client == nil {
		return &Lock{key: key}, nil
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release 释放锁，只删除自己持有的值
func (k *Lock) Release(ctx context.Context) error {
	if k == nil || k.client == nil {
		return nil
	}
	return unlockScript.Run(ctx, k.client, []string{k.key}, k.token).Err()
}

// Key 返回锁的键
func (k *Lock) Key() string {
	return k.key
}
