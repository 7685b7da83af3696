package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "feedloop:jobs:"

var _ LockProvider = (*RedisLockProvider)(nil)

// RedisLockProvider coordinates job execution across processes through
// SET NX leases. The lease TTL bounds how long a crashed process can keep a
// job locked.
type RedisLockProvider struct {
	client *redis.Client
}

func NewRedisLockProvider(addr string) (*RedisLockProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLockProvider{client: client}, nil
}

func (p *RedisLockProvider) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := p.client.SetNX(ctx, lockKeyPrefix+name, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	return ok, nil
}

func (p *RedisLockProvider) Release(ctx context.Context, name string) error {
	if err := p.client.Del(ctx, lockKeyPrefix+name).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

func (p *RedisLockProvider) Close() error {
	return p.client.Close()
}
