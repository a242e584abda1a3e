// Package locks provides the Redis-backed single-flight lock used to
// de-duplicate concurrent token refreshes across instances. Locking here is
// best-effort: the Supervisor treats a lock failure as "proceed anyway",
// because a duplicate refresh is harmless and a blocked request is not.
package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"calendar-chat/internal/common/errors"
)

// Config holds Redis connection settings
type Config struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// RedisLocker implements per-key mutual exclusion with SET NX and a TTL.
// The TTL bounds how long a crashed holder can keep the key; there is no
// renewal because refresh exchanges finish in seconds.
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker connects to Redis and verifies the connection
func NewRedisLocker(config *Config) (*RedisLocker, error) {
	if config == nil {
		return nil, errors.ConfigError("redis config is required")
	}
	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.ConnectionError("failed to connect to Redis", err)
	}

	return &RedisLocker{rdb: rdb}, nil
}

// Acquire takes the lock for key if nobody holds it. Returns false without
// error when the lock is already held.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, lockKey(key), "locked", ttl).Result()
	if err != nil {
		return false, errors.ConnectionError("failed to acquire lock", err)
	}
	return ok, nil
}

// Release drops the lock. Releasing a lock that already expired is a no-op.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, lockKey(key)).Err(); err != nil {
		return errors.ConnectionError("failed to release lock", err)
	}
	return nil
}

// Health pings the Redis backend
func (l *RedisLocker) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.rdb.Ping(ctx).Err()
}

// Close releases the connection pool
func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}

func lockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}
