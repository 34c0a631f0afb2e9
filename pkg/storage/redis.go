package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage is a Redis-backed Storage implementation. Expiry is handled
// by native Redis TTLs, so no envelope encoding is needed and the server
// evicts expired keys on its own.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	closed bool
}

// RedisOption configures RedisStorage behavior.
type RedisOption func(*redisConfig)

type redisConfig struct {
	prefix string
}

// WithRedisPrefix sets the key prefix. Default: "gantry:storage:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *redisConfig) {
		c.prefix = prefix
	}
}

// NewRedisStorage creates a Redis-backed storage backend on top of an
// existing client. The client may be shared with other components and is
// not closed by Close.
func NewRedisStorage(client redis.UniversalClient, opts ...RedisOption) *RedisStorage {
	cfg := &redisConfig{prefix: "gantry:storage:"}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisStorage{
		client: client,
		prefix: cfg.prefix,
	}
}

func (r *RedisStorage) key(key string) string {
	return r.prefix + key
}

// Set stores value under key, with a native Redis TTL when expiresIn is
// positive.
func (r *RedisStorage) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	if r.closed {
		return ErrClosed
	}

	if expiresIn < 0 {
		expiresIn = 0
	}
	return r.client.Set(ctx, r.key(key), value, expiresIn).Err()
}

// Get returns the value for key, sliding the TTL forward when renewFor is
// positive and the key carries an expiry.
func (r *RedisStorage) Get(ctx context.Context, key string, renewFor time.Duration) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	if renewFor > 0 {
		ttl, err := r.client.TTL(ctx, r.key(key)).Result()
		if err != nil {
			return nil, err
		}
		// A key without expiry (TTL -1) is never renewed.
		if ttl > 0 {
			if err := r.client.Expire(ctx, r.key(key), renewFor).Err(); err != nil {
				return nil, err
			}
		}
	}

	return data, nil
}

// Delete removes key.
func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if r.closed {
		return ErrClosed
	}

	return r.client.Del(ctx, r.key(key)).Err()
}

// DeleteAll removes every key under the backend's prefix using SCAN, so
// unrelated keys sharing the Redis database are untouched.
func (r *RedisStorage) DeleteAll(ctx context.Context) error {
	if r.closed {
		return ErrClosed
	}

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Exists reports whether key exists.
func (r *RedisStorage) Exists(ctx context.Context, key string) (bool, error) {
	if r.closed {
		return false, ErrClosed
	}

	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ExpiresIn returns the remaining TTL of key.
func (r *RedisStorage) ExpiresIn(ctx context.Context, key string) (time.Duration, bool, error) {
	if r.closed {
		return 0, false, ErrClosed
	}

	ttl, err := r.client.TTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, false, err
	}
	if ttl < 0 {
		// -2: no such key, -1: no expiry set.
		return 0, false, nil
	}
	return ttl, true, nil
}

// Close marks the backend as closed. The underlying client is not closed,
// as it may be shared with other components.
func (r *RedisStorage) Close() error {
	r.closed = true
	return nil
}

// Prefix returns the configured key prefix, for tests and debugging.
func (r *RedisStorage) Prefix() string {
	return r.prefix
}
