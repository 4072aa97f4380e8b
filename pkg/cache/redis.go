package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by a Redis instance. All keys are placed under
// a namespace prefix so multiple deployments can share one database.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisStore wraps an existing Redis client. namespace may be empty.
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
	}
}

func (s *RedisStore) fullKey(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// SetWithTTL implements Store. A non-positive TTL stores the key without expiry.
func (s *RedisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.fullKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove implements Store.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// RemoveByPrefix implements Store. Uses SCAN rather than KEYS so large
// keyspaces do not block the server.
func (s *RedisStore) RemoveByPrefix(ctx context.Context, prefix string) (int64, error) {
	pattern := s.fullKey(prefix) + "*"

	var removed int64
	iter := s.client.Scan(ctx, 0, pattern, 200).Iterator()
	batch := make([]string, 0, 200)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += n
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 200 {
			if err := flush(); err != nil {
				return removed, fmt.Errorf("redis del by prefix %s: %w", prefix, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return removed, fmt.Errorf("redis del by prefix %s: %w", prefix, err)
	}
	return removed, nil
}

// Len implements Store. Counts keys in this store's namespace via SCAN.
func (s *RedisStore) Len(ctx context.Context) (int64, error) {
	pattern := "*"
	if s.namespace != "" {
		pattern = s.namespace + ":*"
	}

	var n int64
	iter := s.client.Scan(ctx, 0, pattern, 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return n, nil
}

// Close implements Store. The underlying client is owned by the caller and is
// left open.
func (s *RedisStore) Close() error {
	return nil
}

var _ Store = (*RedisStore)(nil)
