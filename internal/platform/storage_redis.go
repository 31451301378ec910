package platform

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qorzen/kernel/internal/kernelerr"
)

// RedisStorage implements Storage against a Redis server, grounded in
// wisbric-nightowl's go-redis/v9 usage for its session/rate-limit stores.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage wraps an already-constructed *redis.Client.
func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, kernelerr.IO("platform.storage.redis.get", key, err)
	}
	return val, nil
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return kernelerr.IO("platform.storage.redis.set", key, err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return kernelerr.IO("platform.storage.redis.delete", key, err)
	}
	return nil
}

func (s *RedisStorage) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, kernelerr.IO("platform.storage.redis.list_keys", prefix, err)
	}
	return keys, nil
}

func (s *RedisStorage) Clear(ctx context.Context, prefix string) error {
	keys, err := s.ListKeys(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return kernelerr.IO("platform.storage.redis.clear", prefix, err)
	}
	return nil
}
