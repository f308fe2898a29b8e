package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a persistent second level behind the in-memory cache.
type Store interface {
	Get(ctx context.Context, ns string, key Key, dst any) (bool, error)
	Set(ctx context.Context, ns string, key Key, v any) error
	DeletePrefix(ctx context.Context, ns string, prefix Key) error
}

// MemoryStore keeps nothing beyond the in-memory level.
type MemoryStore struct{}

func (MemoryStore) Get(context.Context, string, Key, any) (bool, error) { return false, nil }
func (MemoryStore) Set(context.Context, string, Key, any) error         { return nil }
func (MemoryStore) DeletePrefix(context.Context, string, Key) error     { return nil }

// RedisStore persists query results as JSON with a TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore returns a RedisStore, or MemoryStore when rdb is nil.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) Store {
	if rdb == nil {
		return MemoryStore{}
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// RedisKey is the redis key holding key for namespace ns.
func RedisKey(ns string, key Key) string {
	return "trazio:q:" + ns + ":" + strings.Join(key, ":")
}

func (s *RedisStore) Get(ctx context.Context, ns string, key Key, dst any) (bool, error) {
	raw, err := s.rdb.Get(ctx, RedisKey(ns, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) Set(ctx context.Context, ns string, key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.rdb.Set(ctx, RedisKey(ns, key), raw, s.ttl).Err()
}

// DeletePrefix removes the exact key and everything below it.
func (s *RedisStore) DeletePrefix(ctx context.Context, ns string, prefix Key) error {
	base := RedisKey(ns, prefix)
	keys := []string{base}
	pattern := base + ":*"
	if len(prefix) == 0 {
		pattern = base + "*"
	}
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return s.rdb.Del(ctx, keys...).Err()
}
