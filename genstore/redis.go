package genstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGen shares collection generations across processes and survives
// restarts. Optionally, a TTL can be applied to generation keys to prevent
// unbounded growth. If a generation key expires, readers observe gen=0 and
// cached entries self-heal on the next read.
type RedisGen struct {
	rdb redis.UniversalClient
	ns  string        // logical namespace; should match the store's Namespace
	ttl time.Duration // optional TTL for generation keys; 0 disables expiry
}

var _ GenStore = (*RedisGen)(nil)

// NewRedis creates a Redis-backed generation store without TTL.
func NewRedis(client redis.UniversalClient, namespace string) *RedisGen {
	return &RedisGen{rdb: client, ns: namespace}
}

// NewRedisWithTTL creates a Redis-backed generation store with TTL.
// If ttl <= 0, keys do not expire.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisGen {
	return &RedisGen{rdb: client, ns: namespace, ttl: ttl}
}

func (s *RedisGen) key(k string) string { return "gen:" + s.ns + ":" + k }

// Snapshot returns the current generation.
// Missing keys are treated as generation 0.
func (s *RedisGen) Snapshot(ctx context.Context, storageKey string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(storageKey)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis gen parse: %w", err)
	}
	return u, nil
}

// Bump atomically increments the generation and (optionally) refreshes TTL.
// When ttl > 0, INCR + EXPIRE are pipelined in a single round-trip and the
// INCR result is captured from the pipeline (no extra INCR).
func (s *RedisGen) Bump(ctx context.Context, storageKey string) (uint64, error) {
	k := s.key(storageKey)

	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is not applicable for RedisGen (Redis handles expiry if TTL is set).
func (s *RedisGen) Cleanup(time.Duration) {}

// Close closes the underlying Redis client.
func (s *RedisGen) Close(ctx context.Context) error { return s.rdb.Close() }
