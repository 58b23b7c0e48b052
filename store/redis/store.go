// Package redis provides a Redis-backed implementation of store.BackingStore.
//
// It wraps redis.UniversalClient, which supports Redis standalone,
// Redis Cluster, and Redis Sentinel out of the box.
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
package redis

import (
	"context"
	"math"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arnavsood/typedcache/store"
)

// Store implements store.BackingStore backed by Redis.
type Store struct {
	client goredis.UniversalClient
}

// New creates a Redis-backed Store from any UniversalClient (standalone
// *redis.Client, *redis.ClusterClient, *redis.Ring, or a sentinel client).
func New(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient {
	return s.client
}

func (s *Store) HashGet(ctx context.Context, key, field string) ([]byte, bool, error) {
	val, err := s.client.HGet(ctx, key, field).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *Store) HashSet(ctx context.Context, key, field string, value []byte) error {
	return s.client.HSet(ctx, key, field, value).Err()
}

func (s *Store) HashDelete(ctx context.Context, key, field string) error {
	return s.client.HDel(ctx, key, field).Err()
}

func (s *Store) HashGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	res, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(res))
	for k, v := range res {
		out[k] = []byte(v)
	}
	return out, nil
}

func (s *Store) HashLength(ctx context.Context, key string) (int64, error) {
	return s.client.HLen(ctx, key).Result()
}

func (s *Store) HashKeys(ctx context.Context, key string) ([]string, error) {
	return s.client.HKeys(ctx, key).Result()
}

func (s *Store) HashScan(ctx context.Context, key, pattern string, pageSize int64) store.HashCursor {
	return &hashCursor{
		client:  s.client,
		key:     key,
		pattern: pattern,
		count:   pageSize,
	}
}

func (s *Store) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	return s.client.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err()
}

func (s *Store) SortedSetRemove(ctx context.Context, key, member string) error {
	return s.client.ZRem(ctx, key, member).Err()
}

func (s *Store) SortedSetLength(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

func (s *Store) SortedSetRangeByScore(ctx context.Context, key string, min, max float64, excludeStart bool) ([]string, error) {
	minStr := formatScore(min)
	if excludeStart {
		minStr = "(" + minStr
	}
	return s.client.ZRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min: minStr,
		Max: formatScore(max),
	}).Result()
}

func (s *Store) KeyExists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (s *Store) KeyDelete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *Store) StringGet(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *Store) StringSet(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func formatScore(f float64) string {
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsInf(f, 1) {
		return "+inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ─── HashCursor ──────────────────────────────────────────────────────────────

type hashCursor struct {
	client  goredis.UniversalClient
	key     string
	pattern string
	count   int64

	scanCursor uint64
	started    bool
	pairs      []string
	idx        int
	field      string
	value      []byte
	err        error
}

func (c *hashCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	for {
		// Two entries (field, value) consumed per hash entry.
		if c.idx+1 < len(c.pairs) {
			c.field = c.pairs[c.idx]
			c.value = []byte(c.pairs[c.idx+1])
			c.idx += 2
			return true
		}
		if c.started && c.scanCursor == 0 {
			return false
		}
		pairs, next, err := c.client.HScan(ctx, c.key, c.scanCursor, c.pattern, c.count).Result()
		if err != nil {
			c.err = err
			return false
		}
		c.started = true
		c.scanCursor = next
		c.pairs = pairs
		c.idx = 0
		if len(pairs) == 0 && c.scanCursor == 0 {
			return false
		}
	}
}

func (c *hashCursor) Field() string { return c.field }
func (c *hashCursor) Value() []byte { return c.value }
func (c *hashCursor) Err() error    { return c.err }
