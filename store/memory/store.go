// Package memory provides an in-memory implementation of store.BackingStore.
//
// This is useful for tests and single-process deployments that don't need
// distributed state. Unlike a real Redis server, nothing here expires on
// its own — the typedcache engine's own TTL reaper owns that lifecycle.
//
//	s := memory.New()
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/arnavsood/typedcache/store"
)

// Store implements store.BackingStore with in-memory state.
// All operations are thread-safe.
type Store struct {
	mu     sync.Mutex
	hashes map[string]map[string][]byte
	sorted map[string][]sortedEntry
	keys   map[string]bool
}

type sortedEntry struct {
	score  float64
	member string
}

// stringBucket is an internal hash namespace for StringGet/StringSet,
// kept distinct from caller-visible hash keys.
const stringBucket = "\x00strings"

// New creates a new in-memory Store.
func New() *Store {
	return &Store{
		hashes: make(map[string]map[string][]byte),
		sorted: make(map[string][]sortedEntry),
		keys:   make(map[string]bool),
	}
}

func (s *Store) HashGet(_ context.Context, key, field string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.hashes[key][field]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) HashSet(_ context.Context, key, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		s.hashes[key] = h
	}
	h[field] = append([]byte(nil), value...)
	return nil
}

func (s *Store) HashDelete(_ context.Context, key, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hashes[key]; ok {
		delete(h, field)
		if len(h) == 0 {
			delete(s.hashes, key)
		}
	}
	return nil
}

func (s *Store) HashGetAll(_ context.Context, key string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *Store) HashLength(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.hashes[key])), nil
}

func (s *Store) HashKeys(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.hashes[key]))
	for k := range s.hashes[key] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) HashScan(_ context.Context, key, pattern string, _ int64) store.HashCursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := make([]string, 0, len(s.hashes[key]))
	for k := range s.hashes[key] {
		if pattern == "" || strings.Contains(k, pattern) {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return &memHashCursor{store: s, key: key, fields: fields, idx: -1}
}

func (s *Store) SortedSetAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.sorted[key]
	for i, e := range entries {
		if e.member == member {
			entries[i].score = score
			s.resortLocked(key, entries)
			return nil
		}
	}
	entries = append(entries, sortedEntry{score: score, member: member})
	s.resortLocked(key, entries)
	return nil
}

func (s *Store) resortLocked(key string, entries []sortedEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].score < entries[j].score })
	s.sorted[key] = entries
}

func (s *Store) SortedSetRemove(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.sorted[key]
	for i, e := range entries {
		if e.member == member {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(s.sorted, key)
	} else {
		s.sorted[key] = entries
	}
	return nil
}

func (s *Store) SortedSetLength(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.sorted[key])), nil
}

func (s *Store) SortedSetRangeByScore(_ context.Context, key string, min, max float64, excludeStart bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.sorted[key] {
		if e.score < min || e.score > max {
			continue
		}
		if excludeStart && e.score == min {
			continue
		}
		out = append(out, e.member)
	}
	return out, nil
}

func (s *Store) KeyExists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	if _, ok := s.sorted[key]; ok {
		return true, nil
	}
	return s.keys[key], nil
}

func (s *Store) KeyDelete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, key)
	delete(s.sorted, key)
	delete(s.keys, key)
	delete(s.hashes[stringBucket], key)
	return nil
}

func (s *Store) StringGet(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.hashes[stringBucket][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) StringSet(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[stringBucket]
	if !ok {
		h = make(map[string][]byte)
		s.hashes[stringBucket] = h
	}
	h[key] = append([]byte(nil), value...)
	s.keys[key] = true
	return nil
}

// ─── HashCursor ──────────────────────────────────────────────────────────────

// memHashCursor snapshots field names at HashScan time, matching Redis's
// own cursor semantics where concurrent mutation may or may not be observed.
type memHashCursor struct {
	store  *Store
	key    string
	fields []string
	idx    int
}

func (c *memHashCursor) Next(context.Context) bool {
	c.idx++
	return c.idx < len(c.fields)
}

func (c *memHashCursor) Field() string {
	return c.fields[c.idx]
}

func (c *memHashCursor) Value() []byte {
	v, _, _ := c.store.HashGet(context.Background(), c.key, c.fields[c.idx])
	return v
}

func (c *memHashCursor) Err() error { return nil }
