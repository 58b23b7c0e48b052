// Package store defines the backing-store contract the typedcache engine
// is built against: hash, sorted-set, and string primitives over a
// Redis-like key-value server. Any store providing these primitives with
// atomicity per command suffices — see store/redis for a production
// implementation and store/memory for a single-process one used in tests.
package store

import "context"

// BackingStore abstracts the hash / sorted-set / string operations the
// typedcache engine issues against the underlying key-value server.
// Implementations must be safe for concurrent use. Every method returns
// the underlying transport error unwrapped; the engine wraps it in a
// BackendUnavailable error for callers.
type BackingStore interface {
	// HashGet returns the value stored at field in the hash at key, and
	// whether the field was present.
	HashGet(ctx context.Context, key, field string) (value []byte, ok bool, err error)

	// HashSet sets field to value in the hash at key.
	HashSet(ctx context.Context, key, field string, value []byte) error

	// HashDelete removes field from the hash at key. No error if absent.
	HashDelete(ctx context.Context, key, field string) error

	// HashGetAll returns every field/value pair in the hash at key.
	HashGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// HashLength returns the number of fields in the hash at key.
	HashLength(ctx context.Context, key string) (int64, error)

	// HashScan returns a cursor over the hash at key, matching field names
	// against pattern (empty pattern matches everything), fetching
	// pageSize fields per round trip to the backend.
	HashScan(ctx context.Context, key, pattern string, pageSize int64) HashCursor

	// HashKeys returns every field name in the hash at key.
	HashKeys(ctx context.Context, key string) ([]string, error)

	// SortedSetAdd adds member with score to the sorted set at key,
	// updating its score if member is already present.
	SortedSetAdd(ctx context.Context, key string, score float64, member string) error

	// SortedSetRemove removes member from the sorted set at key.
	SortedSetRemove(ctx context.Context, key, member string) error

	// SortedSetLength returns the number of members in the sorted set at key.
	SortedSetLength(ctx context.Context, key string) (int64, error)

	// SortedSetRangeByScore returns members with score in [min, max],
	// ascending. If excludeStart is true, members with score == min are
	// excluded (an open lower bound).
	SortedSetRangeByScore(ctx context.Context, key string, min, max float64, excludeStart bool) ([]string, error)

	// KeyExists reports whether key exists, regardless of its type.
	KeyExists(ctx context.Context, key string) (bool, error)

	// KeyDelete deletes key, regardless of type. No error if absent.
	KeyDelete(ctx context.Context, key string) error

	// StringGet returns the value of the string key, and whether it exists.
	StringGet(ctx context.Context, key string) (value []byte, ok bool, err error)

	// StringSet sets key to value.
	StringSet(ctx context.Context, key string, value []byte) error
}

// HashCursor iterates a hash field-by-field, fetching from the backend in
// pages. Modeled on bufio.Scanner / sql.Rows: call Next until it returns
// false, then check Err.
type HashCursor interface {
	// Next advances the cursor, fetching another page from the backend if
	// needed. Returns false at end of the hash or on error (check Err).
	Next(ctx context.Context) bool

	// Field returns the current field name. Valid only after Next returns true.
	Field() string

	// Value returns the current field's value. Valid only after Next returns true.
	Value() []byte

	// Err returns the first error encountered, if any.
	Err() error
}

// Open-ended range queries pass math.Inf(-1) / math.Inf(1) as min/max to
// SortedSetRangeByScore.
