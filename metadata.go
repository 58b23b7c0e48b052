package typedcache

import (
	"context"
	"strconv"
	"time"

	"github.com/arnavsood/typedcache/store"
)

// MetadataStore owns the per-map key-space layout described in §4.3: seven
// keys under the map:<name> namespace that the backing store must match
// bit-for-bit with existing deployments.
type MetadataStore struct {
	backend store.BackingStore
	name    string
}

// NewMetadataStore binds a MetadataStore to mapName over backend.
func NewMetadataStore(backend store.BackingStore, mapName string) *MetadataStore {
	return &MetadataStore{backend: backend, name: mapName}
}

func (m *MetadataStore) ValuesKey() string           { return "map:" + m.name }
func (m *MetadataStore) AccessTimeKey() string       { return "map:" + m.name + ":access-time" }
func (m *MetadataStore) VersionsKey() string          { return "map:" + m.name + ":__meta:versions" }
func (m *MetadataStore) TimestampsKey() string        { return "map:" + m.name + ":__meta:timestamps" }
func (m *MetadataStore) TimestampsSortedKey() string  { return "map:" + m.name + ":__meta:timestamps-sorted" }
func (m *MetadataStore) TTLConfigKey() string         { return "map:" + m.name + ":__meta:ttl-config" }
func (m *MetadataStore) LastBatchKey() string         { return "map:" + m.name + ":__meta:timestamps:last-batch" }

// ticksOf and timeFromTicks give the "signed 64-bit tick count in UTC"
// format of §6.3 a single representation: UTC UnixNano.
func ticksOf(t time.Time) int64          { return t.UTC().UnixNano() }
func timeFromTicks(ticks int64) time.Time { return time.Unix(0, ticks).UTC() }

func formatTicks(ticks int64) string { return strconv.FormatInt(ticks, 10) }

// parseTicksOrZero parses raw as a tick count, returning 0 (the start of
// the Unix epoch) if raw is empty or malformed rather than failing the
// caller's enumeration.
func parseTicksOrZero(raw []byte) int64 {
	if len(raw) == 0 {
		return 0
	}
	ticks, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return ticks
}

// GetTTL reads the idle-TTL configured for the map, if any.
func (m *MetadataStore) GetTTL(ctx context.Context) (time.Duration, bool, error) {
	raw, ok, err := m.backend.StringGet(ctx, m.TTLConfigKey())
	if err != nil || !ok {
		return 0, false, err
	}
	secs, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, err
	}
	return time.Duration(secs) * time.Second, true, nil
}

// SetTTL writes the idle-TTL for the map, or deletes the config key when d
// is nil.
func (m *MetadataStore) SetTTL(ctx context.Context, d *time.Duration) error {
	if d == nil {
		return m.backend.KeyDelete(ctx, m.TTLConfigKey())
	}
	secs := strconv.FormatInt(int64(d.Seconds()), 10)
	return m.backend.StringSet(ctx, m.TTLConfigKey(), []byte(secs))
}

// GetLastBatch returns the ticks of the most recent successful batch
// emission, or 0 (treated as "the beginning of time") if none has happened
// yet.
func (m *MetadataStore) GetLastBatch(ctx context.Context) (int64, error) {
	raw, ok, err := m.backend.StringGet(ctx, m.LastBatchKey())
	if err != nil || !ok {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// SetLastBatch records ticks as the most recent successful batch emission.
func (m *MetadataStore) SetLastBatch(ctx context.Context, ticks int64) error {
	return m.backend.StringSet(ctx, m.LastBatchKey(), []byte(strconv.FormatInt(ticks, 10)))
}

// MigrationStatus reports the state of the legacy-hash-to-sorted-set
// migration for timestamps.
type MigrationStatus struct {
	HashCount      int64
	SortedSetCount int64
	IsMigrated     bool
	IsComplete     bool
}

// GetMigrationStatus inspects both timestamp representations without
// mutating either.
func (m *MetadataStore) GetMigrationStatus(ctx context.Context) (MigrationStatus, error) {
	hashCount, err := m.backend.HashLength(ctx, m.TimestampsKey())
	if err != nil {
		return MigrationStatus{}, err
	}
	sortedCount, err := m.backend.SortedSetLength(ctx, m.TimestampsSortedKey())
	if err != nil {
		return MigrationStatus{}, err
	}
	return MigrationStatus{
		HashCount:      hashCount,
		SortedSetCount: sortedCount,
		IsMigrated:     sortedCount > 0,
		IsComplete:     sortedCount >= hashCount,
	}, nil
}

// MigrateTimestampsToSortedSet is a one-shot, idempotent migration: if the
// sorted set already exists it is a no-op, otherwise every entry in the
// legacy timestamp hash is inserted into the sorted set with the stored
// ticks as its score.
func (m *MetadataStore) MigrateTimestampsToSortedSet(ctx context.Context) error {
	exists, err := m.backend.KeyExists(ctx, m.TimestampsSortedKey())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	all, err := m.backend.HashGetAll(ctx, m.TimestampsKey())
	if err != nil {
		return err
	}
	for field, raw := range all {
		ticks, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			continue
		}
		if err := m.backend.SortedSetAdd(ctx, m.TimestampsSortedKey(), float64(ticks), field); err != nil {
			return err
		}
	}
	return nil
}
