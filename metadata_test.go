package typedcache

import (
	"context"
	"testing"
	"time"

	"github.com/arnavsood/typedcache/store/memory"
)

func TestMetadataStore_KeyNames(t *testing.T) {
	m := NewMetadataStore(memory.New(), "widgets")

	cases := map[string]string{
		"map:widgets":                                m.ValuesKey(),
		"map:widgets:access-time":                     m.AccessTimeKey(),
		"map:widgets:__meta:versions":                 m.VersionsKey(),
		"map:widgets:__meta:timestamps":                m.TimestampsKey(),
		"map:widgets:__meta:timestamps-sorted":        m.TimestampsSortedKey(),
		"map:widgets:__meta:ttl-config":                m.TTLConfigKey(),
		"map:widgets:__meta:timestamps:last-batch":    m.LastBatchKey(),
	}
	for want, got := range cases {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestMetadataStore_TTLRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMetadataStore(memory.New(), "widgets")

	if _, ok, err := m.GetTTL(ctx); err != nil || ok {
		t.Fatalf("expected no ttl configured initially, ok=%v err=%v", ok, err)
	}

	d := 2 * time.Minute
	if err := m.SetTTL(ctx, &d); err != nil {
		t.Fatal(err)
	}
	got, ok, err := m.GetTTL(ctx)
	if err != nil || !ok {
		t.Fatalf("expected ttl configured, ok=%v err=%v", ok, err)
	}
	if got != d {
		t.Errorf("got %v, want %v", got, d)
	}

	if err := m.SetTTL(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := m.GetTTL(ctx); err != nil || ok {
		t.Fatalf("expected ttl cleared, ok=%v err=%v", ok, err)
	}
}

func TestMetadataStore_LastBatchDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	m := NewMetadataStore(memory.New(), "widgets")

	got, err := m.GetLastBatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("got %d, want 0", got)
	}

	if err := m.SetLastBatch(ctx, 12345); err != nil {
		t.Fatal(err)
	}
	got, err = m.GetLastBatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != 12345 {
		t.Errorf("got %d, want 12345", got)
	}
}

func TestMetadataStore_MigrateTimestampsToSortedSet(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	m := NewMetadataStore(backend, "widgets")

	for i := 0; i < 10; i++ {
		field := string(rune('a' + i))
		if err := backend.HashSet(ctx, m.TimestampsKey(), field, []byte(formatTicks(int64(i)))); err != nil {
			t.Fatal(err)
		}
	}

	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.IsMigrated {
		t.Fatal("expected isMigrated=false before migration")
	}
	if status.HashCount != 10 {
		t.Errorf("hash count = %d, want 10", status.HashCount)
	}

	if err := m.MigrateTimestampsToSortedSet(ctx); err != nil {
		t.Fatal(err)
	}
	count, err := backend.SortedSetLength(ctx, m.TimestampsSortedKey())
	if err != nil {
		t.Fatal(err)
	}
	if count != 10 {
		t.Errorf("sorted set length = %d, want 10", count)
	}

	// A second run is a no-op: add an eleventh legacy entry and confirm it
	// does not appear in the sorted set once migration is already "done".
	if err := backend.HashSet(ctx, m.TimestampsKey(), "z", []byte(formatTicks(99))); err != nil {
		t.Fatal(err)
	}
	if err := m.MigrateTimestampsToSortedSet(ctx); err != nil {
		t.Fatal(err)
	}
	count, err = backend.SortedSetLength(ctx, m.TimestampsSortedKey())
	if err != nil {
		t.Fatal(err)
	}
	if count != 10 {
		t.Errorf("sorted set length after second migrate = %d, want unchanged 10", count)
	}
}
