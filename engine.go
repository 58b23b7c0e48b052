package typedcache

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/arnavsood/typedcache/store"
)

// unfilteredScanPageSize and filteredScanPageSize are the server-side page
// sizes GetEntriesPaged uses for its two access patterns (§4.4).
const (
	unfilteredScanPageSize = 100
	filteredScanPageSize   = 1000
)

// EntryRow is one row of a dashboard listing.
type EntryRow struct {
	KeyString         string
	DisplayValue      string
	ShortVersion      string
	LastModified      string
	LastModifiedTicks int64
}

// PagedResult is the response shape for GetEntriesPaged.
type PagedResult struct {
	Rows       []EntryRow
	Page       int
	PageSize   int
	TotalCount int64
	TotalPages int
	HasNext    bool
}

// MapHandle is the consumer-facing surface of a registered map (§6.2).
type MapHandle[K, V any] interface {
	GetValue(ctx context.Context, key K) (V, bool, error)
	SetValue(ctx context.Context, key K, value V) error
	Clear(ctx context.Context) error

	OnAdd(fn EntryHandler[K, V])
	OnUpdate(fn EntryHandler[K, V])
	OnRemove(fn EntryHandler[K, V])
	OnClear(fn ClearHandler)
	OnExpired(fn EntryHandler[K, V])
	OnBatchUpdate(fn BatchHandler[K, V])

	GetEntriesPaged(ctx context.Context, page, pageSize int, searchPattern string) (PagedResult, error)
	GetAllEntriesForDashboard(ctx context.Context) ([]EntryRow, error)

	GetItemTtl(ctx context.Context) (*time.Duration, error)
	SetItemTtl(ctx context.Context, d *time.Duration) error

	MigrateTimestampsToSortedSet(ctx context.Context) error
	GetMigrationStatus(ctx context.Context) (MigrationStatus, error)

	Close()
}

// MapEngine implements MapHandle over a BackingStore, binding together a
// MetadataStore, codecs, an EventBus, and the reaper/batch background
// goroutines for one named map.
type MapEngine[K, V any] struct {
	name       string
	backend    store.BackingStore
	metadata   *MetadataStore
	keyCodec   KeyCodec[K]
	valueCodec ValueCodec[V]
	events     *EventBus[K, V]
	logger     *slog.Logger
	metrics    MetricsRecorder

	reaper *ExpirationReaper[K, V]
	batch  *BatchCoordinator[K, V]
}

// EngineOptions configures the background goroutines attached to a
// MapEngine. Zero values fall back to the package defaults.
type EngineOptions struct {
	ReapInterval  time.Duration
	BatchWindow   time.Duration
	BatchInterval time.Duration
	Logger        *slog.Logger
	Metrics       MetricsRecorder
}

// NewMapEngine constructs and starts a MapEngine for one named map.
func NewMapEngine[K, V any](
	ctx context.Context,
	name string,
	backend store.BackingStore,
	keyCodec KeyCodec[K],
	valueCodec ValueCodec[V],
	opts EngineOptions,
) *MapEngine[K, V] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetricsRecorder{}
	}
	metadata := NewMetadataStore(backend, name)
	events := NewEventBus[K, V](logger)
	reaper := NewExpirationReaper[K, V](name, backend, metadata, keyCodec, valueCodec, events, logger, opts.ReapInterval)
	reaper.metrics = metrics
	batch := NewBatchCoordinator[K, V](name, backend, metadata, keyCodec, valueCodec, events, logger, opts.BatchWindow, opts.BatchInterval)
	batch.metrics = metrics

	e := &MapEngine[K, V]{
		name:       name,
		backend:    backend,
		metadata:   metadata,
		keyCodec:   keyCodec,
		valueCodec: valueCodec,
		events:     events,
		logger:     logger,
		metrics:    metrics,
		reaper:     reaper,
		batch:      batch,
	}
	e.reaper.Start(ctx)
	e.batch.Start(ctx)
	return e
}

// GetValue reads the value hash at key. On hit it refreshes access-time;
// it never touches the timestamp (last-write remains unchanged). A
// codec failure is logged and reported as a miss, not an error.
func (e *MapEngine[K, V]) GetValue(ctx context.Context, key K) (value V, ok bool, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveOperation(e.name, "get", time.Since(start), err) }()

	var zero V
	field, serr := e.keyCodec.Serialize(key)
	if serr != nil {
		return zero, false, serr
	}

	raw, exists, gerr := e.backend.HashGet(ctx, e.metadata.ValuesKey(), field)
	if gerr != nil {
		err = wrapBackendErr(ctx, "GetValue", gerr)
		return zero, false, err
	}
	if !exists {
		return zero, false, nil
	}

	decoded, derr := e.valueCodec.Deserialize(raw)
	if derr != nil {
		e.logger.Warn("typedcache: stored value failed to decode; reporting miss", "map", e.name, "err", &ValueDecodeError{Field: field, Err: derr})
		return zero, false, nil
	}

	now := time.Now()
	if aerr := e.backend.SortedSetAdd(ctx, e.metadata.AccessTimeKey(), float64(now.Unix()), field); aerr != nil {
		e.logger.Warn("typedcache: could not refresh access-time", "map", e.name, "field", field, "err", aerr)
	}
	return decoded, true, nil
}

// SetValue writes value at key, rotating its version and refreshing both
// access-time and the timestamp representations, then emits add or update
// depending on whether the key pre-existed.
func (e *MapEngine[K, V]) SetValue(ctx context.Context, key K, value V) (err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveOperation(e.name, "set", time.Since(start), err) }()

	field, err := e.keyCodec.Serialize(key)
	if err != nil {
		return err
	}
	raw, err := e.valueCodec.Serialize(value)
	if err != nil {
		return err
	}

	_, existed, err := e.backend.HashGet(ctx, e.metadata.ValuesKey(), field)
	if err != nil {
		return wrapBackendErr(ctx, "SetValue", err)
	}

	if err := e.backend.HashSet(ctx, e.metadata.ValuesKey(), field, raw); err != nil {
		return wrapBackendErr(ctx, "SetValue", err)
	}

	now := time.Now()
	if err := e.backend.SortedSetAdd(ctx, e.metadata.AccessTimeKey(), float64(now.Unix()), field); err != nil {
		return wrapBackendErr(ctx, "SetValue", err)
	}

	ticks := ticksOf(now)
	if err := e.backend.HashSet(ctx, e.metadata.TimestampsKey(), field, []byte(formatTicks(ticks))); err != nil {
		return wrapBackendErr(ctx, "SetValue", err)
	}
	if err := e.backend.SortedSetAdd(ctx, e.metadata.TimestampsSortedKey(), float64(ticks), field); err != nil {
		return wrapBackendErr(ctx, "SetValue", err)
	}

	version := NewVersion()
	if err := e.backend.HashSet(ctx, e.metadata.VersionsKey(), field, []byte(version.String())); err != nil {
		return wrapBackendErr(ctx, "SetValue", err)
	}

	if existed {
		e.events.DispatchUpdate(ctx, key, value)
	} else {
		e.events.DispatchAdd(ctx, key, value)
	}
	return nil
}

// Clear removes the five map keys (values, access-time, versions, both
// timestamp representations), leaving ttl-config and last-batch intact.
func (e *MapEngine[K, V]) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveOperation(e.name, "clear", time.Since(start), err) }()

	for _, key := range []string{
		e.metadata.ValuesKey(),
		e.metadata.AccessTimeKey(),
		e.metadata.VersionsKey(),
		e.metadata.TimestampsKey(),
		e.metadata.TimestampsSortedKey(),
	} {
		if err := e.backend.KeyDelete(ctx, key); err != nil {
			return wrapBackendErr(ctx, "Clear", err)
		}
	}
	e.events.DispatchClear(ctx)
	return nil
}

func (e *MapEngine[K, V]) OnAdd(fn EntryHandler[K, V])         { e.events.OnAdd(fn) }
func (e *MapEngine[K, V]) OnUpdate(fn EntryHandler[K, V])      { e.events.OnUpdate(fn) }
func (e *MapEngine[K, V]) OnRemove(fn EntryHandler[K, V])      { e.events.OnRemove(fn) }
func (e *MapEngine[K, V]) OnClear(fn ClearHandler)             { e.events.OnClear(fn) }
func (e *MapEngine[K, V]) OnExpired(fn EntryHandler[K, V])     { e.events.OnExpired(fn) }
func (e *MapEngine[K, V]) OnBatchUpdate(fn BatchHandler[K, V]) { e.events.OnBatchUpdate(fn) }

// GetItemTtl and SetItemTtl read/write the map's idle-TTL config.
func (e *MapEngine[K, V]) GetItemTtl(ctx context.Context) (*time.Duration, error) {
	d, ok, err := e.metadata.GetTTL(ctx)
	if err != nil {
		return nil, wrapBackendErr(ctx, "GetItemTtl", err)
	}
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (e *MapEngine[K, V]) SetItemTtl(ctx context.Context, d *time.Duration) error {
	if err := e.metadata.SetTTL(ctx, d); err != nil {
		return wrapBackendErr(ctx, "SetItemTtl", err)
	}
	return nil
}

func (e *MapEngine[K, V]) MigrateTimestampsToSortedSet(ctx context.Context) error {
	if err := e.metadata.MigrateTimestampsToSortedSet(ctx); err != nil {
		return wrapBackendErr(ctx, "MigrateTimestampsToSortedSet", err)
	}
	return nil
}

func (e *MapEngine[K, V]) GetMigrationStatus(ctx context.Context) (MigrationStatus, error) {
	status, err := e.metadata.GetMigrationStatus(ctx)
	if err != nil {
		return MigrationStatus{}, wrapBackendErr(ctx, "GetMigrationStatus", err)
	}
	return status, nil
}

// Close stops the reaper and batch coordinator goroutines.
func (e *MapEngine[K, V]) Close() {
	e.reaper.Stop()
	e.batch.Stop()
}

// GetAllEntriesForDashboard returns every decodable entry, unpaginated.
func (e *MapEngine[K, V]) GetAllEntriesForDashboard(ctx context.Context) ([]EntryRow, error) {
	cursor := e.backend.HashScan(ctx, e.metadata.ValuesKey(), "", unfilteredScanPageSize)
	var rows []EntryRow
	for cursor.Next(ctx) {
		row, ok, err := e.rowFor(ctx, cursor.Field(), cursor.Value())
		if err != nil {
			return nil, wrapBackendErr(ctx, "GetAllEntriesForDashboard", err)
		}
		if ok {
			rows = append(rows, row)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, wrapBackendErr(ctx, "GetAllEntriesForDashboard", err)
	}
	return rows, nil
}

// GetEntriesPaged implements the two enumeration strategies of §4.4: an
// unfiltered cursor scan that skips to the requested page, and a filtered
// full scan that materialises every matching row before paginating in
// memory.
func (e *MapEngine[K, V]) GetEntriesPaged(ctx context.Context, page, pageSize int, searchPattern string) (PagedResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	if searchPattern == "" {
		return e.pageUnfiltered(ctx, page, pageSize)
	}
	return e.pageFiltered(ctx, page, pageSize, searchPattern)
}

func (e *MapEngine[K, V]) pageUnfiltered(ctx context.Context, page, pageSize int) (PagedResult, error) {
	totalCount, err := e.backend.HashLength(ctx, e.metadata.ValuesKey())
	if err != nil {
		return PagedResult{}, wrapBackendErr(ctx, "GetEntriesPaged", err)
	}

	toSkip := (page - 1) * pageSize
	cursor := e.backend.HashScan(ctx, e.metadata.ValuesKey(), "", unfilteredScanPageSize)
	rows := make([]EntryRow, 0, pageSize)
	skipped := 0
	for cursor.Next(ctx) {
		row, ok, err := e.rowFor(ctx, cursor.Field(), cursor.Value())
		if err != nil {
			return PagedResult{}, wrapBackendErr(ctx, "GetEntriesPaged", err)
		}
		if !ok {
			continue
		}
		if skipped < toSkip {
			skipped++
			continue
		}
		rows = append(rows, row)
		if len(rows) >= pageSize {
			break
		}
	}
	if err := cursor.Err(); err != nil {
		return PagedResult{}, wrapBackendErr(ctx, "GetEntriesPaged", err)
	}

	return buildPagedResult(rows, page, pageSize, totalCount), nil
}

func (e *MapEngine[K, V]) pageFiltered(ctx context.Context, page, pageSize int, pattern string) (PagedResult, error) {
	needle := strings.ToLower(pattern)
	cursor := e.backend.HashScan(ctx, e.metadata.ValuesKey(), "", filteredScanPageSize)
	var matches []EntryRow
	for cursor.Next(ctx) {
		row, ok, err := e.rowFor(ctx, cursor.Field(), cursor.Value())
		if err != nil {
			return PagedResult{}, wrapBackendErr(ctx, "GetEntriesPaged", err)
		}
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(row.KeyString), needle) {
			matches = append(matches, row)
		}
	}
	if err := cursor.Err(); err != nil {
		return PagedResult{}, wrapBackendErr(ctx, "GetEntriesPaged", err)
	}

	start := (page - 1) * pageSize
	if start > len(matches) {
		start = len(matches)
	}
	end := start + pageSize
	if end > len(matches) {
		end = len(matches)
	}

	rows := make([]EntryRow, end-start)
	copy(rows, matches[start:end])
	return buildPagedResult(rows, page, pageSize, int64(len(matches))), nil
}

func buildPagedResult(rows []EntryRow, page, pageSize int, totalCount int64) PagedResult {
	totalPages := int((totalCount + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	return PagedResult{
		Rows:       rows,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// rowFor decodes one hash field/value pair into a dashboard row, reading
// its version and timestamp metadata. A key-decode failure causes the row
// to be skipped (ok=false) rather than aborting the whole scan.
func (e *MapEngine[K, V]) rowFor(ctx context.Context, field string, raw []byte) (EntryRow, bool, error) {
	if _, err := e.keyCodec.Deserialize(field); err != nil {
		e.logger.Warn("typedcache: skipping undecodable key during enumeration", "map", e.name, "err", &KeyDecodeError{Field: field, Err: err})
		return EntryRow{}, false, nil
	}

	value, err := e.valueCodec.Deserialize(raw)
	if err != nil {
		e.logger.Warn("typedcache: skipping undecodable value during enumeration", "map", e.name, "err", &ValueDecodeError{Field: field, Err: err})
		return EntryRow{}, false, nil
	}
	display := e.valueCodec.ToDisplayString(value)
	if e.valueCodec.SupportsPooling() {
		e.valueCodec.ReturnToPool(value)
	}

	versionHex, _, err := e.backend.HashGet(ctx, e.metadata.VersionsKey(), field)
	if err != nil {
		return EntryRow{}, false, err
	}
	version, _ := ParseVersion(string(versionHex))

	tsRaw, _, err := e.backend.HashGet(ctx, e.metadata.TimestampsKey(), field)
	if err != nil {
		return EntryRow{}, false, err
	}
	ticks := parseTicksOrZero(tsRaw)

	return EntryRow{
		KeyString:         field,
		DisplayValue:      display,
		ShortVersion:      version.Short(),
		LastModified:      FormatTimeAgo(timeFromTicks(ticks)),
		LastModifiedTicks: ticks,
	}, true, nil
}

func wrapBackendErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return &CancelledError{Op: op, Err: ctx.Err()}
	}
	return &BackendUnavailableError{Op: op, Err: err}
}
