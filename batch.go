package typedcache

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"go.uber.org/atomic"

	"github.com/arnavsood/typedcache/store"
)

// DefaultBatchWindow is how long an entry must sit untouched before it is
// eligible for a batch-update notification.
const DefaultBatchWindow = 5 * time.Second

// DefaultBatchInterval is the recommended period between batch sweeps.
const DefaultBatchInterval = time.Second

// BatchCoordinator periodically collects entries written since the last
// successful batch and dispatches them as a single snapshot (§4.6). It
// prefers the timestamps-sorted representation once migrated, falling back
// to a full hash scan plus in-memory filter against the legacy hash.
type BatchCoordinator[K, V any] struct {
	name       string
	backend    store.BackingStore
	metadata   *MetadataStore
	keyCodec   KeyCodec[K]
	valueCodec ValueCodec[V]
	events     *EventBus[K, V]
	logger     *slog.Logger
	window     time.Duration
	interval   time.Duration
	metrics    MetricsRecorder

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBatchCoordinator constructs a coordinator for one map.
func NewBatchCoordinator[K, V any](
	name string,
	backend store.BackingStore,
	metadata *MetadataStore,
	keyCodec KeyCodec[K],
	valueCodec ValueCodec[V],
	events *EventBus[K, V],
	logger *slog.Logger,
	window, interval time.Duration,
) *BatchCoordinator[K, V] {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	if interval <= 0 {
		interval = DefaultBatchInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchCoordinator[K, V]{
		name:       name,
		backend:    backend,
		metadata:   metadata,
		keyCodec:   keyCodec,
		valueCodec: valueCodec,
		events:     events,
		logger:     logger,
		window:     window,
		interval:   interval,
		metrics:    noopMetricsRecorder{},
	}
}

// Start begins the coordinator's ticker.
func (c *BatchCoordinator[K, V]) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx)
}

// Stop cancels the coordinator's ticker and waits for its goroutine to exit.
func (c *BatchCoordinator[K, V]) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *BatchCoordinator[K, V]) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *BatchCoordinator[K, V]) tick(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	defer c.running.Store(false)

	lastBatch, err := c.metadata.GetLastBatch(ctx)
	if err != nil {
		c.logger.Error("typedcache: batch coordinator could not read last-batch marker", "map", c.name, "err", err)
		return
	}

	now := time.Now().UTC()
	cutoff := ticksOf(now.Add(-c.window))

	fields, err := c.collectFields(ctx, lastBatch, cutoff)
	if err != nil {
		c.logger.Error("typedcache: batch coordinator sweep aborted", "map", c.name, "err", err)
		return
	}
	if len(fields) == 0 {
		return
	}

	batch := make([]BatchEntry[K, V], 0, len(fields))
	for _, field := range fields {
		key, err := c.keyCodec.Deserialize(field)
		if err != nil {
			c.logger.Warn("typedcache: skipping batch candidate with undecodable key", "map", c.name, "err", &KeyDecodeError{Field: field, Err: err})
			continue
		}
		raw, ok, err := c.backend.HashGet(ctx, c.metadata.ValuesKey(), field)
		if err != nil {
			c.logger.Warn("typedcache: skipping batch candidate", "map", c.name, "field", field, "err", err)
			continue
		}
		if !ok {
			// Removed before it could be emitted; not an error.
			continue
		}
		value, err := c.valueCodec.Deserialize(raw)
		if err != nil {
			c.logger.Warn("typedcache: skipping batch candidate with undecodable value", "map", c.name, "err", &ValueDecodeError{Field: field, Err: err})
			continue
		}
		batch = append(batch, BatchEntry[K, V]{Key: key, Value: value})
	}
	if len(batch) == 0 {
		return
	}

	if err := c.metadata.SetLastBatch(ctx, ticksOf(now)); err != nil {
		c.logger.Error("typedcache: batch coordinator could not advance last-batch marker", "map", c.name, "err", err)
		return
	}

	c.events.DispatchBatch(ctx, batch)
	c.metrics.ObserveBatchEmission(c.name, len(batch))
	if c.valueCodec.SupportsPooling() {
		for _, e := range batch {
			c.valueCodec.ReturnToPool(e.Value)
		}
	}
}

// collectFields returns the fields touched after lastBatch and at or before
// cutoff, oldest first, using the sorted-set representation when it exists
// and falling back to a scan of the legacy hash otherwise.
func (c *BatchCoordinator[K, V]) collectFields(ctx context.Context, lastBatch, cutoff int64) ([]string, error) {
	migrated, err := c.backend.KeyExists(ctx, c.metadata.TimestampsSortedKey())
	if err != nil {
		return nil, err
	}
	if migrated {
		return c.backend.SortedSetRangeByScore(ctx, c.metadata.TimestampsSortedKey(), float64(lastBatch), float64(cutoff), true)
	}
	return c.collectFieldsLegacy(ctx, lastBatch, cutoff)
}

func (c *BatchCoordinator[K, V]) collectFieldsLegacy(ctx context.Context, lastBatch, cutoff int64) ([]string, error) {
	all, err := c.backend.HashGetAll(ctx, c.metadata.TimestampsKey())
	if err != nil {
		return nil, err
	}

	type candidate struct {
		field string
		ticks int64
	}
	candidates := make([]candidate, 0, len(all))
	for field, raw := range all {
		ticks, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			continue
		}
		if ticks > lastBatch && ticks <= cutoff {
			candidates = append(candidates, candidate{field: field, ticks: ticks})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ticks < candidates[j].ticks })

	fields := make([]string, len(candidates))
	for i, cand := range candidates {
		fields[i] = cand.field
	}
	return fields, nil
}
