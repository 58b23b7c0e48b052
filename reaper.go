package typedcache

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.uber.org/atomic"

	"github.com/arnavsood/typedcache/store"
)

// DefaultReapInterval is the recommended period between idle-TTL sweeps.
const DefaultReapInterval = 10 * time.Second

// ExpirationReaper is the per-map periodic timer that evicts entries idle
// past the map's configured TTL (§4.5). It is independent of the
// BatchCoordinator; the two run on their own tickers.
type ExpirationReaper[K, V any] struct {
	name       string
	backend    store.BackingStore
	metadata   *MetadataStore
	keyCodec   KeyCodec[K]
	valueCodec ValueCodec[V]
	events     *EventBus[K, V]
	logger     *slog.Logger
	interval   time.Duration
	metrics    MetricsRecorder

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewExpirationReaper constructs a reaper for one map. Call Start to begin
// ticking and Stop to release its goroutine.
func NewExpirationReaper[K, V any](
	name string,
	backend store.BackingStore,
	metadata *MetadataStore,
	keyCodec KeyCodec[K],
	valueCodec ValueCodec[V],
	events *EventBus[K, V],
	logger *slog.Logger,
	interval time.Duration,
) *ExpirationReaper[K, V] {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirationReaper[K, V]{
		name:       name,
		backend:    backend,
		metadata:   metadata,
		keyCodec:   keyCodec,
		valueCodec: valueCodec,
		events:     events,
		logger:     logger,
		interval:   interval,
		metrics:    noopMetricsRecorder{},
	}
}

// Start begins the reaper's ticker. ctx bounds its lifetime in addition to
// Stop.
func (r *ExpirationReaper[K, V]) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx)
}

// Stop cancels the reaper's ticker and waits for its goroutine to exit.
func (r *ExpirationReaper[K, V]) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *ExpirationReaper[K, V]) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *ExpirationReaper[K, V]) tick(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		return // previous tick still draining a large candidate set
	}
	defer r.running.Store(false)

	ttl, ok, err := r.metadata.GetTTL(ctx)
	if err != nil {
		r.logger.Error("typedcache: reaper could not read ttl-config", "map", r.name, "err", err)
		return
	}
	if !ok {
		return
	}

	threshold := float64(time.Now().Add(-ttl).Unix())
	candidates, err := r.backend.SortedSetRangeByScore(ctx, r.metadata.AccessTimeKey(), math.Inf(-1), threshold, false)
	if err != nil {
		r.logger.Error("typedcache: reaper sweep aborted", "map", r.name, "err", err)
		return
	}

	evicted := 0
	for _, field := range candidates {
		ok, err := r.reapOne(ctx, field)
		if err != nil {
			r.logger.Warn("typedcache: reaper could not evict candidate", "map", r.name, "field", field, "err", err)
			continue
		}
		if ok {
			evicted++
		}
	}
	if evicted > 0 {
		r.metrics.ObserveReapEviction(r.name, evicted)
	}
}

// reapOne evicts the entry at field, reporting whether it actually removed
// a value (as opposed to clearing a stray access-time entry).
func (r *ExpirationReaper[K, V]) reapOne(ctx context.Context, field string) (bool, error) {
	val, ok, err := r.backend.HashGet(ctx, r.metadata.ValuesKey(), field)
	if err != nil {
		return false, err
	}
	if !ok {
		// Stray access-time entry with no backing value; clean it up.
		return false, r.backend.SortedSetRemove(ctx, r.metadata.AccessTimeKey(), field)
	}

	key, keyErr := r.keyCodec.Deserialize(field)
	if keyErr != nil {
		r.logger.Warn("typedcache: skipping reap candidate with undecodable key", "map", r.name, "err", &KeyDecodeError{Field: field, Err: keyErr})
		return false, nil
	}

	value, valErr := r.valueCodec.Deserialize(val)
	if err := r.deleteEntry(ctx, field); err != nil {
		return false, err
	}
	if valErr != nil {
		r.logger.Warn("typedcache: evicted entry with undecodable value; no events emitted", "map", r.name, "err", &ValueDecodeError{Field: field, Err: valErr})
		return true, nil
	}

	r.events.DispatchExpired(ctx, key, value)
	r.events.DispatchRemove(ctx, key, value)
	if r.valueCodec.SupportsPooling() {
		r.valueCodec.ReturnToPool(value)
	}
	return true, nil
}

func (r *ExpirationReaper[K, V]) deleteEntry(ctx context.Context, field string) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(r.backend.HashDelete(ctx, r.metadata.ValuesKey(), field))
	record(r.backend.SortedSetRemove(ctx, r.metadata.AccessTimeKey(), field))
	record(r.backend.HashDelete(ctx, r.metadata.VersionsKey(), field))
	record(r.backend.HashDelete(ctx, r.metadata.TimestampsKey(), field))
	record(r.backend.SortedSetRemove(ctx, r.metadata.TimestampsSortedKey(), field))
	return firstErr
}
