package typedcache

import (
	"context"
	"log/slog"
	"sync"
)

// EntryHandler is the shape shared by add, update, remove, and expired
// handlers: they receive the key and value involved in the event.
type EntryHandler[K, V any] func(ctx context.Context, key K, value V) error

// ClearHandler is invoked once per Clear call.
type ClearHandler func(ctx context.Context) error

// BatchEntry is one (key, value) pair included in a batch-update
// notification.
type BatchEntry[K, V any] struct {
	Key   K
	Value V
}

// BatchHandler receives a full batch-update snapshot, valid for the
// duration of the call.
type BatchHandler[K, V any] func(ctx context.Context, entries []BatchEntry[K, V]) error

// EventBus registers and dispatches add/update/remove/clear/expired/batch
// handlers for one map. Dispatch is serialized behind a single mutex so a
// handler never observes more than one event at a time and always sees
// handlers invoked in registration order; a handler that errors or panics
// is logged and does not prevent the remaining handlers from running.
type EventBus[K, V any] struct {
	mu     sync.Mutex
	logger *slog.Logger

	onAdd     []EntryHandler[K, V]
	onUpdate  []EntryHandler[K, V]
	onRemove  []EntryHandler[K, V]
	onExpired []EntryHandler[K, V]
	onClear   []ClearHandler
	onBatch   []BatchHandler[K, V]
}

// NewEventBus returns an EventBus logging handler failures to logger (or
// slog.Default() if nil).
func NewEventBus[K, V any](logger *slog.Logger) *EventBus[K, V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus[K, V]{logger: logger}
}

func (b *EventBus[K, V]) lock()   { b.mu.Lock() }
func (b *EventBus[K, V]) unlock() { b.mu.Unlock() }

func (b *EventBus[K, V]) OnAdd(h EntryHandler[K, V]) {
	b.lock()
	defer b.unlock()
	b.onAdd = append(b.onAdd, h)
}

func (b *EventBus[K, V]) OnUpdate(h EntryHandler[K, V]) {
	b.lock()
	defer b.unlock()
	b.onUpdate = append(b.onUpdate, h)
}

func (b *EventBus[K, V]) OnRemove(h EntryHandler[K, V]) {
	b.lock()
	defer b.unlock()
	b.onRemove = append(b.onRemove, h)
}

func (b *EventBus[K, V]) OnExpired(h EntryHandler[K, V]) {
	b.lock()
	defer b.unlock()
	b.onExpired = append(b.onExpired, h)
}

func (b *EventBus[K, V]) OnClear(h ClearHandler) {
	b.lock()
	defer b.unlock()
	b.onClear = append(b.onClear, h)
}

func (b *EventBus[K, V]) OnBatchUpdate(h BatchHandler[K, V]) {
	b.lock()
	defer b.unlock()
	b.onBatch = append(b.onBatch, h)
}

func (b *EventBus[K, V]) DispatchAdd(ctx context.Context, key K, value V) {
	b.lock()
	defer b.unlock()
	for _, h := range b.onAdd {
		b.invokeEntry(ctx, "add", h, key, value)
	}
}

func (b *EventBus[K, V]) DispatchUpdate(ctx context.Context, key K, value V) {
	b.lock()
	defer b.unlock()
	for _, h := range b.onUpdate {
		b.invokeEntry(ctx, "update", h, key, value)
	}
}

func (b *EventBus[K, V]) DispatchRemove(ctx context.Context, key K, value V) {
	b.lock()
	defer b.unlock()
	for _, h := range b.onRemove {
		b.invokeEntry(ctx, "remove", h, key, value)
	}
}

func (b *EventBus[K, V]) DispatchExpired(ctx context.Context, key K, value V) {
	b.lock()
	defer b.unlock()
	for _, h := range b.onExpired {
		b.invokeEntry(ctx, "expired", h, key, value)
	}
}

func (b *EventBus[K, V]) DispatchClear(ctx context.Context) {
	b.lock()
	defer b.unlock()
	for _, h := range b.onClear {
		func() {
			defer b.recoverPanic("clear")
			if err := h(ctx); err != nil {
				b.logger.Error("typedcache: clear handler returned an error", "err", err)
			}
		}()
	}
}

func (b *EventBus[K, V]) DispatchBatch(ctx context.Context, entries []BatchEntry[K, V]) {
	b.lock()
	defer b.unlock()
	for _, h := range b.onBatch {
		func() {
			defer b.recoverPanic("batchUpdate")
			if err := h(ctx, entries); err != nil {
				b.logger.Error("typedcache: batch handler returned an error", "err", err)
			}
		}()
	}
}

func (b *EventBus[K, V]) invokeEntry(ctx context.Context, kind string, h EntryHandler[K, V], key K, value V) {
	defer b.recoverPanic(kind)
	if err := h(ctx, key, value); err != nil {
		b.logger.Error("typedcache: event handler returned an error", "kind", kind, "err", err)
	}
}

func (b *EventBus[K, V]) recoverPanic(kind string) {
	if r := recover(); r != nil {
		b.logger.Error("typedcache: event handler panicked", "kind", kind, "panic", r)
	}
}
