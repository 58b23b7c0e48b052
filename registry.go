package typedcache

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/arnavsood/typedcache/store"
)

// Registry is the process-wide catalogue of named maps. Create registers a
// map definition; its MapEngine is materialised lazily on first Get.
type Registry struct {
	backend store.BackingStore
	logger  *slog.Logger
	opts    EngineOptions

	mu   sync.Mutex
	defs map[string]*mapDefinition
}

type mapDefinition struct {
	keyType   reflect.Type
	valueType reflect.Type
	newEngine func(ctx context.Context) (any, error)

	once   sync.Once
	engine any
	err    error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the slog.Logger every map engine created by this registry
// uses.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithReapInterval sets the idle-TTL sweep period for every map engine
// created by this registry.
func WithReapInterval(d time.Duration) Option {
	return func(r *Registry) { r.opts.ReapInterval = d }
}

// WithBatchWindow sets the batch-update coalescing window.
func WithBatchWindow(d time.Duration) Option {
	return func(r *Registry) { r.opts.BatchWindow = d }
}

// WithBatchInterval sets the batch-sweep tick period.
func WithBatchInterval(d time.Duration) Option {
	return func(r *Registry) { r.opts.BatchInterval = d }
}

// WithMetrics attaches a MetricsRecorder (such as a *metrics.Collector)
// that every map engine created by this registry reports to.
func WithMetrics(m MetricsRecorder) Option {
	return func(r *Registry) { r.opts.Metrics = m }
}

// NewRegistry returns a Registry backed by backend.
func NewRegistry(backend store.BackingStore, opts ...Option) *Registry {
	r := &Registry{
		backend: backend,
		logger:  slog.Default(),
		defs:    make(map[string]*mapDefinition),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.opts.Logger = r.logger
	return r
}

// Create registers a map definition under name with the given key and value
// codecs. Re-registration with a different K/V pair fails with
// MapTypeMismatchError; re-registration with the same K/V pair is a no-op.
func Create[K, V any](r *Registry, name string, keyCodec KeyCodec[K], valueCodec ValueCodec[V]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kt := reflect.TypeOf((*K)(nil)).Elem()
	vt := reflect.TypeOf((*V)(nil)).Elem()

	if existing, ok := r.defs[name]; ok {
		if existing.keyType != kt || existing.valueType != vt {
			return &MapTypeMismatchError{Name: name}
		}
		return nil
	}

	r.defs[name] = &mapDefinition{
		keyType:   kt,
		valueType: vt,
		newEngine: func(ctx context.Context) (any, error) {
			return NewMapEngine[K, V](ctx, name, r.backend, keyCodec, valueCodec, r.opts), nil
		},
	}
	return nil
}

// Get returns the map handle for name, materialising its MapEngine on first
// call. Fails with MapNotRegisteredError if name was never Create'd, or
// MapTypeMismatchError if K/V do not match its registration.
func Get[K, V any](ctx context.Context, r *Registry, name string) (MapHandle[K, V], error) {
	r.mu.Lock()
	def, ok := r.defs[name]
	r.mu.Unlock()
	if !ok {
		return nil, &MapNotRegisteredError{Name: name}
	}

	kt := reflect.TypeOf((*K)(nil)).Elem()
	vt := reflect.TypeOf((*V)(nil)).Elem()
	if def.keyType != kt || def.valueType != vt {
		return nil, &MapTypeMismatchError{Name: name}
	}

	def.once.Do(func() {
		def.engine, def.err = def.newEngine(ctx)
	})
	if def.err != nil {
		return nil, def.err
	}
	engine, ok := def.engine.(MapHandle[K, V])
	if !ok {
		return nil, &MapTypeMismatchError{Name: name}
	}
	return engine, nil
}

// GetOrCreate is a convenience wrapper that Creates name if it is unknown,
// then returns its handle.
func GetOrCreate[K, V any](ctx context.Context, r *Registry, name string, keyCodec KeyCodec[K], valueCodec ValueCodec[V]) (MapHandle[K, V], error) {
	if err := Create[K, V](r, name, keyCodec, valueCodec); err != nil {
		return nil, err
	}
	return Get[K, V](ctx, r, name)
}

// bucketKey is the sole implicit field name used by single-value namespaces
// created with CreateBucket.
const bucketKey = "value"

// CreateBucket registers name as a degenerate map with one implicit key,
// per §4.7. The returned handle is an ordinary string-keyed MapHandle whose
// GetValue/SetValue use the key they are given; wrap it with NewBucket to
// have every read and write address bucketKey.
func CreateBucket[V any](ctx context.Context, r *Registry, name string, valueCodec ValueCodec[V]) (MapHandle[string, V], error) {
	return GetOrCreate[string, V](ctx, r, name, NewJSONKeyCodec[string](), valueCodec)
}

// Bucket is a thin convenience wrapper around a single-key MapHandle for
// callers that do not want to thread a key through GetValue/SetValue.
type Bucket[V any] struct {
	handle MapHandle[string, V]
}

// NewBucket wraps handle, which must have been obtained from CreateBucket.
func NewBucket[V any](handle MapHandle[string, V]) *Bucket[V] {
	return &Bucket[V]{handle: handle}
}

func (b *Bucket[V]) Get(ctx context.Context) (V, bool, error) {
	return b.handle.GetValue(ctx, bucketKey)
}

func (b *Bucket[V]) Set(ctx context.Context, value V) error {
	return b.handle.SetValue(ctx, bucketKey, value)
}
