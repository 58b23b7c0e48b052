// Package typedcache provides named, strongly-typed maps over a Redis-like
// key-value store, with per-entry versioning, idle-TTL eviction, event
// dispatch, deferred batch-update notifications, and paginated dashboard
// enumeration.
//
// # Quick Start
//
//	registry := typedcache.NewRegistry(redisStore)
//	handle, err := typedcache.GetOrCreate[string, User](ctx, registry, "users",
//	    typedcache.NewJSONKeyCodec[string](),
//	    typedcache.NewJSONCodec[User](),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = handle.SetValue(ctx, "u1", User{Name: "ada"})
//	user, ok, _ := handle.GetValue(ctx, "u1")
//
// # Events
//
//	handle.OnUpdate(func(ctx context.Context, key string, value User) error {
//	    return nil
//	})
//	handle.OnBatchUpdate(func(ctx context.Context, entries []typedcache.BatchEntry[string, User]) error {
//	    return nil
//	})
//
// # TTL and Migration
//
//	ttl := 2 * time.Minute
//	_ = handle.SetItemTtl(ctx, &ttl)
//	_ = handle.MigrateTimestampsToSortedSet(ctx)
//
// A map handle's key and value codecs are pluggable: [JSONCodec] and
// [JSONKeyCodec] cover the common case, and [MessageCodec] adapts a
// protobuf-generated type with pooled deserialized instances.
package typedcache
