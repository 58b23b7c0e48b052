package typedcache

import (
	"context"
	"testing"

	"github.com/arnavsood/typedcache/store/memory"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(memory.New())

	if err := Create[string, string](r, "users", NewJSONKeyCodec[string](), NewJSONCodec[string]()); err != nil {
		t.Fatal(err)
	}

	handle, err := Get[string, string](ctx, r, "users")
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Close()

	if err := handle.SetValue(ctx, "a", "x"); err != nil {
		t.Fatal(err)
	}
	got, ok, err := handle.GetValue(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != "x" {
		t.Fatalf("got (%q, %v), want (\"x\", true)", got, ok)
	}
}

func TestRegistry_GetUnknownMap(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(memory.New())

	_, err := Get[string, string](ctx, r, "missing")
	if err == nil {
		t.Fatal("expected an error for an unregistered map")
	}
	if _, ok := err.(*MapNotRegisteredError); !ok {
		t.Errorf("got %T, want *MapNotRegisteredError", err)
	}
}

func TestRegistry_TypeMismatch(t *testing.T) {
	r := NewRegistry(memory.New())

	if err := Create[string, string](r, "users", NewJSONKeyCodec[string](), NewJSONCodec[string]()); err != nil {
		t.Fatal(err)
	}
	err := Create[string, int](r, "users", NewJSONKeyCodec[string](), NewJSONCodec[int]())
	if err == nil {
		t.Fatal("expected a type mismatch error")
	}
	if _, ok := err.(*MapTypeMismatchError); !ok {
		t.Errorf("got %T, want *MapTypeMismatchError", err)
	}
}

func TestRegistry_ReRegisterSameTypeIsNoop(t *testing.T) {
	r := NewRegistry(memory.New())

	if err := Create[string, string](r, "users", NewJSONKeyCodec[string](), NewJSONCodec[string]()); err != nil {
		t.Fatal(err)
	}
	if err := Create[string, string](r, "users", NewJSONKeyCodec[string](), NewJSONCodec[string]()); err != nil {
		t.Fatalf("re-registration with the same types should be a no-op, got %v", err)
	}
}

func TestRegistry_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(memory.New())

	handle, err := GetOrCreate[string, string](ctx, r, "sessions", NewJSONKeyCodec[string](), NewJSONCodec[string]())
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Close()

	if err := handle.SetValue(ctx, "s1", "active"); err != nil {
		t.Fatal(err)
	}
	got, ok, err := handle.GetValue(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != "active" {
		t.Fatalf("got (%q, %v), want (\"active\", true)", got, ok)
	}
}

func TestBucket_GetSet(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(memory.New())

	handle, err := CreateBucket[int](ctx, r, "counter", NewJSONCodec[int]())
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Close()

	bucket := NewBucket[int](handle)
	if err := bucket.Set(ctx, 42); err != nil {
		t.Fatal(err)
	}
	got, ok, err := bucket.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != 42 {
		t.Fatalf("got (%d, %v), want (42, true)", got, ok)
	}
}
