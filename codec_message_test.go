package typedcache

import (
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

func newStringValueCodec() *MessageCodec[*wrapperspb.StringValue] {
	return NewMessageCodec(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
}

func TestMessageCodec_RoundTrip(t *testing.T) {
	codec := newStringValueCodec()
	want := wrapperspb.String("hello")

	raw, err := codec.Serialize(want)
	if err != nil {
		t.Fatal(err)
	}

	got, err := codec.Deserialize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.GetValue() != want.GetValue() {
		t.Errorf("got %q, want %q", got.GetValue(), want.GetValue())
	}
}

func TestMessageCodec_NilIsValueRequired(t *testing.T) {
	codec := newStringValueCodec()
	_, err := codec.Deserialize(nil)
	if err == nil {
		t.Fatal("expected an error for nil input")
	}
	if _, ok := err.(*ValueRequiredError); !ok {
		t.Errorf("got %T, want *ValueRequiredError", err)
	}
}

func TestMessageCodec_EmptyYieldsDefaultInstance(t *testing.T) {
	codec := newStringValueCodec()
	got, err := codec.Deserialize([]byte{})
	if err != nil {
		t.Fatal(err)
	}
	if got.GetValue() != "" {
		t.Errorf("expected a zero-value default instance, got %q", got.GetValue())
	}
}

func TestMessageCodec_ReturnToPool_ResetsAndReuses(t *testing.T) {
	codec := newStringValueCodec()

	raw, err := codec.Serialize(wrapperspb.String("first"))
	if err != nil {
		t.Fatal(err)
	}
	inst, err := codec.Deserialize(raw)
	if err != nil {
		t.Fatal(err)
	}
	codec.ReturnToPool(inst)

	if inst.GetValue() != "" {
		t.Error("ReturnToPool should reset the instance")
	}

	got, err := codec.Deserialize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.GetValue() != "first" {
		t.Errorf("got %q, want %q", got.GetValue(), "first")
	}
}

func TestMessageCodec_ToDisplayString(t *testing.T) {
	codec := newStringValueCodec()
	s := codec.ToDisplayString(wrapperspb.String("hello"))
	if s == "" {
		t.Fatal("expected non-empty display string")
	}
}

func TestMessageCodec_SupportsPooling(t *testing.T) {
	codec := newStringValueCodec()
	if !codec.SupportsPooling() {
		t.Error("MessageCodec must report pooling support")
	}
}
