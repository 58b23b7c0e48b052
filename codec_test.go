package typedcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := NewJSONCodec[widget]()
	want := widget{Name: "bolt", Count: 3}

	raw, err := codec.Serialize(want)
	require.NoError(t, err)

	got, err := codec.Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJSONCodec_ToDisplayString(t *testing.T) {
	codec := NewJSONCodec[widget]()
	s := codec.ToDisplayString(widget{Name: "bolt", Count: 3})
	if s == "" {
		t.Fatal("expected non-empty display string")
	}
}

func TestJSONCodec_DoesNotPool(t *testing.T) {
	codec := NewJSONCodec[widget]()
	if codec.SupportsPooling() {
		t.Error("JSONCodec must not report pooling support")
	}
	codec.ReturnToPool(widget{}) // no-op, must not panic
}

func TestJSONCodec_CaseInsensitiveKeys(t *testing.T) {
	codec := NewJSONCodec[widget]()
	got, err := codec.Deserialize([]byte(`{"NAME":"bolt","COUNT":3}`))
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "bolt", Count: 3}, got)
}
