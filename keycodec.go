package typedcache

import "encoding/json"

// KeyCodec serializes a strongly-typed key to the string used as the hash
// field name across every key-space in §4.3, and back. It uses the same
// JSON encoding as JSONCodec so field names stay human-inspectable in the
// dashboard.
type KeyCodec[K any] interface {
	Serialize(k K) (string, error)
	Deserialize(field string) (K, error)
}

// JSONKeyCodec is the default KeyCodec, backed by encoding/json.
type JSONKeyCodec[K any] struct{}

// NewJSONKeyCodec returns a JSON-backed KeyCodec for K.
func NewJSONKeyCodec[K any]() JSONKeyCodec[K] {
	return JSONKeyCodec[K]{}
}

func (JSONKeyCodec[K]) Serialize(k K) (string, error) {
	b, err := json.Marshal(k)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (JSONKeyCodec[K]) Deserialize(field string) (K, error) {
	var k K
	if err := json.Unmarshal([]byte(field), &k); err != nil {
		return k, err
	}
	return k, nil
}
