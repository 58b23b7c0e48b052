package typedcache

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Version is an opaque 128-bit identifier rotated on every mutation of an
// entry. It is rendered as lowercase hex when written to the backing store;
// the dashboard shows only its first 8 hex characters.
type Version [16]byte

// NewVersion returns a freshly generated version id.
func NewVersion() Version {
	return Version(uuid.New())
}

// String renders the version as 32 lowercase hex characters.
func (v Version) String() string {
	return hex.EncodeToString(v[:])
}

// Short returns the first 8 hex characters, as shown in the dashboard.
func (v Version) Short() string {
	s := v.String()
	return s[:8]
}

// ParseVersion decodes a version previously rendered by String.
func ParseVersion(s string) (Version, error) {
	var v Version
	b, err := hex.DecodeString(s)
	if err != nil {
		return v, err
	}
	if len(b) != len(v) {
		return v, hex.ErrLength
	}
	copy(v[:], b)
	return v, nil
}
