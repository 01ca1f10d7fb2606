package querycache

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// keyEnc encodes key parts canonically (RFC 8949 core deterministic), so
// equal tuples always produce equal bytes: int(1) and int64(1) match, map
// parts are order independent.
var keyEnc = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Key identifies a request. It is an ordered tuple of primitives;
// two keys are equal (==) iff all their parts are equal.
type Key struct {
	id   string // canonical CBOR of the parts
	text string
}

// NewKey builds a Key from parts, e.g. NewKey("todos", userID, page).
func NewKey(parts ...any) (Key, error) {
	if len(parts) == 0 {
		return Key{}, fmt.Errorf("querycache: key needs at least one part")
	}
	b, err := keyEnc.Marshal(parts)
	if err != nil {
		return Key{}, fmt.Errorf("querycache: encode key: %w", err)
	}
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return Key{id: string(b), text: strings.Join(s, "/")}, nil
}

// MustKey is like NewKey but panics on error.
// Handy for keys built from literals.
func MustKey(parts ...any) Key {
	k, err := NewKey(parts...)
	if err != nil {
		panic(err)
	}
	return k
}

// IsZero reports whether k was never built.
func (k Key) IsZero() bool { return k.id == "" }

// String is for logs only; distinct keys may render the same.
func (k Key) String() string { return k.text }

// encoded is the storage-safe form of the key.
func (k Key) encoded() string {
	return base64.RawURLEncoding.EncodeToString([]byte(k.id))
}
