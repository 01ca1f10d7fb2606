package codec

import "fmt"

// Limit refuses to decode payloads larger than MaxDecode bytes before handing
// them to Inner. Useful when a shared provider may hold oversized entries.
// MaxDecode <= 0 disables the check. Encode is passed through.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (l Limit[V]) Encode(v V) ([]byte, error) { return l.Inner.Encode(v) }

func (l Limit[V]) Decode(b []byte) (V, error) {
	if l.MaxDecode > 0 && len(b) > l.MaxDecode {
		var zero V
		return zero, fmt.Errorf("codec: payload too large: %d > %d", len(b), l.MaxDecode)
	}
	return l.Inner.Decode(b)
}
