package codec

// Bytes passes []byte values through untouched, for fetchers that already
// return raw response bodies.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) {
	// providers may reuse their buffers
	return append([]byte(nil), b...), nil
}

// String stores string values as their UTF-8 bytes, without validation.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
