package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes with fxamacker/cbor. Build it with NewCBOR; the zero value has
// no modes and will panic.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR returns a CBOR codec. deterministic selects RFC 8949 core
// deterministic encoding (stable bytes, sorted maps); otherwise the preferred
// unsorted options are used. Times are written as RFC3339Nano strings.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is NewCBOR for package-level vars and tests; it panics on error.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	cc, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return cc
}

func (cc CBOR[V]) Encode(v V) ([]byte, error) { return cc.enc.Marshal(v) }

func (cc CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := cc.dec.Unmarshal(b, &v)
	return v, err
}
