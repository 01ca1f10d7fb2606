// Package codec turns cached values into bytes and back.
package codec

// Codec converts values of type V to the byte payload a Provider stores.
// Decode(Encode(v)) must yield a value equal to v for the cache to be useful.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
