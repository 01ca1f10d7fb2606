package codec

import "google.golang.org/protobuf/proto"

// Protobuf stores generated messages. newMsg must return an empty message of
// the concrete type, e.g. func() *pb.Todo { return &pb.Todo{} }.
type Protobuf[T proto.Message] struct {
	newMsg func() T
}

func NewProtobuf[T proto.Message](newMsg func() T) Protobuf[T] {
	return Protobuf[T]{newMsg: newMsg}
}

func (p Protobuf[T]) Encode(v T) ([]byte, error) { return proto.Marshal(v) }

func (p Protobuf[T]) Decode(b []byte) (T, error) {
	m := p.newMsg()
	if err := proto.Unmarshal(b, m); err != nil {
		var zero T
		return zero, err
	}
	return m, nil
}
