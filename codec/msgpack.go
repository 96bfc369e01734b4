package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes records using vmihailenco/msgpack/v5.
// The zero value is ready to use.
//
// Msgpack is compact and fast; be mindful of struct tag differences vs JSON.
// Use `msgpack:"fieldName"` tags if you need explicit control.
type Msgpack[T any] struct{}

func (Msgpack[T]) Encode(v T) ([]byte, error) {
	return msgpack.Marshal(v)
}
func (Msgpack[T]) Decode(b []byte) (T, error) {
	var v T
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
