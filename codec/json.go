package codec

import "encoding/json"

// JSON is the default record codec. Records round-trip through encoding/json,
// so cached bytes match what the backend itself would serve for the record.
type JSON[T any] struct{}

func (JSON[T]) Encode(v T) ([]byte, error) { return json.Marshal(v) }
func (JSON[T]) Decode(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}
