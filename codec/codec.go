package codec

// Codec encodes/decodes a single record T to []byte for storage.
// The cache frames records itself; codecs never see entry envelopes.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}
