package codec

import "fmt"

// Limit wraps another codec to enforce a maximum allowed payload size at
// Decode time. Encode is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized inputs coming from a shared cache
// (a Redis provider other processes write to).
type Limit[T any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner interface {
		Encode(T) ([]byte, error)
		Decode([]byte) (T, error)
	}
	// MaxDecode is the maximum permitted length (in bytes) of the incoming
	// payload for Decode. If payload length exceeds MaxDecode, Decode returns
	// an error without invoking Inner.
	MaxDecode int
}

func (c Limit[T]) Encode(v T) ([]byte, error) { return c.Inner.Encode(v) }
func (c Limit[T]) Decode(b []byte) (T, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero T
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
