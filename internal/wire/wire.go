package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const (
	version byte = 1

	shapeList byte = 1
	shapePage byte = 2
)

// FlagPending marks an entry that holds unconfirmed optimistic state.
const FlagPending byte = 1 << 0

var (
	ErrCorrupt      = errors.New("propbooks: corrupt cache entry")
	ErrInvalidShape = errors.New("propbooks: invalid entry shape")

	magic4 = [...]byte{'P', 'B', 'V', 'C'}
)

// Shape is the stored form of a cache entry: a bare ordered list, or a
// paginated envelope that also carries the collection total.
type Shape byte

const (
	List Shape = Shape(shapeList)
	Page Shape = Shape(shapePage)
)

func (s Shape) valid() bool { return s == List || s == Page }

// Entry is the decoded storage envelope for one cache key.
// Records are opaque codec payloads in display order.
type Entry struct {
	Shape   Shape
	Flags   byte
	Gen     uint64
	Count   uint64 // total across pages; encoded for Page entries only
	Records [][]byte
}

func (e Entry) Pending() bool { return e.Flags&FlagPending != 0 }

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode serializes an entry:
//
//	magic(4) | ver(1) | shape(1) | flags(1) | gen(u64 be) |
//	count(u64 be, page shape only) | n(u32 be) | { rlen(u32 be) | payload }*n
func Encode(e Entry) ([]byte, error) {
	if !e.Shape.valid() {
		return nil, ErrInvalidShape
	}
	if len(e.Records) > math.MaxUint32 {
		return nil, ErrCorrupt
	}

	total := 4 + 1 + 1 + 1 + 8 + 4
	if e.Shape == Page {
		total += 8
	}
	for _, r := range e.Records {
		if len(r) > math.MaxUint32 {
			return nil, ErrCorrupt
		}
		total += 4 + len(r)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(byte(e.Shape))
	buf.WriteByte(e.Flags)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], e.Gen)
	buf.Write(u8[:])

	if e.Shape == Page {
		binary.BigEndian.PutUint64(u8[:], e.Count)
		buf.Write(u8[:])
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Records)))
	buf.Write(u4[:])

	for _, r := range e.Records {
		binary.BigEndian.PutUint32(u4[:], uint32(len(r)))
		buf.Write(u4[:])
		buf.Write(r)
	}

	return buf.Bytes(), nil
}

// Decode parses an entry and enforces strict framing: any truncation or
// trailing bytes is ErrCorrupt.
func Decode(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 1 + 8
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	shape := Shape(b[5])
	if !shape.valid() {
		return Entry{}, ErrCorrupt
	}

	e := Entry{Shape: shape, Flags: b[6]}
	off := 7

	e.Gen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	if shape == Page {
		if off+8 > len(b) {
			return Entry{}, ErrCorrupt
		}
		e.Count = binary.BigEndian.Uint64(b[off : off+8])
		off += 8
	}

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4

	// bound preallocation by what the buffer could actually hold
	capHint := n
	if max := (len(b) - off) / 4; capHint > max {
		capHint = max
	}
	e.Records = make([][]byte, 0, capHint)

	for i := 0; i < n; i++ {
		if off+4 > len(b) {
			return Entry{}, ErrCorrupt
		}
		rlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if rlen < 0 || rlen > len(b)-off {
			return Entry{}, ErrCorrupt
		}
		e.Records = append(e.Records, b[off:off+rlen])
		off += rlen
	}

	if off != len(b) {
		return Entry{}, ErrCorrupt
	}
	return e, nil
}
