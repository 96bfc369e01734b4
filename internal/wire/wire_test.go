package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestRoundTripList(t *testing.T) {
	in := Entry{
		Shape:   List,
		Flags:   FlagPending,
		Gen:     42,
		Records: [][]byte{[]byte(`{"id":"1"}`), []byte(`{"id":"2"}`)},
	}
	b, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Shape != List || out.Gen != 42 || !out.Pending() {
		t.Fatalf("header mismatch: %+v", out)
	}
	if out.Count != 0 {
		t.Fatalf("list entries carry no count, got %d", out.Count)
	}
	if len(out.Records) != 2 || !bytes.Equal(out.Records[0], in.Records[0]) || !bytes.Equal(out.Records[1], in.Records[1]) {
		t.Fatalf("records mismatch: %q", out.Records)
	}
}

func TestRoundTripPage(t *testing.T) {
	in := Entry{
		Shape:   Page,
		Gen:     7,
		Count:   25,
		Records: [][]byte{[]byte("a"), []byte(""), []byte("ccc")},
	}
	b, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Shape != Page || out.Count != 25 || out.Pending() {
		t.Fatalf("header mismatch: %+v", out)
	}
	if len(out.Records) != 3 || len(out.Records[1]) != 0 {
		t.Fatalf("records mismatch: %q", out.Records)
	}
}

func TestEmptyEntry(t *testing.T) {
	b, err := Encode(Entry{Shape: Page, Gen: 1, Count: 0})
	if err != nil {
		t.Fatalf("Encode empty: %v", err)
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode empty: %v", err)
	}
	if len(out.Records) != 0 {
		t.Fatalf("expected no records, got %d", len(out.Records))
	}
}

func TestEncodeRejectsInvalidShape(t *testing.T) {
	if _, err := Encode(Entry{Shape: 0}); err != ErrInvalidShape {
		t.Fatalf("expected ErrInvalidShape, got %v", err)
	}
	if _, err := Encode(Entry{Shape: 9}); err != ErrInvalidShape {
		t.Fatalf("expected ErrInvalidShape, got %v", err)
	}
}

// Decode must reject trailing bytes (strict framing).
func TestDecodeRejectsTrailing(t *testing.T) {
	b, err := Encode(Entry{Shape: List, Gen: 3, Records: [][]byte{[]byte("x")}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b = append(b, 0xDE, 0xAD)
	if _, err := Decode(b); err == nil {
		t.Fatalf("Decode should reject trailing bytes")
	}
}

func TestDecodeRejectsTruncation(t *testing.T) {
	b, err := Encode(Entry{Shape: Page, Gen: 3, Count: 9, Records: [][]byte{[]byte("xyz")}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for cut := 1; cut < len(b); cut++ {
		if _, err := Decode(b[:cut]); err == nil {
			t.Fatalf("Decode should fail at truncation %d", cut)
		}
	}
}

func TestDecodeRejectsBadMagicAndVersion(t *testing.T) {
	b, _ := Encode(Entry{Shape: List, Gen: 1})
	bad := append([]byte{}, b...)
	bad[0] = 'X'
	if _, err := Decode(bad); err == nil {
		t.Fatalf("Decode should reject bad magic")
	}
	bad = append([]byte{}, b...)
	bad[4] = 99
	if _, err := Decode(bad); err == nil {
		t.Fatalf("Decode should reject unknown version")
	}
}

// Bogus n in the header must not preallocate huge capacity and must error cleanly.
func TestDecodeFakeNNotPrealloc(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(shapeList)
	buf.WriteByte(0) // flags
	var u8 [8]byte
	buf.Write(u8[:]) // gen
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], ^uint32(0))
	buf.Write(u4[:]) // n = 0xFFFFFFFF, no records follow

	if _, err := Decode(buf.Bytes()); err == nil {
		t.Fatalf("Decode should fail on wrong n with insufficient bytes")
	}
}
