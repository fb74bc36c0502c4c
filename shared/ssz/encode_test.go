package ssz

import (
	"bytes"
	"reflect"
	"testing"
)

type simpleStruct struct {
	B uint16
	A uint8
}

type outerStruct struct {
	V    uint8
	SubV simpleStruct
}

type arrayStruct struct {
	V []simpleStruct
}

type skipStruct struct {
	A uint8
	S uint64 `ssz:"skip"`
	B uint16
}

var encodeTests = []struct {
	val    interface{}
	output []byte
}{
	// Booleans.
	{val: false, output: []byte{0x00}},
	{val: true, output: []byte{0x01}},

	// Unsigned integers, big-endian.
	{val: uint8(0), output: []byte{0x00}},
	{val: uint8(255), output: []byte{0xFF}},
	{val: uint16(16), output: []byte{0x00, 0x10}},
	{val: uint32(4294967295), output: []byte{0xFF, 0xFF, 0xFF, 0xFF}},
	{val: uint64(72057594037927936), output: []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},

	// Byte slices carry a 4-byte length prefix.
	{val: []byte{}, output: []byte{0x00, 0x00, 0x00, 0x00}},
	{val: []byte{1, 2, 3}, output: []byte{0x00, 0x00, 0x00, 0x03, 0x01, 0x02, 0x03}},

	// Fixed byte arrays do not.
	{val: [2]byte{1, 2}, output: []byte{0x01, 0x02}},

	// Slices of composite values.
	{val: []uint16{1, 2}, output: []byte{0x00, 0x00, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02}},

	// Structs are length-prefixed like slices.
	{val: simpleStruct{B: 2, A: 1}, output: []byte{0x00, 0x00, 0x00, 0x03, 0x00, 0x02, 0x01}},
	{val: outerStruct{V: 3, SubV: simpleStruct{B: 2, A: 1}},
		output: []byte{0x00, 0x00, 0x00, 0x08, 0x03, 0x00, 0x00, 0x00, 0x03, 0x00, 0x02, 0x01}},

	// Pointers encode their referent.
	{val: &simpleStruct{B: 2, A: 1}, output: []byte{0x00, 0x00, 0x00, 0x03, 0x00, 0x02, 0x01}},
}

func TestEncode(t *testing.T) {
	for i, test := range encodeTests {
		buf := new(bytes.Buffer)
		if err := Encode(buf, test.val); err != nil {
			t.Errorf("test %d: unexpected error: %v", i, err)
			continue
		}
		if !bytes.Equal(buf.Bytes(), test.output) {
			t.Errorf("test %d: output mismatch: got %x, want %x", i, buf.Bytes(), test.output)
		}
	}
}

func TestEncodeSkipField(t *testing.T) {
	b, err := Marshal(skipStruct{A: 1, S: 99, B: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x00, 0x00, 0x00, 0x03, 0x01, 0x00, 0x02}
	if !bytes.Equal(b, want) {
		t.Errorf("skip-tagged field should not be encoded: got %x, want %x", b, want)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []interface{}{
		true,
		uint8(42),
		uint16(42),
		uint32(42),
		uint64(42),
		[]byte{1, 2, 3, 4},
		[32]byte{1, 2, 3},
		[]uint64{5, 6, 7},
		simpleStruct{B: 512, A: 9},
		outerStruct{V: 1, SubV: simpleStruct{B: 2, A: 3}},
		arrayStruct{V: []simpleStruct{{B: 1, A: 2}, {B: 3, A: 4}}},
	}
	for i, val := range tests {
		b, err := Marshal(val)
		if err != nil {
			t.Errorf("test %d: marshal failed: %v", i, err)
			continue
		}
		decoded := reflect.New(reflect.TypeOf(val))
		if err := Unmarshal(b, decoded.Interface()); err != nil {
			t.Errorf("test %d: unmarshal failed: %v", i, err)
			continue
		}
		got := decoded.Elem().Interface()
		if !reflect.DeepEqual(got, val) {
			t.Errorf("test %d: round trip mismatch: got %v, want %v", i, got, val)
		}
	}
}

func TestRoundTripEmptySlice(t *testing.T) {
	b, err := Marshal([]uint64{})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out []uint64
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty slice, got %v", out)
	}
}

func TestDecodeBadInput(t *testing.T) {
	// Truncated input for a uint64.
	var x uint64
	if err := Unmarshal([]byte{1, 2, 3}, &x); err == nil {
		t.Error("expected error for truncated uint64")
	}
	// Slice length prefix that does not align with element boundaries.
	var s []uint16
	if err := Unmarshal([]byte{0x00, 0x00, 0x00, 0x03, 0x01, 0x02, 0x03}, &s); err == nil {
		t.Error("expected error for misaligned slice length")
	}
	// Non-pointer target.
	if err := Unmarshal([]byte{0x01}, x); err == nil {
		t.Error("expected error for non-pointer decode target")
	}
}
