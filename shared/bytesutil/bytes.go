// Package bytesutil defines helper methods for converting integers to byte slices.
package bytesutil

import (
	"bytes"
	"encoding/binary"
)

// ToBytes32 is a convenience method for converting a byte slice to a fix
// sized 32 byte array. This method will truncate the input if it is larger
// than 32 bytes.
func ToBytes32(x []byte) [32]byte {
	var y [32]byte
	copy(y[:], x)
	return y
}

// ToBytes48 is a convenience method for converting a byte slice to a fix
// sized 48 byte array. This method will truncate the input if it is larger
// than 48 bytes.
func ToBytes48(x []byte) [48]byte {
	var y [48]byte
	copy(y[:], x)
	return y
}

// Bytes8 returns integer x to bytes in big-endian format, x.to_bytes(8, 'big').
func Bytes8(x uint64) []byte {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, x)
	return bytes
}

// FromBytes8 returns an integer which is decoded from bytes in big-endian format.
func FromBytes8(x []byte) uint64 {
	return binary.BigEndian.Uint64(x)
}

// Bytes32LE returns integer x encoded into the low bytes of a 32-byte
// chunk, little-endian. SSZ lists mix their length into the root in this
// form.
func Bytes32LE(x uint64) [32]byte {
	var b [32]byte
	binary.LittleEndian.PutUint64(b[:8], x)
	return b
}

// LowerThan returns true if the first argument is lexicographically
// smaller than the second. Both nil and empty compare lower than any
// non-empty slice.
func LowerThan(x []byte, y []byte) bool {
	return bytes.Compare(x, y) == -1
}

// Xor32 returns the bitwise xor of two 32 byte values.
func Xor32(x [32]byte, y [32]byte) [32]byte {
	var z [32]byte
	for i := 0; i < 32; i++ {
		z[i] = x[i] ^ y[i]
	}
	return z
}
