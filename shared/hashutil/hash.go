// Package hashutil includes all hash function related helpers.
package hashutil

import (
	"github.com/minio/sha256-simd"
)

// Hash defines a function that returns the sha256 hash of the data passed in.
func Hash(data []byte) [32]byte {
	var hash [32]byte
	h := sha256.New()
	// #nosec G104
	h.Write(data)
	h.Sum(hash[:0])
	return hash
}

// HashChildren hashes the concatenation of two 32-byte nodes. Used when
// climbing a merkle tree.
func HashChildren(left [32]byte, right [32]byte) [32]byte {
	return Hash(append(left[:], right[:]...))
}
