package treehash

import "github.com/meridianchain/meridian/shared/hashutil"

const merkleHashChunk = 2 * BytesPerChunk

// Merkleize splits values into 32-byte leaf chunks, pads the leaf count
// up to a power of two with zeros, and returns the full merkle tree as
// a flat buffer with internal nodes stored before the leaves. The root
// occupies the first 32 bytes. Empty input merkleizes to a single zero
// chunk.
func Merkleize(values []byte) []byte {
	values = sanitizeBytes(values)
	leaves := len(values) / BytesPerChunk

	o := make([]byte, (numNodes(leaves)-leaves)*BytesPerChunk, numNodes(leaves)*BytesPerChunk)
	o = append(o, values...)

	i := len(o)
	j := len(o) - len(values)
	for i >= merkleHashChunk {
		i -= merkleHashChunk
		h := hashutil.Hash(o[i : i+merkleHashChunk])
		j -= BytesPerChunk
		copy(o[j:j+BytesPerChunk], h[:])
	}
	return o
}

// sanitizeBytes zero-pads to whole chunks and to a power-of-two chunk
// count, with a minimum of one chunk.
func sanitizeBytes(b []byte) []byte {
	present := (len(b) + BytesPerChunk - 1) / BytesPerChunk
	required := nextPowerOfTwo(present)
	if present != required || len(b)%BytesPerChunk != 0 {
		padded := make([]byte, required*BytesPerChunk)
		copy(padded, b)
		return padded
	}
	return b
}

// padForLeafCount appends zero chunks so that numLeaves is rounded up
// to a power of two.
func padForLeafCount(numLeaves int, b []byte) []byte {
	required := nextPowerOfTwo(numLeaves)
	return append(b, make([]byte, (required-numLeaves)*BytesPerChunk)...)
}

func numNodes(leaves int) int {
	return 2*leaves - 1
}
