// Package utils contains the deterministic shuffling primitives used
// for committee assignment.
package utils

import (
	"encoding/binary"
	"errors"

	"github.com/meridianchain/meridian/shared/bytesutil"
	"github.com/meridianchain/meridian/shared/hashutil"
	"github.com/meridianchain/meridian/shared/params"
)

var errZeroListSize = errors.New("utils: cannot shuffle an empty list")

// ShuffleIndices returns a deterministic pseudo-random permutation of
// indices keyed by seed, using the swap-or-not network. Every client
// shuffling the same inputs must produce the identical permutation.
func ShuffleIndices(seed [32]byte, indices []uint64) ([]uint64, error) {
	if len(indices) == 0 {
		return nil, errZeroListSize
	}
	shuffled := make([]uint64, len(indices))
	for i := range indices {
		permuted, err := PermutedIndex(uint64(i), uint64(len(indices)), seed)
		if err != nil {
			return nil, err
		}
		shuffled[i] = indices[permuted]
	}
	return shuffled, nil
}

// PermutedIndex runs a single index through the swap-or-not network:
// each round derives a pivot from the seed, mirrors the index about the
// pivot, and swaps based on one bit of a per-position hash source.
func PermutedIndex(index, listSize uint64, seed [32]byte) (uint64, error) {
	if listSize == 0 {
		return 0, errZeroListSize
	}
	if index >= listSize {
		return 0, errors.New("utils: index out of range for shuffle")
	}
	rounds := params.BeaconConfig().ShuffleRoundCount
	buf := make([]byte, 0, 37)
	for round := uint64(0); round < rounds; round++ {
		buf = append(buf[:0], seed[:]...)
		buf = append(buf, byte(round))
		ph := hashutil.Hash(buf)
		pivot := bytesutil.FromBytes8(ph[:8]) % listSize

		flip := (pivot + listSize - index) % listSize
		position := index
		if flip > position {
			position = flip
		}

		posBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(posBuf, uint32(position/256))
		buf = append(buf, posBuf...)
		source := hashutil.Hash(buf)

		b := source[(position%256)/8]
		if (b>>(position%8))&1 == 1 {
			index = flip
		}
	}
	return index, nil
}

// SplitIndices divides l into n pieces of near-equal size, preserving
// order. Piece i is l[len*i/n : len*(i+1)/n].
func SplitIndices(l []uint64, n uint64) [][]uint64 {
	divided := make([][]uint64, 0, n)
	size := uint64(len(l))
	for i := uint64(0); i < n; i++ {
		divided = append(divided, l[size*i/n:size*(i+1)/n])
	}
	return divided
}
