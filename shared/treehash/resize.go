package treehash

// The internal node region of a list's tree is itself a complete binary
// tree stored breadth-first. Growing keeps the old tree as the leftmost
// subtree of the new one; shrinking keeps the leftmost subtree of the
// old tree. Row r of a tree spans nodes [2^r - 1, 2^(r+1) - 2].

func nodesInTreeOfHeight(h int) int {
	return 2*(1<<uint(h)) - 1
}

func rowRange(r int) (int, int) {
	return (1 << uint(r)) - 1, (1 << uint(r+1)) - 1
}

// growMerkleTree expands a complete tree of fromHeight to toHeight.
// Nodes carried over keep their bytes and flags; newly created nodes
// are zeroed and flagged dirty so parents rehash over them.
func growMerkleTree(oldBytes []byte, oldFlags []bool, fromHeight, toHeight int) ([]byte, []bool, error) {
	if len(oldBytes) != nodesInTreeOfHeight(fromHeight)*BytesPerChunk || toHeight < fromHeight {
		return nil, nil, ErrUnableToGrow
	}

	toNodes := nodesInTreeOfHeight(toHeight)
	b := make([]byte, toNodes*BytesPerChunk)
	flags := make([]bool, toNodes)
	for i := range flags {
		flags[i] = true
	}

	diff := toHeight - fromHeight
	for r := 0; r <= fromHeight; r++ {
		oldStart, oldEnd := rowRange(r)
		newStart, _ := rowRange(r + diff)
		copy(b[newStart*BytesPerChunk:], oldBytes[oldStart*BytesPerChunk:oldEnd*BytesPerChunk])
		copy(flags[newStart:], oldFlags[oldStart:oldEnd])
	}
	return b, flags, nil
}

// shrinkMerkleTree reduces a complete tree of fromHeight to toHeight,
// keeping the leftmost portion of each surviving row.
func shrinkMerkleTree(oldBytes []byte, oldFlags []bool, fromHeight, toHeight int) ([]byte, []bool, error) {
	if len(oldBytes) != nodesInTreeOfHeight(fromHeight)*BytesPerChunk || toHeight > fromHeight {
		return nil, nil, ErrUnableToShrink
	}

	toNodes := nodesInTreeOfHeight(toHeight)
	b := make([]byte, toNodes*BytesPerChunk)
	flags := make([]bool, toNodes)

	diff := fromHeight - toHeight
	for r := 0; r <= toHeight; r++ {
		newStart, newEnd := rowRange(r)
		oldStart, _ := rowRange(r + diff)
		width := newEnd - newStart
		copy(b[newStart*BytesPerChunk:newEnd*BytesPerChunk],
			oldBytes[oldStart*BytesPerChunk:(oldStart+width)*BytesPerChunk])
		copy(flags[newStart:newEnd], oldFlags[oldStart:oldStart+width])
	}
	return b, flags, nil
}
