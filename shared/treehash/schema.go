package treehash

import "math/bits"

// schema describes the shape of a list's merkle tree independently of
// its position in the cache: the nesting depth of the list and the
// chunk count of each stored leaf subtree.
type schema struct {
	depth   int
	lengths []int
}

func newSchema(depth int, lengths []int) schema {
	return schema{depth: depth, lengths: lengths}
}

// intoOverlay anchors the schema at an absolute chunk offset.
func (s schema) intoOverlay(offset int) overlay {
	return overlay{offset: offset, depth: s.depth, lengths: s.lengths}
}

// overlay maps the logical nodes of a tree onto absolute chunk indices
// in a cache. Leaf subtrees may span multiple chunks; padding leaves
// introduced to reach a power-of-two width span exactly one.
type overlay struct {
	offset  int
	depth   int
	lengths []int
}

func (o overlay) intoSchema() schema {
	return newSchema(o.depth, o.lengths)
}

// numLeafNodes is the padded, power-of-two leaf width of the tree.
func (o overlay) numLeafNodes() int {
	return nextPowerOfTwo(len(o.lengths))
}

func (o overlay) numInternalNodes() int {
	return o.numLeafNodes() - 1
}

func (o overlay) numNodes() int {
	return 2*o.numLeafNodes() - 1
}

// height of the tree; a single-leaf tree has height zero.
func (o overlay) height() int {
	return bits.TrailingZeros(uint(o.numLeafNodes()))
}

func (o overlay) rootChunk() int {
	return o.offset
}

// leafSegment is the chunk span of the i'th leaf: the stored subtree
// size for real leaves, one chunk for padding leaves.
func (o overlay) leafSegment(i int) int {
	if i < len(o.lengths) {
		return o.lengths[i]
	}
	return 1
}

// nextNode is the first chunk index past the end of this tree.
func (o overlay) nextNode() int {
	n := o.offset + o.numInternalNodes()
	for i := 0; i < o.numLeafNodes(); i++ {
		n += o.leafSegment(i)
	}
	return n
}

// chunkRange returns [start, end) of the chunks this tree occupies.
func (o overlay) chunkRange() (int, int) {
	return o.offset, o.nextNode()
}

func (o overlay) numChunks() int {
	return o.nextNode() - o.offset
}

func (o overlay) firstLeafNode() int {
	return o.offset + o.numInternalNodes()
}

// internalChunkRange returns [start, end) of the internal node region.
func (o overlay) internalChunkRange() (int, int) {
	return o.offset, o.offset + o.numInternalNodes()
}

// leafNodeRange returns the chunk range of the i'th leaf subtree.
// ok is false for padding leaves and indices past the stored leaves.
func (o overlay) leafNodeRange(i int) (start, end int, ok bool) {
	if i >= len(o.lengths) {
		return 0, 0, false
	}
	start = o.firstLeafNode()
	for j := 0; j < i; j++ {
		start += o.lengths[j]
	}
	return start, start + o.lengths[i], true
}

// internalParentsAndChildren returns, for every internal node, the
// absolute chunk indices of [parent, leftChild, rightChild] in
// breadth-first order.
func (o overlay) internalParentsAndChildren() [][3]int {
	offsets := o.nodeOffsets()
	pairs := make([][3]int, 0, o.numInternalNodes())
	for i := 0; i < o.numInternalNodes(); i++ {
		pairs = append(pairs, [3]int{offsets[i], offsets[2*i+1], offsets[2*i+2]})
	}
	return pairs
}

// nodeOffsets maps every logical node, internal then leaf, to its
// absolute chunk index.
func (o overlay) nodeOffsets() []int {
	offsets := make([]int, 0, o.numNodes())
	for i := 0; i < o.numInternalNodes(); i++ {
		offsets = append(offsets, o.offset+i)
	}
	next := o.offset + o.numInternalNodes()
	for i := 0; i < o.numLeafNodes(); i++ {
		offsets = append(offsets, next)
		next += o.leafSegment(i)
	}
	return offsets
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
