// Package treehash implements an incrementally-updatable merkle tree
// hasher. A TreeHashCache stores the full merkle tree of a value as a
// flat buffer of 32-byte chunks, internal nodes before leaves, with a
// parallel dirty bitmap. Updating the cache against a mutated value
// rehashes only the paths from changed leaves to the root, so the cost
// is proportional to the number of changed fields rather than the size
// of the structure.
package treehash

import (
	"bytes"
	"errors"

	"github.com/meridianchain/meridian/shared/bytesutil"
	"github.com/meridianchain/meridian/shared/hashutil"
)

// BytesPerChunk is the width of a single merkle tree node.
const BytesPerChunk = 32

var (
	// ErrCacheNotInitialized is returned when updating or rooting an
	// empty cache.
	ErrCacheNotInitialized = errors.New("treehash: cache not initialized")
	// ErrBytesAreNotEvenChunks is returned when raw cache bytes are not
	// a multiple of the chunk size.
	ErrBytesAreNotEvenChunks = errors.New("treehash: bytes are not even chunks")
	// ErrNoChunk is returned for an out-of-range chunk index.
	ErrNoChunk = errors.New("treehash: no chunk at index")
	// ErrNoSchema is returned for an out-of-range schema index.
	ErrNoSchema = errors.New("treehash: no schema at index")
	// ErrUnableToGrow is returned when internal nodes cannot be grown to
	// the requested height.
	ErrUnableToGrow = errors.New("treehash: unable to grow merkle tree")
	// ErrUnableToShrink is returned when internal nodes cannot be shrunk
	// to the requested height.
	ErrUnableToShrink = errors.New("treehash: unable to shrink merkle tree")
)

// TreeHashCache is the stored merkle tree of some value.
//
// Fixed-shape subtrees (containers, fixed byte vectors) derive their
// layout from the value itself, so only variable-length lists record a
// schema. The chunkIndex and schemaIndex fields are cursors used while
// walking the value during an update; they are reset at the start of
// every update.
type TreeHashCache struct {
	cache         []byte
	chunkModified []bool
	schemas       []schema

	chunkIndex  int
	schemaIndex int
}

// fromBytes wraps pre-merkleized bytes in a cache. The optional schema
// records the tree layout for variable-length lists.
func fromBytes(b []byte, modified bool, sch *schema) (*TreeHashCache, error) {
	if len(b)%BytesPerChunk != 0 {
		return nil, ErrBytesAreNotEvenChunks
	}
	flags := make([]bool, len(b)/BytesPerChunk)
	for i := range flags {
		flags[i] = modified
	}
	c := &TreeHashCache{cache: b, chunkModified: flags}
	if sch != nil {
		c.schemas = []schema{*sch}
	}
	return c, nil
}

// fromLeavesAndSubtrees assembles a cache for a composite value from
// the caches of its children. The children's roots become the leaves
// of a new merkle tree and their full trees are concatenated after the
// internal nodes. Lists additionally record their own schema ahead of
// any child schemas.
func fromLeavesAndSubtrees(ov overlay, subtrees []*TreeHashCache, isList bool) (*TreeHashCache, error) {
	internalBytes := ov.numInternalNodes() * BytesPerChunk
	cache := make([]byte, internalBytes, internalBytes+len(subtrees)*BytesPerChunk)

	leaves := make([]byte, 0, ov.numLeafNodes()*BytesPerChunk)
	var schemas []schema
	if isList {
		schemas = append(schemas, ov.intoSchema())
	}
	for _, t := range subtrees {
		root, err := t.Root()
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, root[:]...)
		cache = append(cache, t.cache...)
		schemas = append(schemas, t.schemas...)
	}

	// Pad the leaf region to an even power of two with zero chunks.
	cache = padForLeafCount(len(subtrees), cache)

	// Merkleize the leaf roots and overwrite the zeroed internal node
	// region with the internal nodes of the resulting tree.
	merkleized := Merkleize(leaves)
	copy(cache[:internalBytes], merkleized[:internalBytes])

	flags := make([]bool, len(cache)/BytesPerChunk)
	for i := range flags {
		flags[i] = true
	}
	return &TreeHashCache{cache: cache, chunkModified: flags, schemas: schemas}, nil
}

func (c *TreeHashCache) isEmpty() bool {
	return len(c.chunkModified) == 0
}

// Root returns the tree hash root of the cached value.
func (c *TreeHashCache) Root() ([32]byte, error) {
	if c.isEmpty() {
		return [32]byte{}, ErrCacheNotInitialized
	}
	return bytesutil.ToBytes32(c.cache[:BytesPerChunk]), nil
}

// resetModifications clears the dirty bitmap and rewinds the walk
// cursors ahead of an update.
func (c *TreeHashCache) resetModifications() {
	c.chunkIndex = 0
	c.schemaIndex = 0
	for i := range c.chunkModified {
		c.chunkModified[i] = false
	}
}

func (c *TreeHashCache) getOverlay(schemaIndex, chunkIndex int) (overlay, error) {
	if schemaIndex >= len(c.schemas) {
		return overlay{}, ErrNoSchema
	}
	return c.schemas[schemaIndex].intoOverlay(chunkIndex), nil
}

// replaceOverlay swaps the schema at schemaIndex for the one described
// by newOv, growing or shrinking the internal node region of the list's
// tree when its width changed. Leaf nodes are not touched; the caller
// reconciles them afterwards. Returns the displaced overlay.
func (c *TreeHashCache) replaceOverlay(schemaIndex, chunkIndex int, newOv overlay) (overlay, error) {
	oldOv, err := c.getOverlay(schemaIndex, chunkIndex)
	if err != nil {
		return overlay{}, err
	}

	if newOv.numInternalNodes() != oldOv.numInternalNodes() {
		start, end := oldOv.internalChunkRange()
		oldBytes, oldFlags, err := c.slices(start, end)
		if err != nil {
			return overlay{}, err
		}

		var newBytes []byte
		var newFlags []bool
		switch {
		case newOv.numInternalNodes() == 0:
			// The new tree needs no internal nodes at all.
		case oldOv.numInternalNodes() == 0:
			n := nodesInTreeOfHeight(newOv.height() - 1)
			newBytes = make([]byte, n*BytesPerChunk)
			newFlags = make([]bool, n)
			for i := range newFlags {
				newFlags[i] = true
			}
		case newOv.numInternalNodes() > oldOv.numInternalNodes():
			newBytes, newFlags, err = growMerkleTree(oldBytes, oldFlags, oldOv.height()-1, newOv.height()-1)
			if err != nil {
				return overlay{}, err
			}
		default:
			newBytes, newFlags, err = shrinkMerkleTree(oldBytes, oldFlags, oldOv.height()-1, newOv.height()-1)
			if err != nil {
				return overlay{}, err
			}
		}
		c.splice(start, end, newBytes, newFlags)
	}

	c.schemas[schemaIndex] = newOv.intoSchema()
	return oldOv, nil
}

// removeProceedingChildSchemas deletes the run of schemas starting at
// schemaIndex that belong to descendants of a list at the given depth.
// The run ends at the first schema at the same or a shallower depth.
func (c *TreeHashCache) removeProceedingChildSchemas(schemaIndex, depth int) {
	end := len(c.schemas)
	for i := schemaIndex; i < len(c.schemas); i++ {
		if c.schemas[i].depth <= depth {
			end = i
			break
		}
	}
	c.schemas = append(c.schemas[:schemaIndex], c.schemas[end:]...)
}

// updateInternalNodes rehashes every internal node of the overlay whose
// children changed, walking from the deepest parents up to the root.
func (c *TreeHashCache) updateInternalNodes(ov overlay) error {
	pairs := ov.internalParentsAndChildren()
	for i := len(pairs) - 1; i >= 0; i-- {
		parent, left, right := pairs[i][0], pairs[i][1], pairs[i][2]
		modified, err := c.eitherModified(left, right)
		if err != nil {
			return err
		}
		if modified {
			h, err := c.hashChildren(left, right)
			if err != nil {
				return err
			}
			if err := c.modifyChunk(parent, h); err != nil {
				return err
			}
		}
	}
	return nil
}

// splice replaces the chunk range [start, end) with the given bytes and
// flags, resizing the cache as needed.
func (c *TreeHashCache) splice(start, end int, b []byte, flags []bool) {
	c.cache = spliceBytes(c.cache, start*BytesPerChunk, end*BytesPerChunk, b)
	c.chunkModified = spliceBools(c.chunkModified, start, end, flags)
}

// maybeUpdateChunk writes the chunk only if it differs from the stored
// bytes, flagging it dirty on change.
func (c *TreeHashCache) maybeUpdateChunk(chunk int, to []byte) error {
	equal, err := c.chunkEquals(chunk, to)
	if err != nil {
		return err
	}
	if !equal {
		copy(c.cache[chunk*BytesPerChunk:(chunk+1)*BytesPerChunk], to)
		c.chunkModified[chunk] = true
	}
	return nil
}

// modifyChunk unconditionally overwrites the chunk and flags it dirty.
func (c *TreeHashCache) modifyChunk(chunk int, to []byte) error {
	if chunk >= len(c.chunkModified) {
		return ErrNoChunk
	}
	copy(c.cache[chunk*BytesPerChunk:(chunk+1)*BytesPerChunk], to)
	c.chunkModified[chunk] = true
	return nil
}

func (c *TreeHashCache) getChunk(chunk int) ([]byte, error) {
	if chunk >= len(c.chunkModified) || chunk < 0 {
		return nil, ErrNoChunk
	}
	return c.cache[chunk*BytesPerChunk : (chunk+1)*BytesPerChunk], nil
}

func (c *TreeHashCache) chunkEquals(chunk int, other []byte) (bool, error) {
	stored, err := c.getChunk(chunk)
	if err != nil {
		return false, err
	}
	return bytes.Equal(stored, other), nil
}

func (c *TreeHashCache) changed(chunk int) (bool, error) {
	if chunk >= len(c.chunkModified) || chunk < 0 {
		return false, ErrNoChunk
	}
	return c.chunkModified[chunk], nil
}

func (c *TreeHashCache) eitherModified(left, right int) (bool, error) {
	l, err := c.changed(left)
	if err != nil {
		return false, err
	}
	r, err := c.changed(right)
	if err != nil {
		return false, err
	}
	return l || r, nil
}

func (c *TreeHashCache) hashChildren(left, right int) ([]byte, error) {
	l, err := c.getChunk(left)
	if err != nil {
		return nil, err
	}
	r, err := c.getChunk(right)
	if err != nil {
		return nil, err
	}
	child := make([]byte, 0, 2*BytesPerChunk)
	child = append(child, l...)
	child = append(child, r...)
	h := hashutil.Hash(child)
	return h[:], nil
}

func (c *TreeHashCache) slices(start, end int) ([]byte, []bool, error) {
	if end > len(c.chunkModified) || start > end {
		return nil, nil, ErrNoChunk
	}
	b := make([]byte, (end-start)*BytesPerChunk)
	copy(b, c.cache[start*BytesPerChunk:end*BytesPerChunk])
	flags := make([]bool, end-start)
	copy(flags, c.chunkModified[start:end])
	return b, flags, nil
}

// addLengthNodes wraps the list tree occupying [start, end) with two
// extra nodes: a mixed-in root before the tree and a length chunk after
// it. The mixed-in root becomes hash(tree_root || little_endian_length).
func (c *TreeHashCache) addLengthNodes(start, end, length int) error {
	c.chunkModified[start] = true

	zero := make([]byte, BytesPerChunk)
	c.splice(end, end, zero, []bool{false})
	c.splice(start, start, make([]byte, BytesPerChunk), []bool{false})

	return c.mixInLength(start+1, end+1, uint64(length))
}

// mixInLength refreshes the length chunk at end and, if either the tree
// root at start or the length changed, rehashes the mixed-in root that
// sits immediately before start.
func (c *TreeHashCache) mixInLength(start, end int, length uint64) error {
	lengthChunk := bytesutil.Bytes32LE(length)
	if err := c.maybeUpdateChunk(end, lengthChunk[:]); err != nil {
		return err
	}
	modified, err := c.eitherModified(start, end)
	if err != nil {
		return err
	}
	if modified {
		h, err := c.hashChildren(start, end)
		if err != nil {
			return err
		}
		return c.modifyChunk(start-1, h)
	}
	return nil
}

func spliceBytes(dst []byte, start, end int, ins []byte) []byte {
	out := make([]byte, 0, len(dst)-(end-start)+len(ins))
	out = append(out, dst[:start]...)
	out = append(out, ins...)
	out = append(out, dst[end:]...)
	return out
}

func spliceBools(dst []bool, start, end int, ins []bool) []bool {
	out := make([]bool, 0, len(dst)-(end-start)+len(ins))
	out = append(out, dst[:start]...)
	out = append(out, ins...)
	out = append(out, dst[end:]...)
	return out
}
