package treehash

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"
)

// New builds a fresh cache for item. Supported values mirror the wire
// codec: booleans, unsigned integers, fixed byte arrays, byte slices,
// slices of basics, structs and slices of structs, plus pointers to any
// of these. Unexported struct fields and fields tagged `ssz:"skip"` do
// not contribute to the root.
func New(item interface{}) (*TreeHashCache, error) {
	v, err := derefValue(reflect.ValueOf(item))
	if err != nil {
		return nil, err
	}
	return buildCache(v, 0)
}

// Update walks item against the cache, rehashing only the subtrees
// whose values changed. The item must have the same type as the one the
// cache was built from.
func (c *TreeHashCache) Update(item interface{}) error {
	if c.isEmpty() {
		return ErrCacheNotInitialized
	}
	v, err := derefValue(reflect.ValueOf(item))
	if err != nil {
		return err
	}
	c.resetModifications()
	return updateCache(v, c)
}

// HashTreeRoot computes the merkle root of item without retaining a
// cache.
func HashTreeRoot(item interface{}) ([32]byte, error) {
	cache, err := New(item)
	if err != nil {
		return [32]byte{}, err
	}
	return cache.Root()
}

type hashKind int

const (
	kindBasic hashKind = iota
	kindByteVector
	kindPackedList
	kindContainer
	kindCompositeList
)

func classify(typ reflect.Type) (hashKind, error) {
	switch typ.Kind() {
	case reflect.Bool, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return kindBasic, nil
	case reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			return kindByteVector, nil
		}
		return 0, fmt.Errorf("treehash: unsupported array element %v", typ.Elem())
	case reflect.Slice:
		elem := typ.Elem()
		for elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		switch elem.Kind() {
		case reflect.Bool, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return kindPackedList, nil
		case reflect.Struct, reflect.Array:
			return kindCompositeList, nil
		default:
			return 0, fmt.Errorf("treehash: unsupported slice element %v", elem)
		}
	case reflect.Struct:
		return kindContainer, nil
	default:
		return 0, fmt.Errorf("treehash: unsupported type %v", typ)
	}
}

func derefValue(v reflect.Value) (reflect.Value, error) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return v, fmt.Errorf("treehash: cannot hash nil %v", v.Type())
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return v, fmt.Errorf("treehash: cannot hash untyped nil")
	}
	return v, nil
}

// packedWidth is the byte width of a basic value inside a packed leaf.
func packedWidth(typ reflect.Type) int {
	switch typ.Kind() {
	case reflect.Bool, reflect.Uint8:
		return 1
	case reflect.Uint16:
		return 2
	case reflect.Uint32:
		return 4
	default:
		return 8
	}
}

// packedEncoding serializes a basic value at its packed width, matching
// the big-endian wire codec.
func packedEncoding(v reflect.Value) []byte {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return []byte{1}
		}
		return []byte{0}
	case reflect.Uint8:
		return []byte{uint8(v.Uint())}
	case reflect.Uint16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v.Uint()))
		return b
	case reflect.Uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v.Uint()))
		return b
	default:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v.Uint())
		return b
	}
}

// packedLeaves serializes every element of a packed list back to back.
func packedLeaves(v reflect.Value) []byte {
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
		return v.Bytes()
	}
	width := packedWidth(v.Type().Elem())
	out := make([]byte, 0, v.Len()*width)
	for i := 0; i < v.Len(); i++ {
		out = append(out, packedEncoding(v.Index(i))...)
	}
	return out
}

func byteArrayContents(v reflect.Value) []byte {
	b := make([]byte, v.Len())
	for i := 0; i < v.Len(); i++ {
		b[i] = uint8(v.Index(i).Uint())
	}
	return b
}

// sanitizedLeafCount is the padded leaf chunk count of nbytes of packed
// data, never less than one.
func sanitizedLeafCount(nbytes int) int {
	present := (nbytes + BytesPerChunk - 1) / BytesPerChunk
	return nextPowerOfTwo(present)
}

func hashStructFields(typ reflect.Type) []int {
	var fields []int
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.PkgPath != "" || strings.Contains(f.Tag.Get("ssz"), "skip") {
			continue
		}
		fields = append(fields, i)
	}
	return fields
}

// numCacheChunks is the total chunk footprint of a value's tree,
// including the two length nodes that wrap every list.
func numCacheChunks(v reflect.Value) (int, error) {
	v, err := derefValue(v)
	if err != nil {
		return 0, err
	}
	kind, err := classify(v.Type())
	if err != nil {
		return 0, err
	}
	switch kind {
	case kindBasic:
		return 1, nil
	case kindByteVector:
		leaves := sanitizedLeafCount(v.Len())
		return 2*leaves - 1, nil
	case kindPackedList:
		leaves := sanitizedLeafCount(v.Len() * packedWidth(v.Type().Elem()))
		return 2*leaves - 1 + 2, nil
	case kindContainer, kindCompositeList:
		sch, err := schemaOf(v, 0)
		if err != nil {
			return 0, err
		}
		n := sch.intoOverlay(0).numChunks()
		if kind == kindCompositeList {
			n += 2
		}
		return n, nil
	}
	return 0, fmt.Errorf("treehash: unreachable kind %d", kind)
}

// schemaOf computes the leaf layout of a composite value. Basic values
// and byte vectors occupy single-chunk leaves; container fields and
// list items occupy their full chunk footprint.
func schemaOf(v reflect.Value, depth int) (schema, error) {
	kind, err := classify(v.Type())
	if err != nil {
		return schema{}, err
	}
	switch kind {
	case kindBasic:
		return newSchema(depth, []int{1}), nil
	case kindByteVector:
		leaves := sanitizedLeafCount(v.Len())
		return newSchema(depth, onesOf(leaves)), nil
	case kindPackedList:
		leaves := sanitizedLeafCount(v.Len() * packedWidth(v.Type().Elem()))
		return newSchema(depth, onesOf(leaves)), nil
	case kindContainer:
		fields := hashStructFields(v.Type())
		lengths := make([]int, 0, len(fields))
		for _, i := range fields {
			n, err := numCacheChunks(v.Field(i))
			if err != nil {
				return schema{}, err
			}
			lengths = append(lengths, n)
		}
		return newSchema(depth, lengths), nil
	case kindCompositeList:
		lengths := make([]int, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			n, err := numCacheChunks(v.Index(i))
			if err != nil {
				return schema{}, err
			}
			lengths = append(lengths, n)
		}
		return newSchema(depth, lengths), nil
	}
	return schema{}, fmt.Errorf("treehash: unreachable kind %d", kind)
}

func onesOf(n int) []int {
	ones := make([]int, n)
	for i := range ones {
		ones[i] = 1
	}
	return ones
}

func buildCache(v reflect.Value, depth int) (*TreeHashCache, error) {
	v, err := derefValue(v)
	if err != nil {
		return nil, err
	}
	kind, err := classify(v.Type())
	if err != nil {
		return nil, err
	}
	switch kind {
	case kindBasic:
		return fromBytes(Merkleize(packedEncoding(v)), false, nil)

	case kindByteVector:
		// Fixed shape, no schema needed.
		return fromBytes(Merkleize(byteArrayContents(v)), false, nil)

	case kindPackedList:
		sch, err := schemaOf(v, depth)
		if err != nil {
			return nil, err
		}
		cache, err := fromBytes(Merkleize(packedLeaves(v)), false, &sch)
		if err != nil {
			return nil, err
		}
		start, end := sch.intoOverlay(0).chunkRange()
		if err := cache.addLengthNodes(start, end, v.Len()); err != nil {
			return nil, err
		}
		return cache, nil

	case kindContainer:
		fields := hashStructFields(v.Type())
		subtrees := make([]*TreeHashCache, 0, len(fields))
		for _, i := range fields {
			sub, err := buildCache(v.Field(i), depth)
			if err != nil {
				return nil, err
			}
			subtrees = append(subtrees, sub)
		}
		sch, err := schemaOf(v, depth)
		if err != nil {
			return nil, err
		}
		return fromLeavesAndSubtrees(sch.intoOverlay(0), subtrees, false)

	case kindCompositeList:
		subtrees := make([]*TreeHashCache, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			sub, err := buildCache(v.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			subtrees = append(subtrees, sub)
		}
		sch, err := schemaOf(v, depth)
		if err != nil {
			return nil, err
		}
		cache, err := fromLeavesAndSubtrees(sch.intoOverlay(0), subtrees, true)
		if err != nil {
			return nil, err
		}
		start, end := sch.intoOverlay(0).chunkRange()
		if err := cache.addLengthNodes(start, end, v.Len()); err != nil {
			return nil, err
		}
		return cache, nil
	}
	return nil, fmt.Errorf("treehash: unreachable kind %d", kind)
}

func updateCache(v reflect.Value, c *TreeHashCache) error {
	v, err := derefValue(v)
	if err != nil {
		return err
	}
	kind, err := classify(v.Type())
	if err != nil {
		return err
	}
	switch kind {
	case kindBasic:
		tree := Merkleize(packedEncoding(v))
		if err := c.maybeUpdateChunk(c.chunkIndex, tree[:BytesPerChunk]); err != nil {
			return err
		}
		c.chunkIndex++
		return nil

	case kindByteVector:
		// Recompute the small fixed tree and diff it chunk by chunk.
		tree := Merkleize(byteArrayContents(v))
		chunks := len(tree) / BytesPerChunk
		for i := 0; i < chunks; i++ {
			if err := c.maybeUpdateChunk(c.chunkIndex+i, tree[i*BytesPerChunk:(i+1)*BytesPerChunk]); err != nil {
				return err
			}
		}
		c.chunkIndex += chunks
		return nil

	case kindContainer:
		sch, err := schemaOf(v, 0)
		if err != nil {
			return err
		}
		ov := sch.intoOverlay(c.chunkIndex)
		c.chunkIndex = ov.firstLeafNode()
		for _, i := range hashStructFields(v.Type()) {
			if err := updateCache(v.Field(i), c); err != nil {
				return err
			}
		}
		if err := c.updateInternalNodes(ov); err != nil {
			return err
		}
		c.chunkIndex = ov.nextNode()
		return nil

	case kindPackedList, kindCompositeList:
		// Skip the mixed-in root wrapping the list tree.
		c.chunkIndex++
		newOv, err := updateList(v, c, kind)
		if err != nil {
			return err
		}
		start, end := newOv.chunkRange()
		if err := c.mixInLength(start, end, uint64(v.Len())); err != nil {
			return err
		}
		// Skip the length chunk.
		c.chunkIndex++
		return nil
	}
	return fmt.Errorf("treehash: unreachable kind %d", kind)
}

// updateList reconciles a list's stored tree against its current value.
// The stored schema describes the old layout; a new overlay is computed
// from the value, internal nodes are resized, and then each leaf slot
// is updated, inserted, zeroed or removed as the list demands.
func updateList(v reflect.Value, c *TreeHashCache, kind hashKind) (overlay, error) {
	oldOv, err := c.getOverlay(c.schemaIndex, c.chunkIndex)
	if err != nil {
		return overlay{}, err
	}
	sch, err := schemaOf(v, oldOv.depth)
	if err != nil {
		return overlay{}, err
	}
	newOv := sch.intoOverlay(c.chunkIndex)

	if _, err := c.replaceOverlay(c.schemaIndex, c.chunkIndex, newOv); err != nil {
		return overlay{}, err
	}
	c.schemaIndex++

	if kind == kindPackedList {
		if err := updatePackedLeaves(v, c, oldOv, newOv); err != nil {
			return overlay{}, err
		}
	} else {
		if err := updateCompositeLeaves(v, c, oldOv, newOv); err != nil {
			return overlay{}, err
		}
		c.removeProceedingChildSchemas(c.schemaIndex, newOv.depth)
	}

	if err := c.updateInternalNodes(newOv); err != nil {
		return overlay{}, err
	}
	c.chunkIndex = newOv.nextNode()
	return newOv, nil
}

func updatePackedLeaves(v reflect.Value, c *TreeHashCache, oldOv, newOv overlay) error {
	oldLeaves := oldOv.numLeafNodes()
	newLeaves := newOv.numLeafNodes()
	first := newOv.firstLeafNode()

	// Resize the leaf region before diffing its contents.
	if newLeaves > oldLeaves {
		extra := newLeaves - oldLeaves
		c.splice(first+oldLeaves, first+oldLeaves, make([]byte, extra*BytesPerChunk), make([]bool, extra))
	} else if newLeaves < oldLeaves {
		c.splice(first+newLeaves, first+oldLeaves, nil, nil)
	}

	width := packedWidth(v.Type().Elem())
	factor := BytesPerChunk / width
	for i := 0; i < newLeaves; i++ {
		buf := make([]byte, BytesPerChunk)
		for j := 0; j < factor; j++ {
			idx := i*factor + j
			if idx < v.Len() {
				copy(buf[j*width:], packedEncoding(v.Index(idx)))
			}
		}
		if err := c.maybeUpdateChunk(first+i, buf); err != nil {
			return err
		}
	}
	return nil
}

func updateCompositeLeaves(v reflect.Value, c *TreeHashCache, oldOv, newOv overlay) error {
	oldLeaves := oldOv.numLeafNodes()
	newLeaves := newOv.numLeafNodes()
	maxLeaves := oldLeaves
	if newLeaves > maxLeaves {
		maxLeaves = newLeaves
	}

	cursor := newOv.firstLeafNode()
	for i := 0; i < maxLeaves; i++ {
		// Span of whatever currently occupies this slot in the cache.
		oldSeg := 0
		if i < oldLeaves {
			oldSeg = oldOv.leafSegment(i)
		}

		switch {
		case i < v.Len():
			if i < len(oldOv.lengths) {
				// Item existed before; update it in place.
				c.chunkIndex = cursor
				if err := updateCache(v.Index(i), c); err != nil {
					return err
				}
				cursor = c.chunkIndex
			} else {
				// The list lengthened; build the new item's subtree and
				// splice it over the padding (or append it).
				sub, err := buildCache(v.Index(i), newOv.depth+1)
				if err != nil {
					return err
				}
				c.splice(cursor, cursor+oldSeg, sub.cache, allTrue(len(sub.chunkModified)))
				c.schemas = append(c.schemas[:c.schemaIndex],
					append(append([]schema{}, sub.schemas...), c.schemas[c.schemaIndex:]...)...)
				c.schemaIndex += len(sub.schemas)
				cursor += len(sub.chunkModified)
			}

		case i < newLeaves:
			// Padding slot in the new tree.
			if i >= len(oldOv.lengths) && oldSeg == 1 {
				// Was already a padding chunk; leave it be.
				cursor++
				break
			}
			c.splice(cursor, cursor+oldSeg, make([]byte, BytesPerChunk), []bool{true})
			cursor++

		default:
			// The slot fell off the end of the new, narrower tree.
			c.splice(cursor, cursor+oldSeg, nil, nil)
		}
	}
	return nil
}

func allTrue(n int) []bool {
	flags := make([]bool, n)
	for i := range flags {
		flags[i] = true
	}
	return flags
}
