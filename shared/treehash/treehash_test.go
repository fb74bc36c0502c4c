package treehash

import (
	"bytes"
	"testing"

	"github.com/meridianchain/meridian/shared/bytesutil"
	"github.com/meridianchain/meridian/shared/hashutil"
)

type innerRecord struct {
	A uint64
	B uint64
}

type outerRecord struct {
	Slot    uint64
	Root    [32]byte
	Inner   innerRecord
	Numbers []uint64
	Records []innerRecord
}

func TestMerkleizeSingleChunk(t *testing.T) {
	chunk := make([]byte, 32)
	chunk[0] = 42
	tree := Merkleize(chunk)
	if len(tree) != 32 {
		t.Fatalf("single chunk tree should have 1 node, got %d bytes", len(tree))
	}
	if !bytes.Equal(tree, chunk) {
		t.Errorf("single chunk root should be the chunk itself")
	}
}

func TestMerkleizeTwoChunks(t *testing.T) {
	data := make([]byte, 64)
	data[0] = 1
	data[32] = 2
	tree := Merkleize(data)
	if len(tree) != 96 {
		t.Fatalf("two leaf tree should have 3 nodes, got %d bytes", len(tree))
	}
	want := hashutil.Hash(data)
	if !bytes.Equal(tree[:32], want[:]) {
		t.Errorf("root mismatch: got %x, want %x", tree[:32], want)
	}
}

func TestMerkleizePadsToPowerOfTwo(t *testing.T) {
	// Three leaves pad to four.
	data := make([]byte, 96)
	tree := Merkleize(data)
	if len(tree)/32 != 7 {
		t.Errorf("expected 7 nodes for 3 (padded to 4) leaves, got %d", len(tree)/32)
	}
}

func TestHashTreeRootUint64(t *testing.T) {
	root, err := HashTreeRoot(uint64(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var want [32]byte
	want[7] = 7 // big-endian uint64 left-aligned in the chunk
	if root != want {
		t.Errorf("root mismatch: got %x, want %x", root, want)
	}
}

func TestListRootMixesInLength(t *testing.T) {
	list := []uint64{1, 2, 3}
	root, err := HashTreeRoot(list)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 3 uint64s pack into a single chunk.
	leaves := make([]byte, 32)
	copy(leaves, packedLeavesForTest(list))
	lengthChunk := bytesutil.Bytes32LE(3)
	want := hashutil.Hash(append(leaves, lengthChunk[:]...))
	if root != want {
		t.Errorf("mixed-in root mismatch: got %x, want %x", root, want)
	}
}

func packedLeavesForTest(list []uint64) []byte {
	out := make([]byte, 0, 8*len(list))
	for _, x := range list {
		b := make([]byte, 8)
		for i := 0; i < 8; i++ {
			b[7-i] = byte(x >> uint(8*i))
		}
		out = append(out, b...)
	}
	return out
}

func TestEmptyAndNonEmptyListsDiffer(t *testing.T) {
	empty, err := HashTreeRoot([]uint64{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	one, err := HashTreeRoot([]uint64{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty == one {
		t.Errorf("length mix-in should distinguish [] from [0]")
	}
}

func TestUpdateUninitializedCache(t *testing.T) {
	c := &TreeHashCache{}
	if err := c.Update(uint64(1)); err != ErrCacheNotInitialized {
		t.Errorf("expected ErrCacheNotInitialized, got %v", err)
	}
	if _, err := c.Root(); err != ErrCacheNotInitialized {
		t.Errorf("expected ErrCacheNotInitialized, got %v", err)
	}
}

// checkAgainstFresh asserts the incremental root equals a from-scratch
// rebuild of the same value.
func checkAgainstFresh(t *testing.T, cache *TreeHashCache, item interface{}) {
	t.Helper()
	incremental, err := cache.Root()
	if err != nil {
		t.Fatalf("cached root failed: %v", err)
	}
	fresh, err := HashTreeRoot(item)
	if err != nil {
		t.Fatalf("fresh root failed: %v", err)
	}
	if incremental != fresh {
		t.Fatalf("incremental root %x diverged from fresh root %x", incremental, fresh)
	}
}

func TestIncrementalMatchesFresh(t *testing.T) {
	rec := &outerRecord{
		Slot:    1,
		Inner:   innerRecord{A: 10, B: 20},
		Numbers: []uint64{1, 2, 3},
		Records: []innerRecord{{A: 1}, {A: 2}, {A: 3}},
	}
	cache, err := New(rec)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	checkAgainstFresh(t, cache, rec)

	mutations := []func(){
		func() { rec.Slot = 2 },
		func() { rec.Root[0] = 0xFF },
		func() { rec.Inner.B = 99 },
		func() { rec.Numbers[1] = 42 },
		func() { rec.Records[2].A = 33 },
		func() { rec.Numbers = append(rec.Numbers, 4, 5) },
		func() { rec.Records = append(rec.Records, innerRecord{A: 4}, innerRecord{A: 5}) },
		func() { rec.Records = rec.Records[:2] },
		func() { rec.Numbers = rec.Numbers[:1] },
		func() { rec.Records = nil },
		func() { rec.Records = []innerRecord{{A: 7, B: 8}} },
	}
	for i, mutate := range mutations {
		mutate()
		if err := cache.Update(rec); err != nil {
			t.Fatalf("mutation %d: update failed: %v", i, err)
		}
		checkAgainstFresh(t, cache, rec)
	}
}

func TestUnchangedUpdateKeepsRoot(t *testing.T) {
	rec := &outerRecord{Slot: 5, Numbers: []uint64{9}}
	cache, err := New(rec)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	before, err := cache.Root()
	if err != nil {
		t.Fatalf("root failed: %v", err)
	}
	if err := cache.Update(rec); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	after, err := cache.Root()
	if err != nil {
		t.Fatalf("root failed: %v", err)
	}
	if before != after {
		t.Errorf("root changed without a mutation: %x vs %x", before, after)
	}
	for i, modified := range cache.chunkModified {
		if modified {
			t.Errorf("chunk %d flagged dirty after a no-op update", i)
		}
	}
}

func TestListGrowthAcrossTreeWidths(t *testing.T) {
	// Grow a list through several power-of-two boundaries, then shrink
	// it back down, checking the cache against a fresh build each step.
	var list []innerRecord
	holder := &struct{ Records []innerRecord }{}
	cache, err := New(holder)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	for i := 0; i < 9; i++ {
		list = append(list, innerRecord{A: uint64(i)})
		holder.Records = list
		if err := cache.Update(holder); err != nil {
			t.Fatalf("grow to %d: update failed: %v", i+1, err)
		}
		checkAgainstFresh(t, cache, holder)
	}
	for _, n := range []int{8, 5, 4, 1, 0} {
		holder.Records = list[:n]
		if err := cache.Update(holder); err != nil {
			t.Fatalf("shrink to %d: update failed: %v", n, err)
		}
		checkAgainstFresh(t, cache, holder)
	}
}

func TestByteVectorUpdate(t *testing.T) {
	holder := &struct {
		Key [48]byte
	}{}
	cache, err := New(holder)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	holder.Key[47] = 0xAB
	if err := cache.Update(holder); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	checkAgainstFresh(t, cache, holder)
}

func TestGrowShrinkMerkleTree(t *testing.T) {
	// A height-1 internal tree has 3 nodes.
	old := make([]byte, 3*BytesPerChunk)
	old[0] = 1
	oldFlags := []bool{false, false, false}

	grown, grownFlags, err := growMerkleTree(old, oldFlags, 1, 2)
	if err != nil {
		t.Fatalf("grow failed: %v", err)
	}
	if len(grown)/BytesPerChunk != 7 {
		t.Fatalf("expected 7 nodes after growing to height 2, got %d", len(grown)/BytesPerChunk)
	}
	// Old root moves to the first node of row 1.
	if grown[1*BytesPerChunk] != 1 {
		t.Errorf("old root not preserved in grown tree")
	}
	if !grownFlags[0] {
		t.Errorf("new root should be flagged dirty")
	}

	shrunk, _, err := shrinkMerkleTree(grown, grownFlags, 2, 1)
	if err != nil {
		t.Fatalf("shrink failed: %v", err)
	}
	if !bytes.Equal(shrunk[:BytesPerChunk], old[:BytesPerChunk]) {
		t.Errorf("shrink did not recover the original subtree root")
	}
}
