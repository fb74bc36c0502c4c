// Package sliceutil implements set operations for uint64 index slices.
package sliceutil

// UnionUint64 returns the all elements between two uint64 slices,
// deduplicated and in first-seen order.
func UnionUint64(a []uint64, b []uint64) []uint64 {
	set := make(map[uint64]bool)
	union := make([]uint64, 0, len(a)+len(b))
	for _, v := range a {
		if !set[v] {
			set[v] = true
			union = append(union, v)
		}
	}
	for _, v := range b {
		if !set[v] {
			set[v] = true
			union = append(union, v)
		}
	}
	return union
}

// IntersectionUint64 returns the common elements between two uint64
// slices, deduplicated, in the order of the first slice.
func IntersectionUint64(a []uint64, b []uint64) []uint64 {
	set := make(map[uint64]bool)
	for _, v := range b {
		set[v] = true
	}
	var inter []uint64
	seen := make(map[uint64]bool)
	for _, v := range a {
		if set[v] && !seen[v] {
			seen[v] = true
			inter = append(inter, v)
		}
	}
	return inter
}

// NotUint64 returns the elements of b that are not in a, in b's order.
func NotUint64(a []uint64, b []uint64) []uint64 {
	set := make(map[uint64]bool)
	for _, v := range a {
		set[v] = true
	}
	var not []uint64
	for _, v := range b {
		if !set[v] {
			not = append(not, v)
		}
	}
	return not
}

// IsInUint64 returns true if a target uint64 is in the list.
func IsInUint64(a uint64, list []uint64) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}
