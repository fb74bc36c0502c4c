// Package mathutil provides integer math used by the reward formulas.
package mathutil

// IntegerSquareRoot returns the largest integer x such that x*x <= n.
func IntegerSquareRoot(n uint64) uint64 {
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
