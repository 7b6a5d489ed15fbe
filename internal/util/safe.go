package util

import "math"

// SafeInt64Diff returns a-b as int64, or 0 when the difference would
// underflow or exceed math.MaxInt64.
func SafeInt64Diff(a, b uint64) int64 {
	if a < b {
		return 0
	}
	if d := a - b; d <= math.MaxInt64 {
		return int64(d)
	}
	return 0
}

// SafeUint64 converts v to uint64, mapping negatives to 0.
func SafeUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
