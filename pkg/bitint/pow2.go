/*
Package bitint provides the power-of-two helpers used to validate capture
block sizes and to size byte rings.

Both functions are O(1), allocation free and safe to call from the capture
worker.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
// Subtracting 1 before taking the bit length keeps exact powers of two
// unchanged: 8-1 = 0111, bits.Len = 3, 1<<3 = 8.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2. A power of two has a single bit
// set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
