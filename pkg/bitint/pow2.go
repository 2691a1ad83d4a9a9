// SPDX-License-Identifier: MIT
/*
Package bitint provides the bit manipulation helpers the frame pipeline
needs for power-of-two sizing: frame and FFT sizes, table lengths and the
bit-reversed ordering produced by the in-place radix-2 transform.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) or O(log n) with no data dependent branches
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Reject frame sizes the FFT cannot handle
	ok := bitint.IsPowerOfTwo(frameSize)

	// Number of butterfly stages for a 256 point transform
	stages := bitint.Log2(256) // Returns 8

	// Index 1 of an 8 point transform is stored at index 4 after the butterflies
	j := bitint.Reverse(1, 3) // Returns 4

----------------------------------------------------------------------

What this code does:

	NextPowerOfTwo returns the next power of 2 greater than or
	equal to size. The subtraction (size-1) keeps powers of 2
	unchanged:

	- For input 8 (binary 1000):
	  size-1 = 7 (binary 0111)
	  bits.Len(7) = 3
	  1 << 3 = 8

	Without it bits.Len(8) = 4 and the input would be doubled.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
// Examples:
//
//	Input  Output  Explanation
//	4      4      Already power of 2 (preserved)
//	5      8      Next power after 5
//	0      1      Handle zero case
//	-1     1      Handle negative case
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// The expression (n & (n-1)) == 0 works because:
//   - Powers of 2 have exactly one bit set
//   - Subtracting 1 from a power of 2 sets all lower bits
//   - AND operation will be 0 only for powers of 2
//
// Examples:
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
//	-8     false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the base 2 logarithm of a power of two, which is the number
// of butterfly stages of an n point radix-2 transform. For other inputs it
// returns floor(log2(n)); n <= 0 yields 0.
func Log2(n int) int {
	if n <= 0 {
		return 0
	}
	return bits.Len(uint(n)) - 1
}

// Reverse returns the lowest width bits of i in reverse order.
//
//	Reverse(1, 3) = 4   (001 -> 100)
//	Reverse(6, 3) = 3   (110 -> 011)
func Reverse(i, width int) int {
	if width <= 0 {
		return 0
	}
	return int(bits.Reverse(uint(i)) >> (bits.UintSize - width))
}
