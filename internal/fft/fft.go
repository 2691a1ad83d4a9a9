// SPDX-License-Identifier: MIT
/*
Package fft implements the in-place radix-2 transform run on every ready
frame, its magnitude spectrum and the optional pre-transform window.

The transform works on natural order input: all butterfly stages run first,
the span halving and the twiddle stride doubling on each stage, and a final
bit-reversal pass restores natural order in the output. No normalization is
applied, so an n point transform scales its output by n.

Performance Critical:
- Transform and Magnitudes never allocate
- The twiddle table is computed once per size
*/
package fft

import (
	"errors"
	"math"

	"tonepipe/pkg/bitint"
)

var (
	// ErrNotPowerOfTwo is returned for transform sizes that are not a power of two.
	ErrNotPowerOfTwo = errors.New("fft: size must be a power of 2")
	// ErrSizeMismatch is returned when the frame and twiddle table sizes differ.
	ErrSizeMismatch = errors.New("fft: frame length does not match twiddle table")
)

// Transform replaces frame with its discrete Fourier transform. len(frame)
// must be a power of two equal to tw.Size().
func Transform(frame []complex64, tw Twiddles) error {
	n := len(frame)
	if !bitint.IsPowerOfTwo(n) {
		return ErrNotPowerOfTwo
	}
	if n != len(tw) {
		return ErrSizeMismatch
	}

	span := n / 2
	stride := 1
	for stage := bitint.Log2(n); stage > 0; stage-- {
		for j := 0; j < span; j++ {
			w := tw[j*stride]
			for upper := j; upper < n; upper += 2 * span {
				lower := upper + span
				a, b := frame[upper], frame[lower]
				frame[upper] = a + b
				frame[lower] = (a - b) * w
			}
		}
		span >>= 1
		stride <<= 1
	}

	BitReverse(frame)
	return nil
}

// BitReverse permutes frame into bit-reversed index order. Applying it
// twice restores the original order. Indices 0 and n-1 are fixed points and
// are not visited.
func BitReverse(frame []complex64) {
	n := len(frame)
	j := 0
	for i := 1; i < n-1; i++ {
		k := n / 2
		for k <= j {
			j -= k
			k /= 2
		}
		j += k
		if i < j {
			frame[i], frame[j] = frame[j], frame[i]
		}
	}
}

// Magnitudes writes |X[k]| for every bin of frame into dst and returns it.
// dst must be at least len(frame) long.
func Magnitudes(dst []float32, frame []complex64) []float32 {
	dst = dst[:len(frame)]
	for i, c := range frame {
		dst[i] = float32(math.Hypot(float64(real(c)), float64(imag(c))))
	}
	return dst
}
