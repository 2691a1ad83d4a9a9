// SPDX-License-Identifier: MIT
package fft

import (
	"math"

	"tonepipe/pkg/bitint"
)

// Twiddles holds the complex rotation factors e^(-2πik/n), k = 0..n-1, for
// one transform size. Built once at startup and shared read-only by every
// analysis call.
type Twiddles []complex64

// NewTwiddles computes the twiddle table for an n point transform.
func NewTwiddles(n int) (Twiddles, error) {
	if !bitint.IsPowerOfTwo(n) {
		return nil, ErrNotPowerOfTwo
	}

	tw := make(Twiddles, n)
	for k := range tw {
		angle := 2 * math.Pi * float64(k) / float64(n)
		tw[k] = complex(float32(math.Cos(angle)), float32(-math.Sin(angle)))
	}
	return tw, nil
}

// Size returns the transform size the table was built for.
func (tw Twiddles) Size() int {
	return len(tw)
}
