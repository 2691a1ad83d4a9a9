// SPDX-License-Identifier: MIT
package fft

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Reference computes the DFT of src with gonum's complex FFT. It is used to
// cross-check Transform, not on the real-time path.
func Reference(src []complex64) []complex128 {
	seq := make([]complex128, len(src))
	for i, c := range src {
		seq[i] = complex128(c)
	}
	return fourier.NewCmplxFFT(len(src)).Coefficients(nil, seq)
}

// MaxDeviation returns the largest per-bin distance between got and want
// relative to the peak magnitude of want.
func MaxDeviation(got []complex64, want []complex128) float64 {
	var peak, worst float64
	for i := range want {
		if m := cmplx.Abs(want[i]); m > peak {
			peak = m
		}
		if d := cmplx.Abs(complex128(got[i]) - want[i]); d > worst {
			worst = d
		}
	}
	if peak == 0 {
		return worst
	}
	return worst / peak
}
