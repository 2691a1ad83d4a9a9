// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the window applied to a frame before the transform.
type WindowFunc int

// Enum for available window functions.
const (
	Rectangular WindowFunc = iota // No windowing
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc.
// Unknown names return Rectangular and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "", "none", "rectangular":
		return Rectangular, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Rectangular, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// Window holds pre-computed coefficients for one frame size.
type Window struct {
	kind   WindowFunc
	coeffs []float32
}

// NewWindow computes the coefficients of kind for frames of n samples.
func NewWindow(kind WindowFunc, n int) *Window {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}

	switch kind {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	}

	w := &Window{kind: kind, coeffs: make([]float32, n)}
	for i, c := range coeffs {
		w.coeffs[i] = float32(c)
	}
	return w
}

// Kind returns the window function.
func (w *Window) Kind() WindowFunc {
	return w.kind
}

// Apply multiplies frame by the window in place. A rectangular window
// leaves the frame untouched.
func (w *Window) Apply(frame []complex64) {
	if w == nil || w.kind == Rectangular {
		return
	}
	for i := range frame {
		c := w.coeffs[i]
		frame[i] = complex(real(frame[i])*c, imag(frame[i])*c)
	}
}
