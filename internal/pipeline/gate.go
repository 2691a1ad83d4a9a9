// SPDX-License-Identifier: MIT
package pipeline

import "math"

// noiseGate skips analysis of frames whose peak amplitude stays at or below
// a threshold.
type noiseGate struct {
	enabled   bool
	threshold int32 // Absolute amplitude threshold (0-32767)
}

func newNoiseGate(enabled bool, threshold float64) noiseGate {
	g := noiseGate{enabled: enabled}
	g.SetThreshold(threshold)
	return g
}

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *noiseGate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	g.threshold = int32(threshold * float64(math.MaxInt16))
}

// Threshold returns the current noise gate threshold as a float64.
func (g *noiseGate) Threshold() float64 {
	return float64(g.threshold) / float64(math.MaxInt16)
}

// Open reports whether frame is loud enough to analyse. A disabled gate is
// always open.
func (g *noiseGate) Open(frame []int16) bool {
	if !g.enabled {
		return true
	}
	return maxAmplitude(frame) > g.threshold
}

// maxAmplitude returns the largest absolute sample value. Branchless; the
// samples are widened first so that -32768 has a representable magnitude.
func maxAmplitude(frame []int16) int32 {
	var peak int32
	for i := range frame {
		sample := int32(frame[i])
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - peak
		peak += (diff & (diff >> 31)) ^ diff
	}
	return peak
}
