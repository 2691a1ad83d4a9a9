// SPDX-License-Identifier: MIT
// Package utils holds signal generators and fakes shared by tests.
package utils

import (
	"math"
	"sync"
)

// MockTransport implements the transport.Transport interface for testing.
type MockTransport struct {
	mu     sync.Mutex
	Sent   []any
	Closed bool
}

// Send stores the data for later inspection instead of transmitting.
// Float slices are copied since callers reuse their buffers.
func (m *MockTransport) Send(data any) error {
	if v, ok := data.([]float32); ok {
		c := make([]float32, len(v))
		copy(c, v)
		data = c
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, data)
	m.mu.Unlock()
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// Last returns the most recently sent value, or nil.
func (m *MockTransport) Last() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return m.Sent[len(m.Sent)-1]
}

// Len returns the number of values sent.
func (m *MockTransport) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// GenerateStereoTones returns pairs interleaved left/right samples with a
// sum of sinusoids at freqsLeft on the left channel and freqsRight on the
// right, each at amplitude.
func GenerateStereoTones(pairs int, sampleRate, amplitude float64, freqsLeft, freqsRight []float64) []int16 {
	buffer := make([]int16, 2*pairs)
	for i := 0; i < pairs; i++ {
		t := float64(i) / sampleRate
		buffer[2*i] = sample16(tones(t, freqsLeft) * amplitude)
		buffer[2*i+1] = sample16(tones(t, freqsRight) * amplitude)
	}
	return buffer
}

// GenerateDualTone returns an interleaved frame carrying f1+f2 on both
// channels, the way a keypad tone arrives from a line input.
func GenerateDualTone(pairs int, sampleRate, f1, f2, amplitude float64) []int16 {
	both := []float64{f1, f2}
	return GenerateStereoTones(pairs, sampleRate, amplitude, both, both)
}

// GenerateSineWave returns an interleaved frame with one sinusoid on both
// channels at 90% of full scale.
func GenerateSineWave(pairs int, sampleRate, frequency float64) []int16 {
	f := []float64{frequency}
	return GenerateStereoTones(pairs, sampleRate, 0.9*math.MaxInt16, f, f)
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics on
// both channels.
func GenerateComplexWave(pairs int, sampleRate float64) []int16 {
	buffer := make([]int16, 2*pairs)
	for i := 0; i < pairs; i++ {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
		s := sample16(signal * math.MaxInt16 * 0.9)
		buffer[2*i] = s
		buffer[2*i+1] = s
	}
	return buffer
}

func tones(t float64, freqs []float64) float64 {
	var v float64
	for _, f := range freqs {
		v += math.Sin(2 * math.Pi * f * t)
	}
	return v
}

func sample16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// FindPeakBin returns the index of the largest magnitude in
// [startBin, endBin], clamped to the slice.
func FindPeakBin(magnitudes []float32, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
