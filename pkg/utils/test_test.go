// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"os"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 8000
	testFrequency  = 697.0 // Lowest keypad row tone
)

var testMagnitudes []float32

func TestMain(m *testing.M) {
	testMagnitudes = make([]float32, testSize)

	// Create a peaked distribution with a known peak.
	for i := range testMagnitudes {
		// Creates a "hill" with peak at position testSize/4.
		testMagnitudes[i] = float32(math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2)))
	}

	os.Exit(m.Run())
}

func TestMockTransport(t *testing.T) {
	tests := []struct {
		name      string
		inputData []float32
	}{
		{"Empty Data", []float32{}},
		{"Single Value", []float32{0.5}},
		{"Multiple Values", []float32{0.1, 0.2, 0.3, 0.4, 0.5}},
		{"Large Dataset", make([]float32, 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := &MockTransport{}

			if err := mt.Send(tt.inputData); err != nil {
				t.Errorf("MockTransport.Send() error = %v", err)
			}

			stored, ok := mt.Last().([]float32)
			if !ok {
				t.Fatalf("MockTransport.Last() = %T, want []float32", mt.Last())
			}
			if len(stored) != len(tt.inputData) {
				t.Errorf("MockTransport.Send() stored length = %d, want %d",
					len(stored), len(tt.inputData))
			}

			if len(tt.inputData) > 0 {
				originalValue := tt.inputData[0]
				tt.inputData[0] = 999.999 // Modify original.

				if stored[0] == 999.999 {
					t.Errorf("MockTransport.Send() stored reference instead of copy")
				}

				tt.inputData[0] = originalValue
			}
		})
	}

	mt := &MockTransport{}
	_ = mt.Send("event")
	_ = mt.Close()
	if mt.Len() != 1 || mt.Last() != "event" || !mt.Closed {
		t.Errorf("MockTransport state = %+v", mt.Sent)
	}
}

func TestGenerateComplexWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
	}{
		{"Standard", 1024, 44100},
		{"Small", 16, 8000},
		{"Large", 8192, 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateComplexWave(tt.size, tt.sampleRate)

			if len(result) != 2*tt.size {
				t.Errorf("GenerateComplexWave() buffer size = %d, want %d",
					len(result), 2*tt.size)
			}

			// Check non-zero values (signal should have content).
			hasNonZero := false
			for _, v := range result {
				if v != 0 {
					hasNonZero = true
					break
				}
			}

			if !hasNonZero {
				t.Errorf("GenerateComplexWave() produced all zeros")
			}
		})
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"Row Tone", 1024, 8000, testFrequency},
		{"Column Tone", 1024, 8000, 1633},
		{"High Sample Rate", 1024, 192000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency)

			if len(result) != 2*tt.size {
				t.Errorf("GenerateSineWave() buffer size = %d, want %d",
					len(result), 2*tt.size)
			}

			samplesPerCycle := tt.sampleRate / tt.frequency

			// Count zero crossings on the left channel.
			crossCount := 0
			for i := 1; i < tt.size; i++ {
				prev, cur := result[2*(i-1)], result[2*i]
				if (prev < 0 && cur >= 0) || (prev >= 0 && cur < 0) {
					crossCount++
				}
			}

			// Rough approximation of expected crossings (2 per cycle).
			expectedCrossings := float64(tt.size) / (samplesPerCycle / 2)
			// Allow 20% margin of error due to phase alignment and sampling.
			tolerance := 0.2 * expectedCrossings

			if math.Abs(float64(crossCount)-expectedCrossings) > tolerance {
				t.Errorf("GenerateSineWave() zero crossings = %d, expected approximately %.1f±%.1f",
					crossCount, expectedCrossings, tolerance)
			}
		})
	}
}

func TestGenerateStereoTonesSeparatesChannels(t *testing.T) {
	frame := GenerateStereoTones(64, testSampleRate, 1000, []float64{testFrequency}, nil)
	for i := 0; i < 64; i++ {
		if frame[2*i+1] != 0 {
			t.Fatalf("right sample %d = %d, want silence", i, frame[2*i+1])
		}
	}
}

func TestGenerateDualToneSaturates(t *testing.T) {
	frame := GenerateDualTone(256, testSampleRate, 697, 1209, math.MaxInt16)
	for _, v := range frame {
		if v == math.MinInt16 || v == math.MaxInt16 {
			return
		}
	}
	t.Errorf("GenerateDualTone() at full scale never reached the int16 limits")
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		mags     []float32
		start    int
		end      int
		expected int
	}{
		{"Full Range", testMagnitudes, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", testMagnitudes, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", testMagnitudes, 0, testSize / 3, testSize / 4},
		{"Negative Start", testMagnitudes, -10, testSize - 1, testSize / 4},
		{"Out of Range End", testMagnitudes, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float32{}, 0, 10, 0},
		{"Single Value", []float32{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindPeakBin(tt.mags, tt.start, tt.end)

			if result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(testMagnitudes, 0, len(testMagnitudes)-1)
	})

	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkGenerateDualTone(b *testing.B) {
	benchmarks := []struct {
		name string
		size int
	}{
		{"Small", 64},
		{"Standard", 256},
		{"Large", 8192},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			for bn := 0; bn < b.N; bn++ {
				GenerateDualTone(bm.size, testSampleRate, 770, 1336, 8000)
			}
		})
	}
}

func BenchmarkFindPeakBin(b *testing.B) {
	mags := make([]float32, 8192)
	for i := range mags {
		mags[i] = float32(i % 97)
	}
	b.ReportAllocs()
	for bn := 0; bn < b.N; bn++ {
		FindPeakBin(mags, 0, len(mags)-1)
	}
}
