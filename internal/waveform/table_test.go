// SPDX-License-Identifier: MIT
package waveform

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const testTableSize = 256

func newTestTable(t *testing.T) *Table {
	t.Helper()
	tab, err := NewTable(testTableSize)
	require.NoError(t, err)
	return tab
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		want    Kind
		wantErr bool
	}{
		{"sine", Sine, false},
		{"Cosine", Cosine, false},
		{"SQUARE", Square, false},
		{"sawtooth", Sawtooth, false},
		{"triangle", Sine, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.name)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownKind)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, strings.ToLower(tt.name), got.String())
			}
		})
	}
}

func TestNewTableRejectsTinySizes(t *testing.T) {
	_, err := NewTable(1)
	assert.Error(t, err)
}

func TestSineHalfPeriodSignFlip(t *testing.T) {
	tab := newTestTable(t)
	L := float64(tab.Len())

	assert.Equal(t, tab.Entry(Sine, 0), tab.Sample(Sine, 0))
	assert.InDelta(t, -tab.Entry(Sine, 0), tab.Sample(Sine, L), 1e-7)
}

func TestSecondHalfRules(t *testing.T) {
	tab := newTestTable(t)
	L := tab.Len()

	for _, i := range []int{0, 1, L / 3, L - 1} {
		p := float64(L + i)
		assert.Equal(t, -tab.Entry(Sine, L-1-i), tab.Sample(Sine, p), "sine %d", i)
		assert.Equal(t, -tab.Entry(Square, L-1-i), tab.Sample(Square, p), "square %d", i)
		assert.Equal(t, tab.Entry(Cosine, L-1-i), tab.Sample(Cosine, p), "cosine %d", i)
		assert.Equal(t, tab.Entry(Sawtooth, i), tab.Sample(Sawtooth, p), "sawtooth %d", i)
	}
}

func TestSampleTracksIdealWaveform(t *testing.T) {
	tab := newTestTable(t)
	L := float64(tab.Len())

	ideal := map[Kind]func(x float64) float64{
		// x is the position within one period in [0, 1).
		Sine:   func(x float64) float64 { return math.Sin(2 * math.Pi * x) },
		Cosine: func(x float64) float64 { return math.Cos(2 * math.Pi * x) },
	}

	for kind, f := range ideal {
		t.Run(kind.String(), func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				phase := rapid.Float64Range(0, 2*L-1e-9).Draw(t, "phase")
				// Cells are sampled at their centres, so cell i sits at phase i+0.5.
				want := f((phase + 0.5) / (2 * L))
				got := float64(tab.Sample(kind, phase))
				if math.Abs(got-want) > 1e-3 {
					t.Fatalf("%s(%f) = %f, want %f", kind, phase, got, want)
				}
			})
		})
	}
}

func TestInterpolationAcrossHalfBoundary(t *testing.T) {
	tab := newTestTable(t)
	L := float64(tab.Len())

	// Midway between the last cell of the first half and the first cell of
	// the second half the sine crosses zero.
	assert.InDelta(t, 0, tab.Sample(Sine, L-0.5), 1e-6)

	// Wrapping from the end of the period back to phase 0.
	a := tab.Sample(Sine, 2*L-1)
	b := tab.Sample(Sine, 0)
	assert.InDelta(t, (a+b)/2, tab.Sample(Sine, 2*L-0.5), 1e-6)
}

func TestSquareLevels(t *testing.T) {
	tab := newTestTable(t)
	L := float64(tab.Len())

	assert.Equal(t, float32(1), tab.Sample(Square, 10))
	assert.Equal(t, float32(-1), tab.Sample(Square, L+10))
}

func TestSawtoothRamp(t *testing.T) {
	tab := newTestTable(t)
	L := tab.Len()

	for i := 1; i < L; i++ {
		assert.Greater(t, tab.Entry(Sawtooth, i), tab.Entry(Sawtooth, i-1))
	}
	assert.InDelta(t, -1, tab.Entry(Sawtooth, 0), 0.01)
	assert.InDelta(t, 1, tab.Entry(Sawtooth, L-1), 0.01)
	assert.Equal(t, float64(L), tab.Period(Sawtooth))
}

func TestNegativePhaseWraps(t *testing.T) {
	tab := newTestTable(t)
	L := float64(tab.Len())

	assert.Equal(t, tab.Sample(Sine, 2*L-3), tab.Sample(Sine, -3))
}
