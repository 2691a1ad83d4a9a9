// SPDX-License-Identifier: MIT
package analysis

import "math"

// DefaultTolerance is the relative half-width of each tone's acceptance band.
const DefaultTolerance = 0.035

// NumTones is the size of a dual-tone set: four row tones, then four column tones.
const NumTones = 8

const groupSize = NumTones / 2

// Symbol is a decoded key. NoSymbol means nothing was recognized.
type Symbol byte

// NoSymbol is the result of every failed classification.
const NoSymbol Symbol = 0

func (s Symbol) String() string {
	if s == NoSymbol {
		return ""
	}
	return string(rune(s))
}

// Tone is one canonical frequency and its relative tolerance.
type Tone struct {
	Frequency float64
	Tolerance float64
}

// Contains reports whether freq falls inside the tone's band.
func (t Tone) Contains(freq float64) bool {
	return math.Abs(freq-t.Frequency) <= t.Frequency*t.Tolerance
}

// ToneSet is a table of eight tones in increasing frequency and the 4x4
// symbol grid indexed by (row tone, column tone - 4).
type ToneSet struct {
	tones [NumTones]Tone
	grid  [groupSize][groupSize]Symbol
}

var dtmfFrequencies = [NumTones]float64{697, 770, 852, 941, 1209, 1336, 1477, 1633}

var dtmfGrid = [groupSize]string{
	"123A",
	"456B",
	"789C",
	"*0#D",
}

// NewDTMF returns the telephone keypad tone set with the given tolerance.
func NewDTMF(tolerance float64) *ToneSet {
	ts := &ToneSet{}
	for i, f := range dtmfFrequencies {
		ts.tones[i] = Tone{Frequency: f, Tolerance: tolerance}
	}
	for row, keys := range dtmfGrid {
		for col := 0; col < groupSize; col++ {
			ts.grid[row][col] = Symbol(keys[col])
		}
	}
	return ts
}

// DTMF is the default keypad tone set.
var DTMF = NewDTMF(DefaultTolerance)

// Tone returns the i-th canonical tone.
func (ts *ToneSet) Tone(i int) Tone {
	return ts.tones[i]
}

// Match returns the index of the first tone whose band contains freq,
// scanning in increasing frequency, or -1.
func (ts *ToneSet) Match(freq float64) int {
	for i, t := range ts.tones {
		if t.Contains(freq) {
			return i
		}
	}
	return -1
}

// Classify maps a pair of detected frequencies to a symbol. Exactly one
// must match a row tone and the other a column tone; anything else yields
// NoSymbol.
func (ts *ToneSet) Classify(freqA, freqB float64) Symbol {
	a := ts.Match(freqA)
	b := ts.Match(freqB)
	if a < 0 || b < 0 {
		return NoSymbol
	}

	low, high := a, b
	if low > high {
		low, high = high, low
	}
	if low >= groupSize || high < groupSize {
		return NoSymbol
	}
	return ts.grid[low][high-groupSize]
}

// Tones returns the row and column frequencies that encode s.
func (ts *ToneSet) Tones(s Symbol) (low, high float64, ok bool) {
	for row := range ts.grid {
		for col, key := range ts.grid[row] {
			if key == s && s != NoSymbol {
				return ts.tones[row].Frequency, ts.tones[groupSize+col].Frequency, true
			}
		}
	}
	return 0, 0, false
}
