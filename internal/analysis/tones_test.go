// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want Symbol
	}{
		{"Row 0 column 1", 697, 1336, '2'},
		{"Order independent", 1336, 697, '2'},
		{"Within tolerance", 697 * 1.03, 1336 * 0.97, '2'},
		{"Star", 941, 1209, '*'},
		{"D", 941, 1633, 'D'},
		{"Five", 770, 1336, '5'},
		{"No match", 100, 100, NoSymbol},
		{"One side unmatched", 697, 2000, NoSymbol},
		{"Outside tolerance", 697 * 1.04, 1336, NoSymbol},
		{"Two row tones", 697, 770, NoSymbol},
		{"Two column tones", 1209, 1477, NoSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DTMF.Classify(tt.a, tt.b))
		})
	}
}

func TestMatchScansInOrder(t *testing.T) {
	ts := NewDTMF(0.2) // wide enough for bands to overlap
	assert.Equal(t, 0, ts.Match(740), "first band in increasing frequency wins")
	assert.Equal(t, -1, DTMF.Match(1000))
}

func TestTonesRoundTrip(t *testing.T) {
	for _, key := range "123A456B789C*0#D" {
		low, high, ok := DTMF.Tones(Symbol(key))
		if assert.True(t, ok, "key %c", key) {
			assert.Equal(t, Symbol(key), DTMF.Classify(low, high))
		}
	}

	_, _, ok := DTMF.Tones('X')
	assert.False(t, ok)
	_, _, ok = DTMF.Tones(NoSymbol)
	assert.False(t, ok)
}

func TestSymbolString(t *testing.T) {
	assert.Equal(t, "#", Symbol('#').String())
	assert.Equal(t, "", NoSymbol.String())
}
