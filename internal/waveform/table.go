// SPDX-License-Identifier: MIT
/*
Package waveform holds the precomputed lookup tables and the phase
accumulator synthesis used in signal-generation mode.

Each table stores one half period of its waveform, sampled at the centre of
each of its tableLen cells. A full period of sine, cosine and square spans
two tables: the second half reuses the first through a sign multiplier and,
where the shape is symmetric, a reversed index. The sawtooth table already
holds a complete ramp and repeats once per half.

	kind       half 0           half 1
	sine       +table[i]        -table[L-1-i]
	square     +table[i]        -table[L-1-i]
	cosine     +table[i]        +table[L-1-i]
	sawtooth   +table[i]        +table[i]
*/
package waveform

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownKind is returned when parsing an unsupported waveform name.
var ErrUnknownKind = errors.New("waveform: unknown kind")

// Kind selects a waveform.
type Kind int

const (
	Sine Kind = iota
	Cosine
	Square
	Sawtooth
	numKinds
)

var kindNames = [numKinds]string{"sine", "cosine", "square", "sawtooth"}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind converts a case-insensitive name to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(name, n) {
			return Kind(k), nil
		}
	}
	return Sine, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// halfRule is the sign and index mapping applied in the second half period.
type halfRule struct {
	sign    float32
	reverse bool
}

var secondHalf = [numKinds]halfRule{
	Sine:     {sign: -1, reverse: true},
	Cosine:   {sign: +1, reverse: true},
	Square:   {sign: -1, reverse: true},
	Sawtooth: {sign: +1, reverse: false},
}

// Table is the immutable set of lookup tables for every kind.
type Table struct {
	size   int
	tables [numKinds][]float32
}

// NewTable builds all lookup tables with size cells each.
func NewTable(size int) (*Table, error) {
	if size < 2 {
		return nil, fmt.Errorf("waveform: table size must be at least 2, got %d", size)
	}

	t := &Table{size: size}
	for k := range t.tables {
		t.tables[k] = make([]float32, size)
	}

	for i := 0; i < size; i++ {
		x := (float64(i) + 0.5) / float64(size)
		t.tables[Sine][i] = float32(math.Sin(math.Pi * x))
		t.tables[Cosine][i] = float32(math.Cos(math.Pi * x))
		t.tables[Square][i] = 1
		t.tables[Sawtooth][i] = float32(2*x - 1)
	}
	return t, nil
}

// Len returns the number of cells per table.
func (t *Table) Len() int {
	return t.size
}

// Wrap returns the phase bound at which every kind has completed a whole
// number of periods.
func (t *Table) Wrap() float64 {
	return float64(2 * t.size)
}

// Period returns the length of one period of kind in phase units.
func (t *Table) Period(kind Kind) float64 {
	if kind == Sawtooth {
		return float64(t.size)
	}
	return float64(2 * t.size)
}

// Entry returns raw cell i of kind's table.
func (t *Table) Entry(kind Kind, i int) float32 {
	return t.tables[kind][i]
}

// lookup returns the signed sample at integer phase p.
func (t *Table) lookup(kind Kind, p int) float32 {
	wrap := 2 * t.size
	p %= wrap
	if p < 0 {
		p += wrap
	}

	idx := p % t.size
	if p < t.size {
		return t.tables[kind][idx]
	}

	rule := secondHalf[kind]
	if rule.reverse {
		idx = t.size - 1 - idx
	}
	return rule.sign * t.tables[kind][idx]
}
