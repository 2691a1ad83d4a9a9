// SPDX-License-Identifier: MIT
package waveform

import "math"

// Sample returns kind's value at phase, measured in table cells. Integer
// phases return the looked-up cell; fractional phases interpolate linearly
// towards the next cell, following the half-period rules across the table
// boundary.
func (t *Table) Sample(kind Kind, phase float64) float32 {
	base := math.Floor(phase)
	p := int(base)

	a := t.lookup(kind, p)
	frac := float32(phase - base)
	if frac == 0 {
		return a
	}
	b := t.lookup(kind, p+1)
	return a + frac*(b-a)
}

// Advance moves a phase accumulator on by step, wrapping at wrap.
func Advance(acc *float64, step, wrap float64) {
	*acc += step
	if *acc >= wrap {
		*acc -= wrap
	}
}

// Oscillator is one synthesis voice: a waveform kind, its phase
// accumulator and the per-sample step that sets its frequency.
type Oscillator struct {
	Kind      Kind
	Phase     float64
	Step      float64
	Amplitude float32
}

// NewOscillator returns a voice producing freq Hz at sampleRate, scaled to
// amplitude, using cells of t.
func NewOscillator(t *Table, kind Kind, freq, amplitude, sampleRate float64) Oscillator {
	return Oscillator{
		Kind:      kind,
		Step:      freq * t.Period(kind) / sampleRate,
		Amplitude: float32(amplitude),
	}
}

// Frequency returns the frequency the oscillator produces at sampleRate.
func (o *Oscillator) Frequency(t *Table, sampleRate float64) float64 {
	return o.Step * sampleRate / t.Period(o.Kind)
}

// Next returns the current scaled sample and advances the phase.
func (o *Oscillator) Next(t *Table) float32 {
	s := t.Sample(o.Kind, o.Phase) * o.Amplitude
	Advance(&o.Phase, o.Step, t.Wrap())
	return s
}
