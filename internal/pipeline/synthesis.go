// SPDX-License-Identifier: MIT
package pipeline

import (
	"fmt"
	"sync/atomic"

	"tonepipe/internal/config"
	"tonepipe/internal/waveform"
)

// Codec is the single-sample transport used in synthesis mode. One
// ReadSample and one WriteSample happen per sample signal.
type Codec interface {
	ReadSample() (left, right int16)
	WriteSample(left, right int16)
}

// OverrunFlag reports an externally latched overrun condition.
type OverrunFlag interface {
	IsOverrun() bool
}

// SynthStats is a snapshot of the synthesizer counters.
type SynthStats struct {
	Samples uint64 // Samples written
	Skipped uint64 // Signals dropped because overrun was set
}

// Synthesizer is the synthesis-mode handler. It owns a bank of oscillators
// summed into both output channels.
type Synthesizer struct {
	table       *waveform.Table
	sampleRate  float64
	oscillators []waveform.Oscillator
	gain        float32
	overrun     OverrunFlag

	samples atomic.Uint64
	skipped atomic.Uint64
}

// NewSynthesizer builds the oscillator bank described by cfg. overrun may be
// nil when nothing can flag one.
func NewSynthesizer(cfg *config.Config, overrun OverrunFlag) (*Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	table, err := waveform.NewTable(cfg.Synthesis.TableSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	s := &Synthesizer{
		table:      table,
		sampleRate: cfg.Audio.SampleRate,
		gain:       float32(cfg.Synthesis.Gain),
		overrun:    overrun,
	}
	for _, oc := range cfg.Synthesis.Oscillators {
		kind, err := waveform.ParseKind(oc.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		s.oscillators = append(s.oscillators, waveform.NewOscillator(table, kind, oc.Frequency, oc.Amplitude, s.sampleRate))
	}
	return s, nil
}

// Table returns the lookup tables the oscillators read from.
func (s *Synthesizer) Table() *waveform.Table {
	return s.table
}

// SetVoices replaces the oscillator bank with one voice per frequency, all
// of kind and amplitude. No voices gives silence. Must not be called while
// the sample signal is active.
func (s *Synthesizer) SetVoices(kind waveform.Kind, amplitude float64, freqs ...float64) {
	s.oscillators = s.oscillators[:0]
	for _, f := range freqs {
		s.oscillators = append(s.oscillators, waveform.NewOscillator(s.table, kind, f, amplitude, s.sampleRate))
	}
}

// OnSample handles one sample signal. If overrun is flagged it returns
// without touching the codec. Otherwise it reads and discards the input
// pair, sums every oscillator, advances their phases and writes the result
// to both channels.
func (s *Synthesizer) OnSample(c Codec) {
	if s.overrun != nil && s.overrun.IsOverrun() {
		s.skipped.Add(1)
		return
	}

	_, _ = c.ReadSample()

	var sum float32
	for i := range s.oscillators {
		sum += s.oscillators[i].Next(s.table)
	}
	out := ToSample16(sum * s.gain)
	c.WriteSample(out, out)

	s.samples.Add(1)
}

// Render delivers n sample signals to c back to back. Used when the codec
// is a file rather than a live transport.
func (s *Synthesizer) Render(c Codec, n int) {
	for i := 0; i < n; i++ {
		s.OnSample(c)
	}
}

// Stats returns the synthesizer counters.
func (s *Synthesizer) Stats() SynthStats {
	return SynthStats{
		Samples: s.samples.Load(),
		Skipped: s.skipped.Load(),
	}
}
