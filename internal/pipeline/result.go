// SPDX-License-Identifier: MIT
package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"tonepipe/internal/analysis"
)

// Channel identifies one analysed input derived from a stereo frame.
type Channel int

const (
	ChannelMono  Channel = iota // Left + right
	ChannelLeft                 // Left only
	ChannelRight                // Right only
)

func (c Channel) String() string {
	switch c {
	case ChannelMono:
		return "mono"
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// FrameResult is the outcome of analysing one channel of one frame. Peaks
// and Frequencies alias processor scratch space and are only valid for the
// duration of an Observer call.
type FrameResult struct {
	Sequence    uint64          // Frames processed before this one
	Slot        int             // Ring slot the frame was read from
	Channel     Channel         // Which input was analysed
	Gated       bool            // The noise gate kept the frame out of analysis
	Peaks       []analysis.Peak // Ranked, strongest first
	Frequencies []float64       // Hz, parallel to Peaks
	Symbol      analysis.Symbol // Raw per-frame classification
	Held        analysis.Symbol // Debounced symbol, set while a key is held
	Pressed     analysis.Symbol // Set on the frame a new key press is accepted
}

// Observer receives per-channel results. It is called from the processing
// loop after the frame has been released, never from the completion
// signal.
type Observer interface {
	Observe(result *FrameResult)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(result *FrameResult)

func (f ObserverFunc) Observe(result *FrameResult) { f(result) }

// FrameSink receives the interleaved samples of every processed frame,
// including any pack-back. It is called from the processing loop.
type FrameSink interface {
	WriteFrame(frame []int16) error
}

// Stats is a snapshot of the processor counters.
type Stats struct {
	Frames   uint64 // Frames processed
	Gated    uint64 // Frames skipped by the noise gate
	Symbols  uint64 // Debounced key presses
	Overruns uint64 // Completion signals that found a frame unclaimed
	Overrun  bool   // Sticky overrun flag
}

type counters struct {
	frames  atomic.Uint64
	gated   atomic.Uint64
	symbols atomic.Uint64
}

// magnitudeSnapshot holds a copy of the latest magnitude spectrum for
// readers outside the processing loop. The writer never waits: if a reader
// holds the lock the update is skipped.
type magnitudeSnapshot struct {
	mu   sync.RWMutex
	mags []float32
	seq  uint64
}

func newMagnitudeSnapshot(n int) *magnitudeSnapshot {
	return &magnitudeSnapshot{mags: make([]float32, n)}
}

func (s *magnitudeSnapshot) update(mags []float32, seq uint64) {
	if !s.mu.TryLock() {
		return
	}
	copy(s.mags, mags)
	s.seq = seq
	s.mu.Unlock()
}

// MagnitudesInto copies the latest magnitude spectrum into dst and returns
// the sequence number of the frame it came from. dst must hold Size values.
func (s *magnitudeSnapshot) MagnitudesInto(dst []float32) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(dst) != len(s.mags) {
		return 0, fmt.Errorf("destination slice length %d does not match required length %d", len(dst), len(s.mags))
	}
	copy(dst, s.mags)
	return s.seq, nil
}

// Size returns the number of bins in a snapshot.
func (s *magnitudeSnapshot) Size() int {
	return len(s.mags)
}
