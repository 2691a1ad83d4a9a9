// SPDX-License-Identifier: MIT
/*
Package pipeline runs the per-frame work of both operating modes.

In analysis mode a FrameProcessor polls the buffer ring from a single
cooperative loop. For every ready frame it:
- de-interleaves the stereo samples into float channel buffers
- builds one complex input per configured channel (mono sum, left, right)
- optionally windows and transforms each input in place
- computes magnitudes, finds and ranks peaks, and classifies the two
  strongest into a keypad symbol
- optionally packs the channel buffers back into the frame as 16-bit
  samples
and only then releases the slot. A frame that is still being processed when
the next completion signal arrives latches the ring's overrun flag.

In synthesis mode a Synthesizer is driven once per sample by the codec
transport and no ring is involved.

Performance Critical:
- All scratch space is allocated by the constructors
- Observers run after the slot has been released
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"tonepipe/internal/analysis"
	"tonepipe/internal/config"
	"tonepipe/internal/fft"
	"tonepipe/internal/log"
	"tonepipe/internal/ring"
)

// ErrInvalidConfig is returned by the constructors when the configuration
// cannot drive a pipeline.
var ErrInvalidConfig = errors.New("pipeline: invalid configuration")

// State is the processing loop state.
type State int32

const (
	StateIdle State = iota
	StateProcessing
)

func (s State) String() string {
	if s == StateProcessing {
		return "processing"
	}
	return "idle"
}

// ParseChannels maps a configured channel set to the analysed channels.
func ParseChannels(name string) ([]Channel, error) {
	switch name {
	case config.ChannelsMono:
		return []Channel{ChannelMono}, nil
	case config.ChannelsLeft:
		return []Channel{ChannelLeft}, nil
	case config.ChannelsRight:
		return []Channel{ChannelRight}, nil
	case config.ChannelsStereo:
		return []Channel{ChannelLeft, ChannelRight}, nil
	default:
		return nil, fmt.Errorf("%w: unknown channel set %q", ErrInvalidConfig, name)
	}
}

// FrameProcessor is the analysis-mode orchestrator.
type FrameProcessor struct {
	ring       *ring.BufferRing
	sampleRate float64

	twiddles fft.Twiddles
	window   *fft.Window
	tones    *analysis.ToneSet
	ws       *workspace
	gate     noiseGate

	runFFT    bool
	classify  bool
	fold      bool
	topPeaks  int
	packBack  bool
	packScale float32

	observers []Observer
	sinks     []FrameSink
	snapshot  *magnitudeSnapshot
	stats     counters
	state     atomic.Int32

	overrunSeen  bool // Rising-edge detector for overrun logging
	pollInterval time.Duration
	logger       *log.Logger
}

// NewFrameProcessor builds a processor for the frames of r. The ring's frame
// size must match the configured one.
func NewFrameProcessor(cfg *config.Config, r *ring.BufferRing) (*FrameProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	n := cfg.Audio.FrameSize
	if r.FrameSize() != n {
		return nil, fmt.Errorf("%w: ring holds %d sample pairs, frame size is %d", ErrInvalidConfig, r.FrameSize(), n)
	}

	channels, err := ParseChannels(cfg.Pipeline.Channels)
	if err != nil {
		return nil, err
	}
	windowKind, err := fft.ParseWindowFunc(cfg.Pipeline.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	twiddles, err := fft.NewTwiddles(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	fold := cfg.Pipeline.Spectrum == config.SpectrumFull
	bins := n/2 + 1
	if fold {
		bins = n
	}

	p := &FrameProcessor{
		ring:         r,
		sampleRate:   cfg.Audio.SampleRate,
		twiddles:     twiddles,
		window:       fft.NewWindow(windowKind, n),
		tones:        analysis.NewDTMF(cfg.Pipeline.Tolerance),
		ws:           newWorkspace(n, cfg.Audio.SampleRate, fold, cfg.Pipeline.TopPeaks, channels),
		gate:         newNoiseGate(cfg.Pipeline.Gate.Enabled, cfg.Pipeline.Gate.Threshold),
		runFFT:       cfg.Pipeline.FFT,
		classify:     cfg.Pipeline.Classify,
		fold:         fold,
		topPeaks:     cfg.Pipeline.TopPeaks,
		packBack:     cfg.Pipeline.PackBack,
		packScale:    float32(cfg.Pipeline.PackScale),
		snapshot:     newMagnitudeSnapshot(bins),
		pollInterval: cfg.FramePeriod() / 8,
		logger:       log.Component("pipeline"),
	}

	p.logger.Infof("Initializing FrameProcessor (Frame: %d, SampleRate: %.1f Hz, Channels: %s, Window: %v, Spectrum: %s)",
		n, cfg.Audio.SampleRate, cfg.Pipeline.Channels, windowKind, cfg.Pipeline.Spectrum)

	return p, nil
}

// AddObserver registers o to receive every FrameResult. Not safe to call
// while Run is active.
func (p *FrameProcessor) AddObserver(o Observer) {
	p.observers = append(p.observers, o)
}

// AddFrameSink registers s to receive every processed frame. Not safe to
// call while Run is active.
func (p *FrameProcessor) AddFrameSink(s FrameSink) {
	p.sinks = append(p.sinks, s)
}

// Poll performs one iteration of the processing loop. If a frame is ready
// it is processed, released and reported, and Poll returns true.
func (p *FrameProcessor) Poll() bool {
	slot, ready := p.ring.PeekReady()
	if !ready {
		p.checkOverrun()
		return false
	}

	p.state.Store(int32(StateProcessing))
	p.process(slot)
	p.ring.Release(slot)
	p.state.Store(int32(StateIdle))

	p.checkOverrun()
	p.writeSinks(slot)
	p.notify()
	return true
}

// Run polls until ctx is cancelled. Between empty polls it sleeps for a
// fraction of the frame period.
func (p *FrameProcessor) Run(ctx context.Context) error {
	p.logger.Debugf("Processing loop started (poll interval %s)", p.pollInterval)
	defer p.logger.Debugf("Processing loop stopped")

	idle := time.NewTicker(p.pollInterval)
	defer idle.Stop()

	for {
		for p.Poll() {
			if ctx.Err() != nil {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
		}
	}
}

// process runs every enabled stage on the frame in slot.
func (p *FrameProcessor) process(slot int) {
	frame := p.ring.Slot(slot)
	seq := p.stats.frames.Load()

	p.ws.deinterleave(frame)
	open := p.gate.Open(frame)

	for i, cw := range p.ws.channels {
		res := &cw.result
		*res = FrameResult{
			Sequence: seq,
			Slot:     slot,
			Channel:  cw.channel,
			Gated:    !open,
		}

		if open && p.runFFT {
			p.analyse(cw, res)
			if i == 0 {
				p.snapshot.update(cw.mags[:p.snapshot.Size()], seq)
			}
		}

		res.Pressed = cw.debouncer.Update(res.Symbol)
		res.Held = cw.debouncer.Current()
		if res.Pressed != analysis.NoSymbol {
			p.stats.symbols.Add(1)
		}
	}

	if p.packBack {
		p.ws.packBack(frame, p.packScale)
	}
	if !open {
		p.stats.gated.Add(1)
	}
	p.stats.frames.Add(1)
}

// analyse runs the spectral chain for one channel.
func (p *FrameProcessor) analyse(cw *channelWorkspace, res *FrameResult) {
	p.ws.load(cw)
	p.window.Apply(cw.spectrum)

	// Sizes were checked when the twiddles were built.
	_ = fft.Transform(cw.spectrum, p.twiddles)
	fft.Magnitudes(cw.mags, cw.spectrum)

	if p.fold {
		// Every tone shows up twice on a full spectrum.
		ranked := cw.detector.Detect(cw.mags, 2*p.topPeaks)
		res.Peaks = foldPeaks(cw.folded[:0], ranked, len(p.twiddles), p.topPeaks)
	} else {
		res.Peaks = cw.detector.Detect(cw.mags, p.topPeaks)
	}

	cw.freqs = cw.freqs[:0]
	for _, pk := range res.Peaks {
		cw.freqs = append(cw.freqs, cw.detector.Frequency(pk.Bin))
	}
	res.Frequencies = cw.freqs

	if p.classify && len(res.Frequencies) >= 2 {
		res.Symbol = p.tones.Classify(res.Frequencies[0], res.Frequencies[1])
	}
}

// foldPeaks appends ranked peaks to dst, skipping any whose mirror image
// n-bin is already present, until k peaks are kept.
func foldPeaks(dst, ranked []analysis.Peak, n, k int) []analysis.Peak {
	for _, pk := range ranked {
		if len(dst) == k {
			break
		}
		fb := foldBin(pk.Bin, n)
		dup := false
		for _, kept := range dst {
			if foldBin(kept.Bin, n) == fb {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, pk)
		}
	}
	return dst
}

func foldBin(bin, n int) int {
	if bin > n/2 {
		return n - bin
	}
	return bin
}

// writeSinks hands the released frame to every sink. The slot stays
// untouched by the acquisition engine for at least one more frame period.
// A sink that fails is dropped.
func (p *FrameProcessor) writeSinks(slot int) {
	if len(p.sinks) == 0 {
		return
	}
	frame := p.ring.Slot(slot)
	kept := p.sinks[:0]
	for _, s := range p.sinks {
		if err := s.WriteFrame(frame); err != nil {
			p.logger.Errorf("Frame sink disabled: %v", err)
			continue
		}
		kept = append(kept, s)
	}
	p.sinks = kept
}

func (p *FrameProcessor) notify() {
	if len(p.observers) == 0 {
		return
	}
	for _, cw := range p.ws.channels {
		for _, o := range p.observers {
			o.Observe(&cw.result)
		}
	}
}

// checkOverrun logs the rising and falling edges of the sticky flag.
func (p *FrameProcessor) checkOverrun() {
	overrun := p.ring.IsOverrun()
	if overrun == p.overrunSeen {
		return
	}
	p.overrunSeen = overrun
	if overrun {
		p.logger.Warnf("Buffer overrun: frame %d was not processed within one frame period", p.stats.frames.Load())
	} else {
		p.logger.Infof("Overrun flag cleared")
	}
}

// ResetOverrun clears the ring's sticky overrun flag.
func (p *FrameProcessor) ResetOverrun() {
	p.ring.ResetOverrun()
}

// State returns the current loop state.
func (p *FrameProcessor) State() State {
	return State(p.state.Load())
}

// Stats returns the processor and ring counters.
func (p *FrameProcessor) Stats() Stats {
	rs := p.ring.Stats()
	return Stats{
		Frames:   p.stats.frames.Load(),
		Gated:    p.stats.gated.Load(),
		Symbols:  p.stats.symbols.Load(),
		Overruns: rs.Overruns,
		Overrun:  p.ring.IsOverrun(),
	}
}

// MagnitudesInto copies the magnitude spectrum of the first channel of the
// latest analysed frame into dst, which must hold MagnitudeBins values. It
// never blocks the processing loop for longer than the copy.
func (p *FrameProcessor) MagnitudesInto(dst []float32) (uint64, error) {
	return p.snapshot.MagnitudesInto(dst)
}

// MagnitudeBins returns the number of bins in a magnitude snapshot.
func (p *FrameProcessor) MagnitudeBins() int {
	return p.snapshot.Size()
}

// Frequency returns the frequency of bin on the configured spectrum.
func (p *FrameProcessor) Frequency(bin int) float64 {
	if p.fold {
		return analysis.FoldedBinToFrequency(bin, p.sampleRate, len(p.twiddles))
	}
	return analysis.BinToFrequency(bin, p.sampleRate, len(p.twiddles))
}

// FrameSize returns the number of sample pairs per frame.
func (p *FrameProcessor) FrameSize() int {
	return len(p.twiddles)
}
