// SPDX-License-Identifier: MIT
package audio

import (
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"

	"tonepipe/internal/config"
	"tonepipe/internal/log"
	"tonepipe/internal/pipeline"
)

// SampleHandler is driven once per sample signal.
type SampleHandler interface {
	OnSample(c pipeline.Codec)
}

// SynthEngine is the per-sample codec transport. PortAudio hands over a
// buffer at a time; the callback replays it as one sample signal per pair.
// Stream overflow or underflow latches a sticky overrun flag that the
// synthesizer checks before every sample.
type SynthEngine struct {
	config *config.Config

	inputDevice  *portaudio.DeviceInfo
	outputDevice *portaudio.DeviceInfo
	stream       *portaudio.Stream

	handler SampleHandler
	codec   bufferCodec

	overrun  atomic.Bool
	overruns atomic.Uint64
	signals  atomic.Uint64

	logger *log.Logger
}

// NewSynthEngine resolves the configured devices. The engine must exist
// before the synthesizer so that it can be passed as the overrun flag.
func NewSynthEngine(cfg *config.Config) (*SynthEngine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	outputDevice, err := OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return nil, err
	}

	return &SynthEngine{
		config:       cfg,
		inputDevice:  inputDevice,
		outputDevice: outputDevice,
		logger:       log.Component("synth"),
	}, nil
}

// Start opens the stream and begins delivering sample signals to h.
func (s *SynthEngine) Start(h SampleHandler) error {
	if s.stream != nil {
		return errors.New("synthesis stream already running")
	}
	s.handler = h

	latencyIn := s.inputDevice.DefaultHighInputLatency
	latencyOut := s.outputDevice.DefaultHighOutputLatency
	if s.config.Audio.LowLatency {
		latencyIn = s.inputDevice.DefaultLowInputLatency
		latencyOut = s.outputDevice.DefaultLowOutputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: streamChannels,
			Device:   s.inputDevice,
			Latency:  latencyIn,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: streamChannels,
			Device:   s.outputDevice,
			Latency:  latencyOut,
		},
		FramesPerBuffer: s.config.Audio.FrameSize,
		SampleRate:      s.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.processStream)
	if err != nil {
		return errors.Wrap(err, "failed to open synthesis stream")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return errors.Wrap(err, "failed to start synthesis stream")
	}
	s.stream = stream

	s.logger.Infof("Synthesis stream started (out: %s @ %.0f Hz)", s.outputDevice.Name, s.config.Audio.SampleRate)
	return nil
}

// Stop stops and closes the stream. Safe to call when not started.
func (s *SynthEngine) Stop() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return errors.Wrap(err, "failed to stop synthesis stream")
	}
	if err := s.stream.Close(); err != nil {
		return errors.Wrap(err, "failed to close synthesis stream")
	}
	s.stream = nil
	return nil
}

// IsOverrun reports the sticky overrun flag.
func (s *SynthEngine) IsOverrun() bool {
	return s.overrun.Load()
}

// ResetOverrun clears the overrun flag.
func (s *SynthEngine) ResetOverrun() {
	s.overrun.Store(false)
}

// Overruns returns how many callbacks reported a stream overflow or
// underflow.
func (s *SynthEngine) Overruns() uint64 {
	return s.overruns.Load()
}

// Signals returns the number of sample signals delivered.
func (s *SynthEngine) Signals() uint64 {
	return s.signals.Load()
}

func (s *SynthEngine) processStream(in, out []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags&(portaudio.InputOverflow|portaudio.OutputUnderflow) != 0 {
		s.overrun.Store(true)
		s.overruns.Add(1)
	}
	s.drive(in, out)
}

// drive replays one callback buffer as per-sample signals. Pairs the
// handler does not write stay silent.
func (s *SynthEngine) drive(in, out []int16) {
	clear(out)
	s.codec.reset(in, out)

	pairs := len(out) / streamChannels
	for i := 0; i < pairs; i++ {
		s.codec.at(i)
		s.handler.OnSample(&s.codec)
	}
	s.signals.Add(uint64(pairs))
}
