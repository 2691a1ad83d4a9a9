// SPDX-License-Identifier: MIT
/*
Package audio realises the hardware collaborators of the pipeline on
PortAudio and WAV files:
- Engine is the acquisition engine of analysis mode. Each stream callback
  delivers one frame into the ring's Filling slot, plays the Draining slot
  and raises the completion signal.
- SynthEngine is the per-sample codec transport of synthesis mode.
- WavSource and WavSink stand in for both when running from and to files.
- Recorder writes processed frames to a WAV file from the processing loop.

Thread Safety:
- Stream callbacks touch only preallocated buffers and atomics
- Nothing in a callback logs, allocates or blocks
*/
package audio

import (
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"

	"tonepipe/internal/config"
	"tonepipe/internal/log"
	"tonepipe/internal/ring"
)

// Engine drives a BufferRing from a full-duplex PortAudio stream.
type Engine struct {
	// Core configuration and state.
	config *config.Config
	ring   *ring.BufferRing

	// Stream endpoints.
	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo
	inputLatency  time.Duration
	outputLatency time.Duration
	stream        *portaudio.Stream

	// Callbacks whose buffers were not one full frame.
	shortFrames atomic.Uint64

	logger *log.Logger
}

// NewEngine resolves the configured devices for a stream whose buffers are
// exactly one ring frame.
func NewEngine(cfg *config.Config, r *ring.BufferRing) (*Engine, error) {
	if r.FrameSize() != cfg.Audio.FrameSize {
		return nil, errors.Errorf("ring holds %d sample pairs, frame size is %d", r.FrameSize(), cfg.Audio.FrameSize)
	}

	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	outputDevice, err := OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:       cfg,
		ring:         r,
		inputDevice:  inputDevice,
		outputDevice: outputDevice,
		logger:       log.Component("engine"),
	}

	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
		e.outputLatency = outputDevice.DefaultLowOutputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
		e.outputLatency = outputDevice.DefaultHighOutputLatency
	}

	return e, nil
}

// Start opens and starts the stream. From here on the ring receives one
// completion signal per frame period.
func (e *Engine) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: streamChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: streamChannels,
			Device:   e.outputDevice,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.config.Audio.FrameSize,
		SampleRate:      e.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processStream)
	if err != nil {
		return errors.Wrap(err, "failed to open stream")
	}
	e.stream = stream

	if err := e.stream.Start(); err != nil {
		e.stream.Close()
		e.stream = nil
		return errors.Wrap(err, "failed to start stream")
	}

	e.logger.Infof("Stream started (in: %s, out: %s, %d pairs @ %.0f Hz)",
		e.inputDevice.Name, e.outputDevice.Name, e.config.Audio.FrameSize, e.config.Audio.SampleRate)
	return nil
}

// Stop stops and closes the stream. Safe to call when not started.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return nil
	}

	if err := e.stream.Stop(); err != nil {
		return errors.Wrap(err, "failed to stop stream")
	}
	if err := e.stream.Close(); err != nil {
		return errors.Wrap(err, "failed to close stream")
	}
	e.stream = nil

	if n := e.shortFrames.Load(); n > 0 {
		e.logger.Warnf("%d callbacks delivered partial frames", n)
	}
	return nil
}

// Close releases the stream.
func (e *Engine) Close() error {
	return e.Stop()
}

// processStream is the completion-signal context.
// Performance Critical:
// - Copies into preallocated ring slots only
// - No allocations, no locks, no logging
func (e *Engine) processStream(in, out []int16) {
	filling := e.ring.Slot(e.ring.Filling())
	n := copy(filling, in)
	if n < len(filling) {
		clear(filling[n:])
		e.shortFrames.Add(1)
	}

	if m := copy(out, e.ring.Slot(e.ring.Draining())); m < len(out) {
		clear(out[m:])
	}

	e.ring.OnFrameComplete()
}
