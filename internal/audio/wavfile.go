// SPDX-License-Identifier: MIT
package audio

import (
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"tonepipe/internal/ring"
)

// wavPCM is the WAVE format tag for integer PCM.
const wavPCM = 1

// WavSource reads a 16-bit PCM WAV file frame by frame. Mono files are
// duplicated into both channels.
type WavSource struct {
	file     *os.File
	decoder  *wav.Decoder
	buf      *audio.IntBuffer
	channels int
}

// OpenWavSource opens path and checks that it holds 16-bit mono or stereo
// PCM.
func OpenWavSource(path string) (*WavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open WAV file")
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, errors.Errorf("%s is not a valid WAV file", path)
	}
	if d.BitDepth != 16 {
		f.Close()
		return nil, errors.Errorf("%s: unsupported bit depth %d, want 16", path, d.BitDepth)
	}
	channels := int(d.NumChans)
	if channels != 1 && channels != streamChannels {
		f.Close()
		return nil, errors.Errorf("%s: unsupported channel count %d", path, channels)
	}

	return &WavSource{
		file:     f,
		decoder:  d,
		channels: channels,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: channels, SampleRate: int(d.SampleRate)},
		},
	}, nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *WavSource) SampleRate() float64 {
	return float64(s.decoder.SampleRate)
}

// Channels returns the channel count stored in the file.
func (s *WavSource) Channels() int {
	return s.channels
}

// NextFrame fills dst, an interleaved stereo frame, with the next
// len(dst)/2 sample pairs. A short read at the end of the file is padded
// with silence. It returns the number of pairs read and io.EOF once the
// file is exhausted.
func (s *WavSource) NextFrame(dst []int16) (int, error) {
	pairs := len(dst) / streamChannels
	want := pairs * s.channels
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		return 0, errors.Wrap(err, "failed to decode PCM data")
	}
	read := n / s.channels
	if read == 0 {
		return 0, io.EOF
	}

	for i := 0; i < read; i++ {
		if s.channels == 1 {
			v := clampInt16(s.buf.Data[i])
			dst[2*i], dst[2*i+1] = v, v
		} else {
			dst[2*i] = clampInt16(s.buf.Data[2*i])
			dst[2*i+1] = clampInt16(s.buf.Data[2*i+1])
		}
	}
	clear(dst[2*read:])

	return read, nil
}

// Drive plays the acquisition engine in lock-step with the processing
// loop: each frame of the file is written into the ring's Filling slot, the
// completion signal is raised and poll is called once. It returns the
// number of frames delivered.
func (s *WavSource) Drive(r *ring.BufferRing, poll func() bool) (int, error) {
	frames := 0
	for {
		_, err := s.NextFrame(r.Slot(r.Filling()))
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		r.OnFrameComplete()
		poll()
		frames++
	}
}

// Close closes the underlying file.
func (s *WavSource) Close() error {
	return s.file.Close()
}

func clampInt16(v int) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// WavSink is a codec whose output side is a 16-bit stereo WAV file and
// whose input side is silent. Samples are buffered and encoded in blocks.
type WavSink struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	pending int // Pairs buffered
	samples uint64
	err     error
}

// sinkBlock is the number of sample pairs encoded per write.
const sinkBlock = 1024

// CreateWavSink creates path, truncating it if it exists.
func CreateWavSink(path string, sampleRate int) (*WavSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create WAV file")
	}

	return &WavSink{
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, 16, streamChannels, wavPCM),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: streamChannels, SampleRate: sampleRate},
			Data:           make([]int, sinkBlock*streamChannels),
			SourceBitDepth: 16,
		},
	}, nil
}

// ReadSample always returns silence.
func (w *WavSink) ReadSample() (left, right int16) {
	return 0, 0
}

// WriteSample appends one pair. An encoding error is kept and reported by
// Close; later samples are dropped.
func (w *WavSink) WriteSample(left, right int16) {
	if w.err != nil {
		return
	}
	w.buf.Data[2*w.pending] = int(left)
	w.buf.Data[2*w.pending+1] = int(right)
	w.pending++
	w.samples++
	if w.pending == sinkBlock {
		w.flush()
	}
}

// Samples returns the number of pairs written so far.
func (w *WavSink) Samples() uint64 {
	return w.samples
}

func (w *WavSink) flush() {
	if w.pending == 0 || w.err != nil {
		return
	}
	full := w.buf.Data
	w.buf.Data = full[:2*w.pending]
	if err := w.encoder.Write(w.buf); err != nil {
		w.err = errors.Wrap(err, "failed to encode samples")
	}
	w.buf.Data = full
	w.pending = 0
}

// Close flushes buffered samples, finalizes the WAV header and closes the
// file.
func (w *WavSink) Close() error {
	w.flush()
	if err := w.encoder.Close(); err != nil && w.err == nil {
		w.err = errors.Wrap(err, "failed to finalize WAV file")
	}
	if err := w.file.Close(); err != nil && w.err == nil {
		w.err = errors.Wrap(err, "failed to close WAV file")
	}
	return w.err
}
