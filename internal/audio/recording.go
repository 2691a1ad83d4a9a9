// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"tonepipe/internal/log"
)

// ErrAlreadyRecording is returned by Start while a recording is open.
var ErrAlreadyRecording = errors.New("already recording")

// Recorder writes processed frames to a 16-bit stereo WAV file. It is a
// frame sink of the processing loop and never runs in a stream callback.
type Recorder struct {
	sampleRate int
	frameSize  int

	mu          sync.Mutex
	isRecording atomic.Bool
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
	frames      uint64

	logger *log.Logger
}

// NewRecorder returns an idle recorder for frames of frameSize pairs.
func NewRecorder(sampleRate float64, frameSize int) *Recorder {
	return &Recorder{
		sampleRate: int(sampleRate),
		frameSize:  frameSize,
		logger:     log.Component("recorder"),
	}
}

// RecordingPath names a recording in dir after its start time.
func RecordingPath(dir string, start time.Time) string {
	return filepath.Join(dir, "tonepipe-"+start.Format("20060102-150405")+".wav")
}

// Start opens filename and begins accepting frames.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording.Load() {
		return ErrAlreadyRecording
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create recording directory")
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create recording file")
	}
	r.outputFile = file

	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, 16, streamChannels, wavPCM)

	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: streamChannels,
			SampleRate:  r.sampleRate,
		},
		Data:           make([]int, r.frameSize*streamChannels),
		SourceBitDepth: 16,
	}
	r.frames = 0

	r.isRecording.Store(true)
	r.logger.Infof("Recording to %s", filename)

	return nil
}

// WriteFrame encodes one interleaved frame. It does nothing while the
// recorder is idle.
func (r *Recorder) WriteFrame(frame []int16) error {
	if !r.isRecording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return nil
	}

	data := r.sampleBuf.Data[:cap(r.sampleBuf.Data)]
	n := copy16(data, frame)
	r.sampleBuf.Data = data[:n]

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return errors.Wrap(err, "failed to write to WAV file")
	}
	r.frames++
	return nil
}

func copy16(dst []int, src []int16) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = int(src[i])
	}
	return n
}

// Stop finalizes and closes the current recording. Stopping an idle
// recorder is not an error.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRecording.Load() {
		return nil
	}
	r.isRecording.Store(false)

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			return errors.Wrap(err, "failed to finalize recording")
		}
		r.wavEncoder = nil
	}

	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return errors.Wrap(err, "failed to close recording")
		}
		r.outputFile = nil
	}

	r.logger.Infof("Recording stopped after %d frames", r.frames)
	return nil
}

// IsRecording reports whether a recording is open.
func (r *Recorder) IsRecording() bool {
	return r.isRecording.Load()
}

// Frames returns the number of frames written to the current or last
// recording.
func (r *Recorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
