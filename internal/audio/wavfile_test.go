// SPDX-License-Identifier: MIT
package audio

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonepipe/internal/analysis"
	"tonepipe/internal/pipeline"
	"tonepipe/internal/ring"
	"tonepipe/pkg/utils"
)

// writeWav stores interleaved stereo samples through a WavSink.
func writeWav(t *testing.T, path string, samples []int16) {
	t.Helper()
	sink, err := CreateWavSink(path, int(testSampleRate))
	require.NoError(t, err)
	for i := 0; i+1 < len(samples); i += 2 {
		sink.WriteSample(samples[i], samples[i+1])
	}
	require.NoError(t, sink.Close())
}

func TestWavSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := utils.GenerateStereoTones(3000, testSampleRate, 9000, []float64{697}, []float64{1209})
	writeWav(t, path, samples)

	src, err := OpenWavSource(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, testSampleRate, src.SampleRate())
	assert.Equal(t, 2, src.Channels())

	var got []int16
	frame := make([]int16, 2*testFrameSize)
	for {
		n, err := src.NextFrame(frame)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, frame[:2*n]...)
		if n < testFrameSize {
			assert.Zero(t, frame[len(frame)-1], "short frames are zero padded")
		}
	}
	assert.Equal(t, samples, got)
}

func TestWavSourceDuplicatesMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, int(testSampleRate), 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: int(testSampleRate)},
		Data:           []int{100, -200, 300},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	src, err := OpenWavSource(path)
	require.NoError(t, err)
	defer src.Close()

	frame := make([]int16, 8)
	n, err := src.NextFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int16{100, 100, -200, -200, 300, 300, 0, 0}, frame)

	_, err = src.NextFrame(frame)
	assert.Equal(t, io.EOF, err)
}

func TestOpenWavSourceErrors(t *testing.T) {
	_, err := OpenWavSource(filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorContains(t, err, "failed to open WAV file")

	junk := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not RIFF"), 0o644))
	_, err = OpenWavSource(junk)
	assert.ErrorContains(t, err, "not a valid WAV file")
}

func TestWavSourceDrivesProcessor(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.Channels = "stereo"

	// Three frames of '1' on the left and '9' on the right, then silence.
	frames := utils.GenerateStereoTones(3*testFrameSize, testSampleRate, 8000, []float64{697, 1209}, []float64{852, 1477})
	frames = append(frames, make([]int16, 2*testFrameSize)...)
	path := filepath.Join(t.TempDir(), "keys.wav")
	writeWav(t, path, frames)

	src, err := OpenWavSource(path)
	require.NoError(t, err)
	defer src.Close()

	r, err := ring.New(testFrameSize)
	require.NoError(t, err)
	p, err := pipeline.NewFrameProcessor(cfg, r)
	require.NoError(t, err)

	pressed := map[pipeline.Channel][]analysis.Symbol{}
	p.AddObserver(pipeline.ObserverFunc(func(res *pipeline.FrameResult) {
		if res.Pressed != analysis.NoSymbol {
			pressed[res.Channel] = append(pressed[res.Channel], res.Pressed)
		}
	}))

	n, err := src.Drive(r, p.Poll)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []analysis.Symbol{'1'}, pressed[pipeline.ChannelLeft])
	assert.Equal(t, []analysis.Symbol{'9'}, pressed[pipeline.ChannelRight])
	assert.False(t, r.IsOverrun(), "lock-step delivery never overruns")
}

func TestWavSinkReadsSilence(t *testing.T) {
	sink, err := CreateWavSink(filepath.Join(t.TempDir(), "out.wav"), int(testSampleRate))
	require.NoError(t, err)

	l, r := sink.ReadSample()
	assert.Zero(t, l)
	assert.Zero(t, r)

	for i := 0; i < sinkBlock+10; i++ {
		sink.WriteSample(int16(i), int16(-i))
	}
	assert.Equal(t, uint64(sinkBlock+10), sink.Samples())
	assert.NoError(t, sink.Close())
}
