// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonepipe/internal/audio"
	"tonepipe/internal/config"
	"tonepipe/internal/pipeline"
)

var dialDefaults = DialOptions{
	Tone:      DefaultToneLength,
	Gap:       DefaultGapLength,
	Amplitude: DefaultDialAmplitude,
}

func dialFile(t *testing.T, cfg *config.Config, digits string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dial.wav")
	_, err := Dial(cfg, digits, path, dialDefaults)
	require.NoError(t, err)
	return path
}

func TestDialThenDetect(t *testing.T) {
	cfg := config.Default()
	digits := "159#0*D"
	path := filepath.Join(t.TempDir(), "dial.wav")

	n, err := Dial(cfg, digits, path, dialDefaults)
	require.NoError(t, err)
	// 100 ms at 8 kHz rounds up to four 256-sample frames for each of tone
	// and gap.
	assert.Equal(t, uint64(len(digits)*2*1024), n)

	report, err := Detect(cfg, path)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, report.SampleRate)
	assert.Equal(t, len(digits)*8, report.Frames)
	assert.Equal(t, digits, report.Digits(pipeline.ChannelMono))

	require.NotEmpty(t, report.Presses)
	first := report.Presses[0]
	assert.Equal(t, uint64(1), first.Frame, "a press is accepted on its second frame")
	assert.Equal(t, 32*time.Millisecond, first.Offset)
	assert.Equal(t, uint64(9), report.Presses[1].Frame)
}

func TestDetectRepeatedDigits(t *testing.T) {
	cfg := config.Default()
	report, err := Detect(cfg, dialFile(t, cfg, "1100"))
	require.NoError(t, err)
	assert.Equal(t, "1100", report.Digits(pipeline.ChannelMono))
}

func TestDetectStereo(t *testing.T) {
	cfg := config.Default()
	path := dialFile(t, cfg, "42")

	cfg.Pipeline.Channels = config.ChannelsStereo
	report, err := Detect(cfg, path)
	require.NoError(t, err)
	assert.Equal(t, "42", report.Digits(pipeline.ChannelLeft))
	assert.Equal(t, "42", report.Digits(pipeline.ChannelRight))
	assert.Empty(t, report.Digits(pipeline.ChannelMono))
}

func TestDetectLowercaseLetters(t *testing.T) {
	cfg := config.Default()
	report, err := Detect(cfg, dialFile(t, cfg, "abcd"))
	require.NoError(t, err)
	assert.Equal(t, "ABCD", report.Digits(pipeline.ChannelMono))
}

func TestDetectMissingFile(t *testing.T) {
	_, err := Detect(config.Default(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorContains(t, err, "failed to open WAV file")
}

func TestDialErrors(t *testing.T) {
	cfg := config.Default()
	path := filepath.Join(t.TempDir(), "dial.wav")

	tests := []struct {
		name    string
		digits  string
		opts    DialOptions
		wantErr string
	}{
		{"empty", "", dialDefaults, "nothing to dial"},
		{"unknown key", "12X", dialDefaults, "cannot dial"},
		{"non-ASCII key", "1é", dialDefaults, "cannot dial"},
		{"silent", "1", DialOptions{Tone: time.Second, Gap: time.Second}, "amplitude"},
		{"too loud", "1", DialOptions{Tone: time.Second, Gap: time.Second, Amplitude: 20000}, "amplitude"},
		{"short tone", "1", DialOptions{Tone: 10 * time.Millisecond, Gap: time.Second, Amplitude: 1000}, "tone length"},
		{"short gap", "1", DialOptions{Tone: time.Second, Amplitude: 1000}, "gap length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Dial(cfg, tt.digits, path, tt.opts)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGenerate(t *testing.T) {
	cfg := config.Default()
	path := filepath.Join(t.TempDir(), "tone.wav")

	n, err := Generate(cfg, path, 250*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), n)

	src, err := audio.OpenWavSource(path)
	require.NoError(t, err)
	defer src.Close()

	frame := make([]int16, 2*256)
	pairs, err := src.NextFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, 256, pairs)

	var peak int16
	for _, s := range frame {
		if s > peak {
			peak = s
		}
	}
	assert.InDelta(t, 10000, peak, 100, "the default oscillator peaks at its amplitude")

	// A 1 kHz tone is not a keypad tone.
	report, err := Detect(cfg, path)
	require.NoError(t, err)
	assert.Empty(t, report.Presses)

	_, err = Generate(cfg, path, 0)
	assert.Error(t, err)
}

func TestSelfTest(t *testing.T) {
	for _, n := range []int{8, 256, 4096} {
		cfg := config.Default()
		cfg.Audio.FrameSize = n

		var out bytes.Buffer
		require.NoError(t, SelfTest(cfg, &out))
		assert.Contains(t, out.String(), "harmonic")
		assert.Contains(t, out.String(), "impulse")
		assert.NotContains(t, out.String(), "FAIL")
	}
}

func TestRunCommand(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "keys.wav")

	var out bytes.Buffer
	require.NoError(t, RunCommand(&Options{
		Config:     cfg,
		Command:    CommandDial,
		Args:       []string{"2024"},
		Output:     wavPath,
		ToneLength: DefaultToneLength,
		GapLength:  DefaultGapLength,
		Amplitude:  DefaultDialAmplitude,
	}, &out))
	assert.Contains(t, out.String(), "Dialled 2024")

	out.Reset()
	require.NoError(t, RunCommand(&Options{Config: cfg, Command: CommandDetect, Args: []string{wavPath}}, &out))
	assert.Contains(t, out.String(), "Digits (mono): 2024")

	out.Reset()
	require.NoError(t, RunCommand(&Options{
		Config:   cfg,
		Command:  CommandGenerate,
		Output:   filepath.Join(dir, "gen.wav"),
		Duration: 100 * time.Millisecond,
	}, &out))
	assert.Contains(t, out.String(), "Wrote 800 samples")

	assert.Error(t, RunCommand(&Options{Config: cfg, Command: "bogus"}, io.Discard))
}

func TestFrameAligned(t *testing.T) {
	assert.Equal(t, 1024, frameAligned(100*time.Millisecond, 8000, 256))
	assert.Equal(t, 256, frameAligned(32*time.Millisecond, 8000, 256))
	assert.Equal(t, 512, frameAligned(33*time.Millisecond, 8000, 256))
	assert.Equal(t, 0, frameAligned(0, 8000, 256))
}
