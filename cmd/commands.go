// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"tonepipe/internal/analysis"
	"tonepipe/internal/audio"
	"tonepipe/internal/config"
	"tonepipe/internal/fft"
	"tonepipe/internal/log"
	"tonepipe/internal/pipeline"
	"tonepipe/internal/ring"
	"tonepipe/internal/tui"
	"tonepipe/internal/waveform"
	"tonepipe/pkg/utils"
)

// SelfTestLimit is the largest relative deviation from the reference
// transform the self-test accepts.
const SelfTestLimit = 1e-4

var logger = log.Component("cmd")

// RunCommand executes a one-off command and writes its report to w.
func RunCommand(opts *Options, w io.Writer) error {
	switch opts.Command {
	case CommandList:
		return runList(opts, w)

	case CommandDetect:
		report, err := Detect(opts.Config, opts.Args[0])
		if err != nil {
			return err
		}
		report.Print(w)
		return nil

	case CommandGenerate:
		n, err := Generate(opts.Config, opts.Output, opts.Duration)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %d samples to %s\n", n, opts.Output)
		return nil

	case CommandDial:
		n, err := Dial(opts.Config, opts.Args[0], opts.Output, DialOptions{
			Tone:      opts.ToneLength,
			Gap:       opts.GapLength,
			Amplitude: opts.Amplitude,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Dialled %s: %d samples written to %s\n", opts.Args[0], n, opts.Output)
		return nil

	case CommandSelfTest:
		return SelfTest(opts.Config, w)

	default:
		return fmt.Errorf("unknown command %q", opts.Command)
	}
}

func runList(opts *Options, w io.Writer) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if !opts.Interactive {
		return audio.ListDevices(w)
	}

	sel, err := tui.PickDevice()
	if err != nil {
		return errors.Wrap(err, "device picker failed")
	}
	if sel == nil {
		return nil
	}
	fmt.Fprintf(w, "Selected %s. Run with:\n  %s\n", sel.Device.Name, sel.Flags())
	return nil
}

// Press is one decoded key press.
type Press struct {
	Frame   uint64
	Offset  time.Duration
	Channel pipeline.Channel
	Symbol  analysis.Symbol
}

// DetectReport lists the key presses found in a file.
type DetectReport struct {
	Path       string
	SampleRate float64
	Frames     int
	Presses    []Press
}

// Digits returns the presses on channel in order.
func (r *DetectReport) Digits(channel pipeline.Channel) string {
	var sb strings.Builder
	for _, p := range r.Presses {
		if p.Channel == channel {
			sb.WriteString(p.Symbol.String())
		}
	}
	return sb.String()
}

// Print writes one line per press and a summary per channel.
func (r *DetectReport) Print(w io.Writer) {
	fmt.Fprintf(w, "%s: %d frames at %.0f Hz\n", r.Path, r.Frames, r.SampleRate)
	seen := make(map[pipeline.Channel]bool)
	var order []pipeline.Channel
	for _, p := range r.Presses {
		fmt.Fprintf(w, "  %8.3fs  %-5s  %s\n", p.Offset.Seconds(), p.Channel, p.Symbol)
		if !seen[p.Channel] {
			seen[p.Channel] = true
			order = append(order, p.Channel)
		}
	}
	if len(order) == 0 {
		fmt.Fprintln(w, "No keys detected")
		return
	}
	for _, ch := range order {
		fmt.Fprintf(w, "Digits (%s): %s\n", ch, r.Digits(ch))
	}
}

// Detect runs the analysis pipeline over a WAV file. The file replaces the
// acquisition engine: each frame is written into the ring, signalled and
// processed before the next one is read. The sample rate comes from the
// file.
func Detect(cfg *config.Config, path string) (*DetectReport, error) {
	src, err := audio.OpenWavSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	c := *cfg
	c.Mode = config.ModeAnalysis
	c.Audio.SampleRate = src.SampleRate()

	r, err := ring.New(c.Audio.FrameSize)
	if err != nil {
		return nil, err
	}
	proc, err := pipeline.NewFrameProcessor(&c, r)
	if err != nil {
		return nil, err
	}

	report := &DetectReport{Path: path, SampleRate: c.Audio.SampleRate}
	framePeriod := c.FramePeriod()
	proc.AddObserver(pipeline.ObserverFunc(func(res *pipeline.FrameResult) {
		if res.Pressed == analysis.NoSymbol {
			return
		}
		report.Presses = append(report.Presses, Press{
			Frame:   res.Sequence,
			Offset:  time.Duration(res.Sequence) * framePeriod,
			Channel: res.Channel,
			Symbol:  res.Pressed,
		})
	}))

	frames, err := src.Drive(r, proc.Poll)
	report.Frames = frames
	if err != nil {
		return report, err
	}
	logger.Debugf("Decoded %d presses from %d frames of %s", len(report.Presses), frames, path)
	return report, nil
}

// Generate renders the configured oscillator bank into a WAV file and
// returns the number of samples written.
func Generate(cfg *config.Config, path string, duration time.Duration) (uint64, error) {
	if duration <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", duration)
	}

	c := *cfg
	c.Mode = config.ModeSynthesis
	synth, err := pipeline.NewSynthesizer(&c, nil)
	if err != nil {
		return 0, err
	}

	sink, err := audio.CreateWavSink(path, int(c.Audio.SampleRate))
	if err != nil {
		return 0, err
	}
	synth.Render(sink, int(duration.Seconds()*c.Audio.SampleRate))
	if err := sink.Close(); err != nil {
		return 0, err
	}
	return sink.Samples(), nil
}

// DialOptions shapes a rendered key sequence.
type DialOptions struct {
	Tone      time.Duration // Length of each key press
	Gap       time.Duration // Silence after each press
	Amplitude float64       // Peak value of each of the two tones
}

// frameAligned converts d to samples rounded up to whole frames, so that
// every key press starts on a frame boundary.
func frameAligned(d time.Duration, sampleRate float64, frameSize int) int {
	samples := int(math.Ceil(d.Seconds() * sampleRate))
	frames := (samples + frameSize - 1) / frameSize
	return frames * frameSize
}

// Dial renders digits as a keypad tone sequence into a WAV file and returns
// the number of samples written. Each press is the sum of its row and
// column tones.
func Dial(cfg *config.Config, digits, path string, opts DialOptions) (uint64, error) {
	if digits == "" {
		return 0, fmt.Errorf("nothing to dial")
	}
	if opts.Amplitude <= 0 || opts.Amplitude > config.MaxAmplitude/2 {
		return 0, fmt.Errorf("amplitude must be within (0, %d], got %g", config.MaxAmplitude/2, opts.Amplitude)
	}

	c := *cfg
	c.Mode = config.ModeSynthesis
	sampleRate := c.Audio.SampleRate
	toneLen := frameAligned(opts.Tone, sampleRate, c.Audio.FrameSize)
	gapLen := frameAligned(opts.Gap, sampleRate, c.Audio.FrameSize)
	// The detector accepts a key, and re-arms after one, on two
	// consecutive frames.
	if toneLen < 2*c.Audio.FrameSize {
		return 0, fmt.Errorf("tone length %s is shorter than two frames", opts.Tone)
	}
	if gapLen < 2*c.Audio.FrameSize {
		return 0, fmt.Errorf("gap length %s is shorter than two frames", opts.Gap)
	}

	keypad := analysis.NewDTMF(c.Pipeline.Tolerance)
	type voice struct{ low, high float64 }
	voices := make([]voice, 0, len(digits))
	for _, d := range strings.ToUpper(digits) {
		if d > math.MaxUint8 {
			return 0, fmt.Errorf("cannot dial %q", d)
		}
		low, high, ok := keypad.Tones(analysis.Symbol(d))
		if !ok {
			return 0, fmt.Errorf("cannot dial %q", d)
		}
		voices = append(voices, voice{low, high})
	}

	synth, err := pipeline.NewSynthesizer(&c, nil)
	if err != nil {
		return 0, err
	}
	sink, err := audio.CreateWavSink(path, int(sampleRate))
	if err != nil {
		return 0, err
	}

	for _, v := range voices {
		synth.SetVoices(waveform.Sine, opts.Amplitude, v.low, v.high)
		synth.Render(sink, toneLen)
		synth.SetVoices(waveform.Sine, 0)
		synth.Render(sink, gapLen)
	}

	if err := sink.Close(); err != nil {
		return 0, err
	}
	return sink.Samples(), nil
}

// SelfTest transforms a harmonic test signal and an impulse at the
// configured frame size and compares both with the reference transform.
func SelfTest(cfg *config.Config, w io.Writer) error {
	n := cfg.Audio.FrameSize
	tw, err := fft.NewTwiddles(n)
	if err != nil {
		return err
	}

	wave := utils.GenerateComplexWave(n, cfg.Audio.SampleRate)
	harmonic := make([]complex64, n)
	for i := range harmonic {
		harmonic[i] = complex(float32(wave[2*i])/32768, 0)
	}
	impulse := make([]complex64, n)
	impulse[0] = 1

	cases := []struct {
		name  string
		input []complex64
	}{
		{"harmonic", harmonic},
		{"impulse", impulse},
	}

	failed := 0
	for _, tc := range cases {
		want := fft.Reference(tc.input)
		got := append([]complex64(nil), tc.input...)
		if err := fft.Transform(got, tw); err != nil {
			return err
		}

		dev := fft.MaxDeviation(got, want)
		status := "ok"
		if dev > SelfTestLimit {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "FFT n=%d %-8s max deviation %.3g (limit %g) %s\n", n, tc.name, dev, SelfTestLimit, status)
	}

	if failed > 0 {
		return fmt.Errorf("FFT self-test failed for %d of %d signals", failed, len(cases))
	}
	return nil
}
