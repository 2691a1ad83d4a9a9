// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"strings"
	"time"

	"tonepipe/internal/fft"
	"tonepipe/internal/waveform"
	"tonepipe/pkg/bitint"
)

// Core configuration constants that define the boundaries and defaults
// for the frame pipeline.
const (
	// Default values for the pipeline configuration
	DefaultMode       = ModeAnalysis
	DefaultDeviceID   = MinDeviceID // Default to system default device
	DefaultSampleRate = 8000        // Telephone band
	DefaultFrameSize  = 256         // 32 ms at 8 kHz
	DefaultChannels   = ChannelsMono
	DefaultTopPeaks   = 2
	DefaultSpectrum   = SpectrumSingle
	DefaultWindow     = "none"
	DefaultTolerance  = 0.035 // ±3.5% around each canonical tone
	DefaultPackScale  = 1.0
	DefaultTableSize  = 256
	DefaultGain       = 1.0

	// Hardware and processing limits
	MinDeviceID    = -1     // -1 represents system default device
	MinSampleRate  = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate  = 192000 // Maximum supported sample rate (Hz)
	MinFrameSize   = 8
	MaxFrameSize   = 8192 // Maximum sample pairs per frame (power of 2)
	MaxTableSize   = 1 << 16
	MaxAmplitude   = 32767
	MaxGateSetting = 1.0
)

// Operating modes. Exactly one is active per run.
const (
	ModeAnalysis  = "analysis"
	ModeSynthesis = "synthesis"
)

// Channel sets the analysis stage extracts from each stereo frame.
const (
	ChannelsMono   = "mono"   // Left + right summed into one input
	ChannelsLeft   = "left"   // Left channel only
	ChannelsRight  = "right"  // Right channel only
	ChannelsStereo = "stereo" // Left and right analysed independently
)

// Spectrum readings.
const (
	SpectrumSingle = "single" // Bins 0..n/2 map directly to frequency
	SpectrumFull   = "full"   // Bins above n/2 are folded to n-bin
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Mode      string          `yaml:"mode"`      // "analysis" or "synthesis".
	Audio     AudioConfig     `yaml:"audio"`     // Device and frame settings.
	Pipeline  PipelineConfig  `yaml:"pipeline"`  // Analysis stage enablement.
	Synthesis SynthesisConfig `yaml:"synthesis"` // Oscillator bank for synthesis mode.
	Recording RecordingConfig `yaml:"recording"` // Recording of processed frames.
	Transport TransportConfig `yaml:"transport"` // Result publication.
}

// AudioConfig holds settings related to audio input/output.
type AudioConfig struct {
	InputDevice  int     `yaml:"input_device"`  // PortAudio device index for input (-1 for default).
	OutputDevice int     `yaml:"output_device"` // PortAudio device index for output (-1 for default).
	SampleRate   float64 `yaml:"sample_rate"`   // Sample rate in Hz.
	FrameSize    int     `yaml:"frame_size"`    // Sample pairs per frame; also the FFT size.
	LowLatency   bool    `yaml:"low_latency"`   // Request low latency settings from PortAudio.
}

// PipelineConfig selects which stages run on every ready frame.
type PipelineConfig struct {
	Channels  string     `yaml:"channels"`   // mono, left, right or stereo.
	FFT       bool       `yaml:"fft"`        // Run the transform and peak stages.
	Window    string     `yaml:"window"`     // Window applied before the transform ("none" to skip).
	Spectrum  string     `yaml:"spectrum"`   // single or full.
	TopPeaks  int        `yaml:"top_peaks"`  // Ranked peaks kept per channel.
	Classify  bool       `yaml:"classify"`   // Map the two strongest peaks to a keypad symbol.
	Tolerance float64    `yaml:"tolerance"`  // Relative tone band half-width.
	PackBack  bool       `yaml:"pack_back"`  // Write the channel samples back into the frame.
	PackScale float64    `yaml:"pack_scale"` // Gain applied on pack-back.
	Gate      GateConfig `yaml:"gate"`       // Skip analysis of quiet frames.
}

// GateConfig holds the noise gate settings.
type GateConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"` // 0.0-1.0 of full scale; 0=always open, 1=always closed.
}

// SynthesisConfig holds the oscillator bank used in synthesis mode.
type SynthesisConfig struct {
	TableSize   int                `yaml:"table_size"`  // Cells per half-period lookup table.
	Gain        float64            `yaml:"gain"`        // Applied to the oscillator sum.
	Oscillators []OscillatorConfig `yaml:"oscillators"` // Summed into both output channels.
}

// OscillatorConfig describes one synthesis voice.
type OscillatorConfig struct {
	Kind      string  `yaml:"kind"`      // sine, cosine, square or sawtooth.
	Frequency float64 `yaml:"frequency"` // Hz.
	Amplitude float64 `yaml:"amplitude"` // Peak value in 16-bit sample units.
}

// RecordingConfig holds settings related to recording processed frames.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record processed frames to file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio.
}

// TransportConfig holds settings related to sending results over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending magnitude snapshots over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WSEnabled        bool          `yaml:"ws_enabled"`         // Broadcast symbol events over WebSocket.
	WSAddress        string        `yaml:"ws_address"`         // Listen address for the WebSocket server.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Mode:     DefaultMode,
		Audio: AudioConfig{
			InputDevice:  DefaultDeviceID,
			OutputDevice: DefaultDeviceID,
			SampleRate:   DefaultSampleRate,
			FrameSize:    DefaultFrameSize,
			LowLatency:   false,
		},
		Pipeline: PipelineConfig{
			Channels:  DefaultChannels,
			FFT:       true,
			Window:    DefaultWindow,
			Spectrum:  DefaultSpectrum,
			TopPeaks:  DefaultTopPeaks,
			Classify:  true,
			Tolerance: DefaultTolerance,
			PackBack:  false,
			PackScale: DefaultPackScale,
			Gate: GateConfig{
				Enabled:   false,
				Threshold: 0.001,
			},
		},
		Synthesis: SynthesisConfig{
			TableSize: DefaultTableSize,
			Gain:      DefaultGain,
			Oscillators: []OscillatorConfig{
				{Kind: "sine", Frequency: 1000, Amplitude: 10000},
			},
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz
			WSEnabled:        false,
			WSAddress:        ":8080",
		},
	}
}

// FramePeriod returns the time budget for processing one frame.
func (c *Config) FramePeriod() time.Duration {
	return time.Duration(float64(time.Second) * float64(c.Audio.FrameSize) / c.Audio.SampleRate)
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAnalysis, ModeSynthesis:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeAnalysis, ModeSynthesis, c.Mode)
	}

	// Audio Validation
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate must be within [%d, %d], got %g", MinSampleRate, MaxSampleRate, c.Audio.SampleRate)
	}
	if c.Audio.FrameSize < MinFrameSize || c.Audio.FrameSize > MaxFrameSize {
		return fmt.Errorf("audio.frame_size must be a power of 2 within [%d, %d], got %d", MinFrameSize, MaxFrameSize, c.Audio.FrameSize)
	}
	if !bitint.IsPowerOfTwo(c.Audio.FrameSize) {
		return fmt.Errorf("audio.frame_size must be a power of 2, got %d (nearest larger is %d)",
			c.Audio.FrameSize, bitint.NextPowerOfTwo(c.Audio.FrameSize))
	}
	if c.Audio.InputDevice < MinDeviceID || c.Audio.OutputDevice < MinDeviceID {
		return fmt.Errorf("audio devices must be %d or a device index", MinDeviceID)
	}

	if err := c.Pipeline.validate(c.Audio.FrameSize); err != nil {
		return err
	}
	if err := c.Synthesis.validate(c.Mode, c.Audio.SampleRate); err != nil {
		return err
	}

	// Transport Validation
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if c.Transport.WSEnabled && c.Transport.WSAddress == "" {
		return fmt.Errorf("transport.ws_address must be set when WebSocket is enabled")
	}

	if c.Recording.Enabled && c.Recording.BitDepth != 16 {
		return fmt.Errorf("recording.bit_depth must be 16, got %d", c.Recording.BitDepth)
	}

	return nil
}

func (p *PipelineConfig) validate(frameSize int) error {
	switch p.Channels {
	case ChannelsMono, ChannelsLeft, ChannelsRight, ChannelsStereo:
	default:
		return fmt.Errorf("pipeline.channels must be one of mono, left, right, stereo, got %q", p.Channels)
	}
	switch p.Spectrum {
	case SpectrumSingle, SpectrumFull:
	default:
		return fmt.Errorf("pipeline.spectrum must be %q or %q, got %q", SpectrumSingle, SpectrumFull, p.Spectrum)
	}
	if _, err := fft.ParseWindowFunc(p.Window); err != nil {
		return fmt.Errorf("pipeline.window: %w", err)
	}
	if p.TopPeaks < 1 || p.TopPeaks > frameSize/2 {
		return fmt.Errorf("pipeline.top_peaks must be within [1, %d], got %d", frameSize/2, p.TopPeaks)
	}
	if p.Classify && (!p.FFT || p.TopPeaks < 2) {
		return fmt.Errorf("pipeline.classify requires fft and top_peaks >= 2")
	}
	if p.Tolerance <= 0 || p.Tolerance >= 0.5 {
		return fmt.Errorf("pipeline.tolerance must be within (0, 0.5), got %g", p.Tolerance)
	}
	if p.PackBack && p.PackScale <= 0 {
		return fmt.Errorf("pipeline.pack_scale must be positive, got %g", p.PackScale)
	}
	if p.Gate.Threshold < 0 || p.Gate.Threshold > MaxGateSetting {
		return fmt.Errorf("pipeline.gate.threshold must be within [0, 1], got %g", p.Gate.Threshold)
	}
	return nil
}

func (s *SynthesisConfig) validate(mode string, sampleRate float64) error {
	if !bitint.IsPowerOfTwo(s.TableSize) || s.TableSize < 2 || s.TableSize > MaxTableSize {
		return fmt.Errorf("synthesis.table_size must be a power of 2 within [2, %d], got %d", MaxTableSize, s.TableSize)
	}
	if s.Gain <= 0 {
		return fmt.Errorf("synthesis.gain must be positive, got %g", s.Gain)
	}
	if mode == ModeSynthesis && len(s.Oscillators) == 0 {
		return fmt.Errorf("synthesis mode needs at least one oscillator")
	}
	for i, o := range s.Oscillators {
		if _, err := waveform.ParseKind(o.Kind); err != nil {
			return fmt.Errorf("synthesis.oscillators[%d]: %w", i, err)
		}
		if o.Frequency <= 0 || o.Frequency >= sampleRate/2 {
			return fmt.Errorf("synthesis.oscillators[%d].frequency must be within (0, %g), got %g", i, sampleRate/2, o.Frequency)
		}
		if o.Amplitude < 0 || o.Amplitude > MaxAmplitude {
			return fmt.Errorf("synthesis.oscillators[%d].amplitude must be within [0, %d], got %g", i, MaxAmplitude, o.Amplitude)
		}
	}
	return nil
}
