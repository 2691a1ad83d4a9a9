// SPDX-License-Identifier: MIT
package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tonepipe/internal/config"
	"tonepipe/internal/log"
	"tonepipe/pkg/build"
)

// Commands run to completion without the live engine.
const (
	CommandList     = "list"
	CommandDetect   = "detect"
	CommandGenerate = "generate"
	CommandDial     = "dial"
	CommandSelfTest = "selftest"
)

// Options is the outcome of parsing the command line.
type Options struct {
	Config     *config.Config
	ConfigPath string

	// Command is empty for a live run.
	Command string
	Args    []string

	// Live is set when the root command ran, so the engine should start.
	Live    bool
	TUIMode bool

	// list
	Interactive bool

	// generate and dial
	Output     string
	Duration   time.Duration
	ToneLength time.Duration
	GapLength  time.Duration
	Amplitude  float64
}

// Default lengths for the offline commands.
const (
	DefaultGenerateDuration = 2 * time.Second
	DefaultToneLength       = 100 * time.Millisecond
	DefaultGapLength        = 100 * time.Millisecond
	DefaultDialAmplitude    = 8000
)

// overrides holds the persistent flag values. They are applied on top of
// the loaded configuration only when set on the command line.
type overrides struct {
	mode         string
	device       int
	inputDevice  int
	outputDevice int
	sampleRate   float64
	frameSize    int
	lowLatency   bool
	channels     string
	window       string
	spectrum     string
	gate         float64
	packBack     bool
	record       bool
	recordDir    string
	wsAddress    string
	udpTarget    string
	logLevel     string
	verbose      bool
}

func (o *overrides) apply(flags *pflag.FlagSet, cfg *config.Config) {
	set := flags.Changed

	if set("mode") {
		cfg.Mode = o.mode
	}
	if set("device") {
		cfg.Audio.InputDevice = o.device
		cfg.Audio.OutputDevice = o.device
	}
	if set("input-device") {
		cfg.Audio.InputDevice = o.inputDevice
	}
	if set("output-device") {
		cfg.Audio.OutputDevice = o.outputDevice
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = o.sampleRate
	}
	if set("frame-size") {
		cfg.Audio.FrameSize = o.frameSize
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = o.lowLatency
	}
	if set("channels") {
		cfg.Pipeline.Channels = o.channels
	}
	if set("window") {
		cfg.Pipeline.Window = o.window
	}
	if set("spectrum") {
		cfg.Pipeline.Spectrum = o.spectrum
	}
	if set("gate") {
		cfg.Pipeline.Gate.Enabled = o.gate > 0
		cfg.Pipeline.Gate.Threshold = o.gate
	}
	if set("pack-back") {
		cfg.Pipeline.PackBack = o.packBack
	}
	if set("record") {
		cfg.Recording.Enabled = o.record
	}
	if set("record-dir") {
		cfg.Recording.OutputDir = o.recordDir
	}
	if set("ws") {
		cfg.Transport.WSEnabled = o.wsAddress != ""
		cfg.Transport.WSAddress = o.wsAddress
	}
	if set("udp") {
		cfg.Transport.UDPEnabled = o.udpTarget != ""
		cfg.Transport.UDPTargetAddress = o.udpTarget
	}
	if set("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if o.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
}

// ParseArgs parses args (without the program name) into Options. The
// configuration file is loaded and the flags applied before any command
// runs; the result is validated.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{
		Duration:   DefaultGenerateDuration,
		ToneLength: DefaultToneLength,
		GapLength:  DefaultGapLength,
		Amplitude:  DefaultDialAmplitude,
	}
	flagValues := &overrides{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(options.ConfigPath)
			if err != nil {
				return errors.Wrap(err, "failed to load configuration")
			}
			flagValues.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}
			options.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Live = true
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// List command
	listCmd := &cobra.Command{
		Use:   CommandList,
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	}
	listCmd.Flags().BoolVarP(&options.Interactive, "interactive", "i", false,
		"Pick a device and sample rate interactively")
	rootCmd.AddCommand(listCmd)

	// Detect command
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandDetect + " <file.wav>",
		Short: "Decode keypad tones from a 16-bit WAV file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandDetect
			options.Args = args
		},
	})

	// Generate command
	generateCmd := &cobra.Command{
		Use:   CommandGenerate,
		Short: "Render the configured oscillators into a WAV file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandGenerate
		},
	}
	generateCmd.Flags().StringVarP(&options.Output, "output", "o", "tonepipe-generate.wav",
		"Output WAV file")
	generateCmd.Flags().DurationVar(&options.Duration, "duration", DefaultGenerateDuration,
		"Length of the rendered signal")
	rootCmd.AddCommand(generateCmd)

	// Dial command
	dialCmd := &cobra.Command{
		Use:   CommandDial + " <digits>",
		Short: "Render a keypad tone sequence into a WAV file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandDial
			options.Args = args
		},
	}
	dialCmd.Flags().StringVarP(&options.Output, "output", "o", "tonepipe-dial.wav",
		"Output WAV file")
	dialCmd.Flags().DurationVar(&options.ToneLength, "tone", DefaultToneLength,
		"Length of each key press, rounded up to whole frames")
	dialCmd.Flags().DurationVar(&options.GapLength, "gap", DefaultGapLength,
		"Silence after each key press, rounded up to whole frames")
	dialCmd.Flags().Float64Var(&options.Amplitude, "amplitude", DefaultDialAmplitude,
		"Peak amplitude of each of the two tones")
	rootCmd.AddCommand(dialCmd)

	// Self-test command
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandSelfTest,
		Short: "Check the FFT against a reference transform at the configured size",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandSelfTest
		},
	})

	pf := rootCmd.PersistentFlags()

	// Configuration file
	pf.StringVarP(&options.ConfigPath, "config", "f", "",
		"YAML configuration file (default tonepipe.yaml or config.yaml if present)")
	pf.StringVarP(&flagValues.mode, "mode", "m", config.DefaultMode,
		"Operating mode: analysis or synthesis")

	// Audio Device Configuration
	pf.IntVarP(&flagValues.device, "device", "d", config.DefaultDeviceID,
		"Use one device for input and output. Use 'list' command to see available devices.")
	pf.IntVar(&flagValues.inputDevice, "input-device", config.DefaultDeviceID, "Input device ID")
	pf.IntVar(&flagValues.outputDevice, "output-device", config.DefaultDeviceID, "Output device ID")
	pf.Float64VarP(&flagValues.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flagValues.frameSize, "frame-size", "b", config.DefaultFrameSize,
		"Sample pairs per frame, a power of 2 (affects latency and resolution)")
	pf.BoolVarP(&flagValues.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")

	// Pipeline Configuration
	pf.StringVarP(&flagValues.channels, "channels", "c", config.DefaultChannels,
		"Channels to analyse: mono, left, right or stereo")
	pf.StringVarP(&flagValues.window, "window", "w", config.DefaultWindow,
		"Window applied before the FFT")
	pf.StringVar(&flagValues.spectrum, "spectrum", config.DefaultSpectrum,
		"Spectrum reading: single or full")
	pf.Float64Var(&flagValues.gate, "gate", 0,
		"Noise gate threshold as a fraction of full scale (0 disables)")
	pf.BoolVar(&flagValues.packBack, "pack-back", false,
		"Write the analysed channel back into the frame")

	// Recording Configuration
	pf.BoolVarP(&flagValues.record, "record", "r", false,
		"Record processed frames to a WAV file")
	pf.StringVar(&flagValues.recordDir, "record-dir", "./recordings",
		"Directory for recordings")

	// Transport Configuration
	pf.StringVar(&flagValues.wsAddress, "ws", "",
		"Serve key presses over WebSocket on this address")
	pf.StringVar(&flagValues.udpTarget, "udp", "",
		"Send magnitude snapshots over UDP to this address")

	// Interface and Debug Configuration
	pf.BoolVarP(&options.TUIMode, "tui", "t", true,
		"Show the live monitor (--tui=false logs to the terminal instead)")
	pf.StringVar(&flagValues.logLevel, "log-level", "info",
		"Log level: debug, info, warn or error")
	pf.BoolVarP(&flagValues.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	if options.Config != nil {
		if level, ok := log.ParseLevel(options.Config.LogLevel); ok {
			log.SetLevel(level)
		}
	}

	return options, nil
}
