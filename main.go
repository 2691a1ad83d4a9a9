// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"tonepipe/cmd"
	"tonepipe/internal/audio"
	"tonepipe/internal/config"
	"tonepipe/internal/log"
	"tonepipe/internal/pipeline"
	"tonepipe/internal/ring"
	"tonepipe/internal/transport"
	"tonepipe/internal/transport/udp"
	"tonepipe/internal/tui"
	"tonepipe/pkg/build"
)

// main is the entry point for the frame pipeline.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//   - Configure runtime settings and initialize PortAudio
//
// 2. Concurrent Phase (Hot Path):
//   - Start the stream: every callback is a completion signal
//   - Run the processing loop (analysis) or the per-sample handler (synthesis)
//   - Publish results and show the monitor
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or monitor exit
//   - Stop the stream, recording and transports
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Initialize build information including version, commit hash, and build time
	if err := build.Initialize(); err != nil {
		log.Fatal(err)
	}

	// Parse command line arguments and build configuration
	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	// Handle one-off commands (device listing, file processing) that don't
	// require the live engine to be running
	if opts.Command != "" {
		if err := cmd.RunCommand(opts, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	// Exit after --help or --version
	if !opts.Live {
		return
	}

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the processing loop (time-critical)
	// - One thread for UI and I/O operations
	runtime.GOMAXPROCS(2)

	// Initialize PortAudio subsystem
	if err := audio.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer audio.Terminate()

	// While the monitor owns the terminal, logs go to a file.
	if opts.TUIMode {
		logPath := filepath.Join(os.TempDir(), build.GetBuildFlags().Name+".log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
		defer log.SetOutput(os.Stderr)
		defer fmt.Printf("Log written to %s\n", logPath)
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.Config.Mode {
	case config.ModeSynthesis:
		err = runSynthesis(ctx, opts)
	default:
		err = runAnalysis(ctx, opts)
	}
	if err != nil {
		log.Errorf("%v", err)
		stop()
		audio.Terminate()
		os.Exit(1)
	}
}

// runAnalysis runs the analysis pipeline until ctx is done or the monitor
// exits.
func runAnalysis(ctx context.Context, opts *cmd.Options) error {
	cfg := opts.Config

	r, err := ring.New(cfg.Audio.FrameSize)
	if err != nil {
		return err
	}
	proc, err := pipeline.NewFrameProcessor(cfg, r)
	if err != nil {
		return err
	}

	// Key presses are always logged; network transports are optional.
	proc.AddObserver(transport.NewSymbolPublisher(transport.NewLoggingTransport()))

	if cfg.Transport.WSEnabled {
		wst, err := transport.NewWebSocketTransport(cfg.Transport.WSAddress)
		if err != nil {
			return err
		}
		defer wst.Close()
		proc.AddObserver(transport.NewSymbolPublisher(wst))
		log.Infof("Serving key presses on ws://%s/ws", wst.Addr())
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, proc)
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Stop()
	}

	var recorder *audio.Recorder
	if cfg.Recording.Enabled {
		recorder = audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.FrameSize)
		path := audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
		if err := recorder.Start(path); err != nil {
			return err
		}
		proc.AddFrameSink(recorder)
		defer func() {
			if err := recorder.Stop(); err != nil {
				log.Errorf("Error stopping recording: %v", err)
				return
			}
			fmt.Printf("\nRecording saved to: %s (%d frames)\n", path, recorder.Frames())
		}()
	}

	var feed *tui.Feed
	if opts.TUIMode {
		feed = tui.NewFeed(64)
		proc.AddObserver(feed)
	}

	engine, err := audio.NewEngine(cfg, r)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Errorf("Error closing audio engine: %v", err)
		}
	}()

	// CRITICAL: Start of real-time audio processing
	// From here PortAudio calls the stream callback once per frame and the
	// processing loop must keep up with it.
	if err := engine.Start(); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loopDone := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		loopDone <- proc.Run(loopCtx)
	}()

	if opts.TUIMode {
		if err := tui.RunMonitor(ctx, build.GetBuildFlags().Name, tui.AnalysisSource(proc), feed); err != nil {
			log.Errorf("Monitor failed: %v", err)
		}
	} else {
		log.Infof("Analysing %d-sample frames at %.0f Hz; press Ctrl+C to stop", cfg.Audio.FrameSize, cfg.Audio.SampleRate)
		<-ctx.Done()
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := engine.Stop(); err != nil {
		log.Errorf("Error stopping audio engine: %v", err)
	}
	cancel()
	if err := <-loopDone; err != nil {
		log.Errorf("Processing loop failed: %v", err)
	}

	st := proc.Stats()
	log.Infof("Processed %d frames (%d gated, %d keys, %d overruns)", st.Frames, st.Gated, st.Symbols, st.Overruns)
	return nil
}

// runSynthesis plays the configured oscillator bank until ctx is done or
// the monitor exits.
func runSynthesis(ctx context.Context, opts *cmd.Options) error {
	cfg := opts.Config

	engine, err := audio.NewSynthEngine(cfg)
	if err != nil {
		return err
	}
	synth, err := pipeline.NewSynthesizer(cfg, engine)
	if err != nil {
		return err
	}

	// CRITICAL: Start of real-time synthesis
	if err := engine.Start(synth); err != nil {
		return err
	}

	if opts.TUIMode {
		if err := tui.RunMonitor(ctx, build.GetBuildFlags().Name, tui.SynthesisSource(synth, engine), nil); err != nil {
			log.Errorf("Monitor failed: %v", err)
		}
	} else {
		log.Infof("Synthesizing %d oscillators at %.0f Hz; press Ctrl+C to stop", len(cfg.Synthesis.Oscillators), cfg.Audio.SampleRate)
		<-ctx.Done()
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := engine.Stop(); err != nil {
		log.Errorf("Error stopping synthesis engine: %v", err)
	}

	st := synth.Stats()
	log.Infof("Synthesized %d samples (%d skipped, %d overruns)", st.Samples, st.Skipped, engine.Overruns())
	return nil
}
