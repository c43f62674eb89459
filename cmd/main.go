package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0xlemi/earnote/internal/audio"
	"github.com/0xlemi/earnote/internal/config"
	"github.com/0xlemi/earnote/internal/match"
	"github.com/0xlemi/earnote/internal/midiout"
	"github.com/0xlemi/earnote/internal/pipeline"
	"github.com/0xlemi/earnote/internal/pitch"
	"github.com/0xlemi/earnote/internal/ui"
)

type options struct {
	configPath string
	input      string
	headless   bool
	realtime   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "earnote",
		Short: "Ear training: sing the note shown on screen",
		Long: "earnote listens to the microphone, estimates the pitch you sing or play and\n" +
			"checks it against a random target note. A correct note draws a new target.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := resolveConfig(cmd, opts.configPath, cfg)
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts, resolved)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	f.StringVarP(&opts.input, "input", "i", "", "read audio from a WAV file instead of the microphone")
	f.BoolVar(&opts.headless, "headless", false, "log results instead of showing the terminal UI")
	f.BoolVar(&opts.realtime, "realtime", true, "pace WAV input at its sample rate")

	f.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "microphone sample rate in Hz")
	f.IntVar(&cfg.FrameLength, "frame-length", cfg.FrameLength, "analysis frame length in samples")
	f.Float64Var(&cfg.Amplification, "amplification", cfg.Amplification, "microphone gain")
	f.StringVar(&cfg.Estimator, "estimator", cfg.Estimator, "pitch estimator: mpm or fft")
	f.Float64Var(&cfg.ConfidenceThreshold, "threshold", cfg.ConfidenceThreshold, "minimum confidence for a detection to count")
	f.DurationVar(&cfg.Cooldown, "cooldown", cfg.Cooldown, "pause after a correct note before the next target")
	f.BoolVarP(&cfg.IncludeAccidentals, "accidentals", "a", cfg.IncludeAccidentals, "include sharps in the targets")
	f.StringVarP(&cfg.Notation, "notation", "n", cfg.Notation, "note names: western or alternative")
	f.StringVar(&cfg.MIDIOut, "midi-out", cfg.MIDIOut, "play the target on the first MIDI output whose name contains this")
	f.StringVar((*string)(&cfg.LogLevel), "log-level", string(cfg.LogLevel), "debug, info, warn or error")
	f.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file (the UI otherwise discards them)")

	return cmd
}

// resolveConfig loads the config file, if any, and re-applies the flags the
// user set explicitly on top of it.
func resolveConfig(cmd *cobra.Command, path string, flagged *config.Config) (*config.Config, error) {
	if path == "" {
		if err := config.Validate(flagged); err != nil {
			return nil, err
		}
		return flagged, nil
	}

	fromFile, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	override := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	override("sample-rate", func() { fromFile.SampleRate = flagged.SampleRate })
	override("frame-length", func() { fromFile.FrameLength = flagged.FrameLength })
	override("amplification", func() { fromFile.Amplification = flagged.Amplification })
	override("estimator", func() { fromFile.Estimator = flagged.Estimator })
	override("threshold", func() { fromFile.ConfidenceThreshold = flagged.ConfidenceThreshold })
	override("cooldown", func() { fromFile.Cooldown = flagged.Cooldown })
	override("accidentals", func() { fromFile.IncludeAccidentals = flagged.IncludeAccidentals })
	override("notation", func() { fromFile.Notation = flagged.Notation })
	override("midi-out", func() { fromFile.MIDIOut = flagged.MIDIOut })
	override("log-level", func() { fromFile.LogLevel = flagged.LogLevel })
	override("log-file", func() { fromFile.LogFile = flagged.LogFile })

	if err := config.Validate(fromFile); err != nil {
		return nil, err
	}
	return fromFile, nil
}

// newLogger builds the process logger. The terminal UI owns stdout and
// stderr, so without a log file its logs are dropped.
func newLogger(cfg *config.Config, headless bool) (*slog.Logger, func(), error) {
	var (
		w       io.Writer = io.Discard
		cleanup           = func() {}
	)
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		cleanup = func() { f.Close() }
	case headless:
		w = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel.Level()}))
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

func newEstimator(cfg *config.Config) (pitch.Estimator, error) {
	est, err := pitch.New(cfg.Estimator, cfg.FrameLength)
	if err != nil {
		return nil, err
	}
	if mpm, ok := est.(*pitch.MPMEstimator); ok {
		mpm.SetMinVolumeDB(cfg.MinVolumeDB)
	}
	return est, nil
}

func newSource(opts options, cfg *config.Config, logger *slog.Logger) (audio.Source, error) {
	if opts.input != "" {
		return audio.OpenWAV(opts.input, cfg.ChunkSize, opts.realtime)
	}
	capturer, err := audio.NewPortAudioCapturer(cfg.ChunkSize, cfg.SampleRate, cfg.Channels, logger)
	if err != nil {
		return nil, err
	}
	capturer.SetAmplification(float32(cfg.Amplification))
	return capturer, nil
}

func run(parent context.Context, opts options, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closeLog, err := newLogger(cfg, opts.headless)
	if err != nil {
		return err
	}
	defer closeLog()

	est, err := newEstimator(cfg)
	if err != nil {
		return err
	}

	matchOpts := match.Options{
		Threshold: cfg.ConfidenceThreshold,
		Cooldown:  cfg.Cooldown,
		Logger:    logger,
	}

	if opts.headless {
		return runHeadless(ctx, opts, cfg, est, matchOpts, logger)
	}
	return runUI(ctx, opts, cfg, est, matchOpts, logger)
}

// withReference wraps pres with a MIDI reference tone when configured. A
// missing port is logged and ignored.
func withReference(cfg *config.Config, pres match.Presenter, logger *slog.Logger) (match.Presenter, func()) {
	if cfg.MIDIOut == "" {
		return pres, func() {}
	}
	ref, err := midiout.Open(cfg.MIDIOut, pres, logger)
	if err != nil {
		logger.Warn("midi reference tone disabled", "err", err)
		return pres, func() {}
	}
	return ref, func() {
		if err := ref.Close(); err != nil {
			logger.Warn("midi close", "err", err)
		}
	}
}

func runHeadless(ctx context.Context, opts options, cfg *config.Config, est pitch.Estimator, matchOpts match.Options, logger *slog.Logger) error {
	src, err := newSource(opts, cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	chunks, err := src.Start(ctx)
	if err != nil {
		return err
	}

	pres, closeRef := withReference(cfg, &pipeline.LogPresenter{Logger: logger}, logger)
	defer closeRef()

	sched := match.NewChanScheduler()
	engine := match.New(matchOpts, match.StaticConfig(cfg.NoteConfig()), pres, sched)

	analyzer := &pipeline.Analyzer{
		Frames:     audio.NewFrameBuffer(cfg.FrameLength),
		Estimator:  est,
		SampleRate: src.SampleRate(),
		Logger:     logger,
	}

	estimates := make(chan pipeline.Estimate)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return analyzer.Run(gctx, chunks, estimates) })
	g.Go(func() error { return pipeline.RunHeadless(gctx, estimates, engine, sched) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runUI(ctx context.Context, opts options, cfg *config.Config, est pitch.Estimator, matchOpts match.Options, logger *slog.Logger) error {
	model := ui.NewModel(cfg.NoteConfig())

	pres, closeRef := withReference(cfg, model.Presenter(), logger)
	defer closeRef()

	engine := match.New(matchOpts, model.Settings(), pres, model.Scheduler())
	model = model.WithEngine(engine)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)

	// audio side: failures are shown in the UI and end the pipeline, not
	// the session
	g.Go(func() error {
		src, err := newSource(opts, cfg, logger)
		if err != nil {
			logger.Error("audio input", "err", err)
			p.Send(ui.InputErrorMsg{Err: err})
			return nil
		}
		defer src.Close()

		chunks, err := src.Start(gctx)
		if err != nil {
			logger.Error("audio input", "err", err)
			p.Send(ui.InputErrorMsg{Err: err})
			return nil
		}

		analyzer := &pipeline.Analyzer{
			Frames:     audio.NewFrameBuffer(cfg.FrameLength),
			Estimator:  est,
			SampleRate: src.SampleRate(),
			Logger:     logger,
		}

		estimates := make(chan pipeline.Estimate)
		ag, actx := errgroup.WithContext(gctx)
		ag.Go(func() error { return analyzer.Run(actx, chunks, estimates) })
		ag.Go(func() error {
			for e := range estimates {
				p.Send(ui.EstimateMsg(e))
			}
			p.Send(ui.InputClosedMsg{})
			return nil
		})
		if err := ag.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// display side
	g.Go(func() error {
		_, err := p.Run()
		engine.Close()
		if errors.Is(err, tea.ErrProgramKilled) {
			err = nil
		}
		return errors.Join(err, errStop)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errStop) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// errStop cancels the audio side once the UI exits
var errStop = errors.New("ui stopped")
