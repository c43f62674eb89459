// Package config loads earnote settings from an optional YAML file.
// Command line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xlemi/earnote/internal/note"
	"github.com/0xlemi/earnote/internal/pitch"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a slog level. Unknown levels map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the full set of runtime settings.
type Config struct {
	// Audio input
	SampleRate    int     `yaml:"sample_rate"`
	Channels      int     `yaml:"channels"`
	ChunkSize     int     `yaml:"chunk_size"`
	FrameLength   int     `yaml:"frame_length"`
	Amplification float64 `yaml:"amplification"`

	// Pitch estimation
	Estimator           string  `yaml:"estimator"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MinVolumeDB         float64 `yaml:"min_volume_db"`

	// Quiz
	Cooldown           time.Duration `yaml:"cooldown"`
	IncludeAccidentals bool          `yaml:"include_accidentals"`
	Notation           string        `yaml:"notation"`

	// MIDIOut is a substring of the MIDI output port that plays the target
	// as a reference tone. Empty disables it.
	MIDIOut string `yaml:"midi_out"`

	LogLevel LogLevel `yaml:"log_level"`
	LogFile  string   `yaml:"log_file"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		SampleRate:          44100,
		Channels:            1,
		ChunkSize:           128,
		FrameLength:         2048,
		Amplification:       1.0,
		Estimator:           pitch.KindMPM,
		ConfidenceThreshold: 0.95,
		MinVolumeDB:         -60,
		Cooldown:            1200 * time.Millisecond,
		IncludeAccidentals:  false,
		Notation:            "western",
		LogLevel:            LogInfo,
	}
}

// Load reads the YAML file at path over the defaults and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", cfg.SampleRate))
	}
	if cfg.Channels < 1 {
		errs = append(errs, fmt.Errorf("channels must be at least 1, got %d", cfg.Channels))
	}
	if cfg.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", cfg.ChunkSize))
	}
	if cfg.FrameLength < 64 {
		errs = append(errs, fmt.Errorf("frame_length must be at least 64, got %d", cfg.FrameLength))
	}
	if cfg.Amplification <= 0 {
		errs = append(errs, fmt.Errorf("amplification must be positive, got %g", cfg.Amplification))
	}

	switch strings.ToLower(cfg.Estimator) {
	case pitch.KindMPM, pitch.KindFFT:
	default:
		errs = append(errs, fmt.Errorf("estimator %q is invalid; valid values: %s, %s", cfg.Estimator, pitch.KindMPM, pitch.KindFFT))
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence_threshold must be in (0, 1], got %g", cfg.ConfidenceThreshold))
	}

	if cfg.Cooldown <= 0 {
		errs = append(errs, fmt.Errorf("cooldown must be positive, got %s", cfg.Cooldown))
	}
	if _, err := note.ParseNotation(cfg.Notation); err != nil {
		errs = append(errs, fmt.Errorf("notation %q is invalid; valid values: western, alternative", cfg.Notation))
	}

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	return errors.Join(errs...)
}

// NoteConfig returns the notation settings described by cfg. Call after
// Validate.
func (c *Config) NoteConfig() note.Config {
	n, _ := note.ParseNotation(c.Notation)
	return note.Config{
		IncludeAccidentals: c.IncludeAccidentals,
		Notation:           n,
	}
}
