package audio

import (
	"context"
	"errors"
	"math"
)

// Errors
var (
	// ErrInputUnavailable is returned when no audio input can be opened,
	// typically because access was denied or no device exists. It is
	// terminal for the session.
	ErrInputUnavailable = errors.New("audio input unavailable")

	ErrAlreadyStarted = errors.New("audio capture already started")
	ErrNotStarted     = errors.New("audio capture not started")
)

// Source defines the interface for a mono audio input
type Source interface {
	// Start begins delivering sample chunks. The channel is closed when the
	// source is exhausted, closed, or ctx is cancelled.
	Start(ctx context.Context) (<-chan []float32, error)

	// SampleRate returns the rate of the delivered samples in Hz
	SampleRate() int

	// Close releases the underlying device or file
	Close() error
}

// Level is the loudness of a block of samples
type Level struct {
	RMS float64
	DB  float64
}

// MeasureLevel calculates RMS and dB level
func MeasureLevel(samples []float32) Level {
	if len(samples) == 0 {
		return Level{RMS: 0, DB: -100}
	}

	sumSquares := 0.0
	for _, sample := range samples {
		v := float64(sample)
		sumSquares += v * v
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))

	// Calculate dB (with protection against log(0))
	db := -100.0
	if rms > 0.0000001 {
		db = 20 * math.Log10(rms)
	}

	return Level{RMS: rms, DB: db}
}

// downmix averages interleaved channels into mono and applies gain
func downmix(in []float32, channels int, gain float32) []float32 {
	if channels <= 1 {
		out := make([]float32, len(in))
		for i, sample := range in {
			out[i] = sample * gain
		}
		return out
	}

	out := make([]float32, len(in)/channels)
	for i := range out {
		sum := float32(0)
		for ch := 0; ch < channels; ch++ {
			sum += in[i*channels+ch]
		}
		out[i] = (sum / float32(channels)) * gain
	}
	return out
}
