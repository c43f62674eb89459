package pitch

import (
	"errors"
	"fmt"
	"math"
)

// Errors
var (
	ErrUnknownEstimator = errors.New("unknown pitch estimator")
)

// Detection is the result of analysing one frame. A Frequency of zero
// means no pitch was found.
type Detection struct {
	Frequency  float64 // Hz
	Confidence float64 // 0.0-1.0
}

// Absent reports whether the detection carries no frequency.
func (d Detection) Absent() bool {
	return !(d.Frequency > 0) || math.IsInf(d.Frequency, 0)
}

// Estimator defines the interface for pitch estimation
type Estimator interface {
	// Estimate analyses a frame and returns the dominant frequency with a
	// confidence. Must be deterministic for identical input.
	Estimate(frame []float32, sampleRate int) Detection
}

// Estimator kinds accepted by New.
const (
	KindMPM = "mpm"
	KindFFT = "fft"
)

// New creates an estimator by name for frames of the given length.
func New(kind string, frameLength int) (Estimator, error) {
	switch kind {
	case "", KindMPM:
		return NewMPMEstimator(frameLength), nil
	case KindFFT:
		return NewFFTEstimator(frameLength), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEstimator, kind)
}

// clamp01 keeps a confidence within [0, 1]
func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// rmsLevel returns the RMS and peak absolute value of the samples
func rmsLevel(samples []float32) (rms, peak float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	sumSquares := 0.0
	for _, sample := range samples {
		v := float64(sample)
		sumSquares += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return math.Sqrt(sumSquares / float64(len(samples))), peak
}

// decibels converts an amplitude to dBFS, with a floor of -100
func decibels(amplitude float64) float64 {
	if amplitude > 0.0000001 { // Avoid log(0)
		return 20 * math.Log10(amplitude)
	}
	return -100
}
