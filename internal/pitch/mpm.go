package pitch

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// MPMEstimator implements the McLeod pitch method. It looks for the first
// strong peak of the normalized square difference function (NSDF) and
// reports the height of that peak as the clarity of the estimate.
type MPMEstimator struct {
	frameLength int
	fftSize     int
	cutoff      float64 // Key maxima below cutoff*highest are ignored
	minVolumeDB float64 // Frames quieter than this (dBFS) produce no estimate
}

// NewMPMEstimator creates a McLeod pitch estimator for frames of the
// given length.
func NewMPMEstimator(frameLength int) *MPMEstimator {
	size := 1
	for size < 2*frameLength {
		size <<= 1
	}
	return &MPMEstimator{
		frameLength: frameLength,
		fftSize:     size,
		cutoff:      0.9,
		minVolumeDB: math.Inf(-1),
	}
}

// SetMinVolumeDB sets the loudness gate. Use -Inf to disable it.
func (e *MPMEstimator) SetMinVolumeDB(db float64) {
	e.minVolumeDB = db
}

// Estimate returns the fundamental frequency and clarity of frame.
func (e *MPMEstimator) Estimate(frame []float32, sampleRate int) Detection {
	if len(frame) < 3 || sampleRate <= 0 {
		return Detection{}
	}

	if !math.IsInf(e.minVolumeDB, -1) {
		rms, _ := rmsLevel(frame)
		if decibels(rms) < e.minVolumeDB {
			return Detection{}
		}
	}

	nsdf := e.nsdf(frame)

	peaks := keyMaxima(nsdf)
	if len(peaks) == 0 {
		return Detection{}
	}

	highest := 0.0
	for _, i := range peaks {
		if nsdf[i] > highest {
			highest = nsdf[i]
		}
	}

	threshold := e.cutoff * highest
	chosen := peaks[0]
	for _, i := range peaks {
		if nsdf[i] >= threshold {
			chosen = i
			break
		}
	}

	tau, clarity := parabolicPeak(nsdf, chosen)
	if tau <= 0 {
		return Detection{}
	}

	return Detection{
		Frequency:  float64(sampleRate) / tau,
		Confidence: clamp01(clarity),
	}
}

// nsdf computes n(tau) = 2*r(tau) / m(tau) for tau in [0, len(frame)/2).
// Longer lags overlap too few samples to be meaningful. The
// autocorrelation r is obtained through the FFT of the zero padded frame.
func (e *MPMEstimator) nsdf(frame []float32) []float64 {
	n := len(frame)
	size := e.fftSize
	if size < 2*n {
		size = 1
		for size < 2*n {
			size <<= 1
		}
	}

	padded := make([]float64, size)
	for i, s := range frame {
		padded[i] = float64(s)
	}

	spectrum := fft.FFTReal(padded)
	for i, c := range spectrum {
		re, im := real(c), imag(c)
		spectrum[i] = complex(re*re+im*im, 0)
	}
	acf := fft.IFFT(spectrum)

	// m(0) = 2 * sum(x^2), shrinking by the two samples that leave the
	// overlap at each lag.
	m := 0.0
	for _, s := range frame {
		v := float64(s)
		m += 2 * v * v
	}

	out := make([]float64, n/2)
	for tau := range out {
		if m > 1e-12 {
			out[tau] = 2 * real(acf[tau]) / m
		}
		head := float64(frame[tau])
		tail := float64(frame[n-1-tau])
		m -= head*head + tail*tail
	}
	return out
}

// keyMaxima returns the index of the highest point in every positive lobe
// of the NSDF after the first zero crossing.
func keyMaxima(nsdf []float64) []int {
	n := len(nsdf)
	i := 0
	// skip the lobe around lag zero
	for i < n && nsdf[i] > 0 {
		i++
	}
	for i < n && nsdf[i] <= 0 {
		i++
	}
	if i == 0 {
		i = 1
	}

	var peaks []int
	best := 0
	for ; i < n-1; i++ {
		if nsdf[i] > nsdf[i-1] && nsdf[i] >= nsdf[i+1] {
			if best == 0 || nsdf[i] > nsdf[best] {
				best = i
			}
		}
		if nsdf[i+1] <= 0 && best > 0 {
			peaks = append(peaks, best)
			best = 0
		}
	}
	if best > 0 {
		peaks = append(peaks, best)
	}
	return peaks
}

// parabolicPeak refines the peak at index i with a parabola through its
// neighbours and returns the fractional lag and interpolated height.
func parabolicPeak(data []float64, i int) (x, y float64) {
	if i <= 0 || i >= len(data)-1 {
		return float64(i), data[i]
	}
	prev, cur, next := data[i-1], data[i], data[i+1]
	denom := prev - 2*cur + next
	if denom == 0 {
		return float64(i), cur
	}
	shift := 0.5 * (prev - next) / denom
	return float64(i) + shift, cur - 0.25*(prev-next)*shift
}
