package pitch

import (
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// FFTEstimator implements pitch estimation by picking the strongest
// spectral peak
type FFTEstimator struct {
	windowSize int
	window     []float64

	// detection band, Hz
	minFrequency float64
	maxFrequency float64

	noiseFloor      float64 // minimum spectral magnitude
	peakThreshold   float64 // fraction of the loudest bin a peak must exceed
	volumeThreshold float64 // minimum RMS
}

// NewFFTEstimator returns an estimator for frames of windowSize samples.
func NewFFTEstimator(windowSize int) *FFTEstimator {
	return &FFTEstimator{
		windowSize:      windowSize,
		window:          window.Hann(windowSize),
		minFrequency:    80.0,   // low bass voice
		maxFrequency:    1200.0, // above soprano C6
		noiseFloor:      0.01,
		peakThreshold:   0.2,
		volumeThreshold: 0.005,
	}
}

// Estimate analyses a frame and returns the strongest peak. Confidence is
// the share of the chosen peak in the total magnitude of all candidate
// peaks, so a lone sinusoid scores close to 1.
func (d *FFTEstimator) Estimate(frame []float32, sampleRate int) Detection {
	if len(frame) == 0 || sampleRate <= 0 {
		return Detection{}
	}

	rms, peak := rmsLevel(frame)
	if rms < d.volumeThreshold || decibels(rms) < -50.0 || peak < 2*d.volumeThreshold {
		return Detection{}
	}

	w := d.window
	if len(w) != len(frame) {
		w = window.Hann(len(frame))
	}
	windowed := make([]float64, len(frame))
	for i, sample := range frame {
		windowed[i] = float64(sample) * w[i]
	}

	spectrum := fft.FFTReal(windowed)

	peaks := d.findPeaks(spectrum, sampleRate)
	if len(peaks) == 0 {
		return Detection{}
	}

	total := 0.0
	for _, p := range peaks {
		total += p.Magnitude
	}
	best := peaks[0]

	if best.Frequency < d.minFrequency || best.Frequency > d.maxFrequency {
		return Detection{}
	}

	return Detection{
		Frequency:  best.Frequency,
		Confidence: clamp01(best.Magnitude / total),
	}
}

// Peak is a local maximum of the magnitude spectrum.
type Peak struct {
	Bin       int
	Magnitude float64
	Frequency float64
}

// bins returns the bin range covering the detection band, clipped to the
// positive-frequency half and excluding DC.
func (d *FFTEstimator) bins(n int, hzPerBin float64) (lo, hi int) {
	lo = max(int(d.minFrequency/hzPerBin), 1)
	hi = min(int(d.maxFrequency/hzPerBin), n/2-1)
	return lo, hi
}

// findPeaks returns the spectral peaks in the detection band, strongest
// first
func (d *FFTEstimator) findPeaks(spectrum []complex128, sampleRate int) []Peak {
	hzPerBin := float64(sampleRate) / float64(len(spectrum))
	lo, hi := d.bins(len(spectrum), hzPerBin)
	if hi-lo < 2 {
		return nil
	}

	mags := make([]float64, hi+2)
	loudest := 0.0
	for i := lo - 1; i <= hi+1 && i < len(spectrum); i++ {
		mags[i] = cmplx.Abs(spectrum[i])
		if i >= lo && i <= hi {
			loudest = max(loudest, mags[i])
		}
	}
	if loudest < d.noiseFloor {
		return nil
	}

	var peaks []Peak
	floor := loudest * d.peakThreshold
	for i := lo + 1; i < hi; i++ {
		m, l, r := mags[i], mags[i-1], mags[i+1]
		if m <= l || m <= r || m <= floor {
			continue
		}
		peaks = append(peaks, Peak{
			Bin:       i,
			Magnitude: m,
			Frequency: (float64(i) + vertexOffset(l, m, r)) * hzPerBin,
		})
	}

	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Magnitude > peaks[j].Magnitude })
	return peaks
}

// vertexOffset is the offset, in bins, of the vertex of the parabola
// through three neighbouring magnitudes.
func vertexOffset(l, m, r float64) float64 {
	denom := l - 2*m + r
	if denom == 0 {
		return 0
	}
	return 0.5 * (l - r) / denom
}
