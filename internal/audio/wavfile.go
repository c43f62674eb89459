package audio

import (
	"context"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays a PCM WAV file as if it were a live input. It is used
// for headless runs and for exercising the pipeline without a microphone.
type WAVSource struct {
	samples    []float32
	sampleRate int
	chunkSize  int
	realtime   bool
	started    bool
}

// OpenWAV decodes the whole file at path into mono float samples in
// [-1, 1]. chunkSize is the number of samples per delivered chunk. When
// realtime is set, chunks are paced at the file's sample rate.
func OpenWAV(path string, chunkSize int, realtime bool) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav file: %s", ErrInputUnavailable, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInputUnavailable, path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: invalid wav buffer: %s", ErrInputUnavailable, path)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}

	if chunkSize <= 0 {
		chunkSize = 512
	}

	return &WAVSource{
		samples:    normalize(buf, bitDepth),
		sampleRate: buf.Format.SampleRate,
		chunkSize:  chunkSize,
		realtime:   realtime,
	}, nil
}

// normalize downmixes an integer PCM buffer to mono floats in [-1, 1]
func normalize(buf *goaudio.IntBuffer, bitDepth int) []float32 {
	ch := buf.Format.NumChannels
	maxVal := float32(int64(1) << (uint(bitDepth) - 1))

	interleaved := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		interleaved[i] = float32(v) / maxVal
	}
	return downmix(interleaved, ch, 1)
}

// Start delivers the decoded samples in chunks and closes the channel at
// the end of the file.
func (s *WAVSource) Start(ctx context.Context) (<-chan []float32, error) {
	if s.started {
		return nil, ErrAlreadyStarted
	}
	s.started = true

	out := make(chan []float32)
	go func() {
		defer close(out)

		var tick <-chan time.Time
		if s.realtime && s.sampleRate > 0 {
			period := time.Duration(float64(time.Second) * float64(s.chunkSize) / float64(s.sampleRate))
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			tick = ticker.C
		}

		for off := 0; off < len(s.samples); off += s.chunkSize {
			end := min(off+s.chunkSize, len(s.samples))
			chunk := make([]float32, end-off)
			copy(chunk, s.samples[off:end])

			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			}

			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}
		}
	}()
	return out, nil
}

// SampleRate returns the sample rate of the file
func (s *WAVSource) SampleRate() int { return s.sampleRate }

// Len returns the number of mono samples in the file
func (s *WAVSource) Len() int { return len(s.samples) }

// Close is a no-op; the file is fully read by OpenWAV
func (s *WAVSource) Close() error { return nil }
