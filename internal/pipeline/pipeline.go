// Package pipeline connects the audio side (framing and pitch estimation)
// to the display side (the match engine). The two sides share nothing but
// the Estimate channel between them.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/0xlemi/earnote/internal/audio"
	"github.com/0xlemi/earnote/internal/pitch"
)

// Estimate is one analysed frame, as sent to the display side.
type Estimate struct {
	pitch.Detection
	Level audio.Level
}

// Analyzer frames incoming chunks and estimates the pitch of every frame.
type Analyzer struct {
	Frames     *audio.FrameBuffer
	Estimator  pitch.Estimator
	SampleRate int
	Logger     *slog.Logger
}

// Run consumes chunks until the channel closes or ctx is done, sending one
// Estimate per complete frame. out is closed when Run returns. A closed
// chunk channel is a normal end and returns nil.
func (a *Analyzer) Run(ctx context.Context, chunks <-chan []float32, out chan<- Estimate) error {
	defer close(out)

	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var frames uint64
	defer func() {
		logger.Debug("analyzer stopped", "frames", frames, "leftover", a.Frames.Buffered())
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			for frame := range a.Frames.Push(chunk) {
				est := Estimate{
					Detection: a.Estimator.Estimate(frame, a.SampleRate),
					Level:     audio.MeasureLevel(frame),
				}
				frames++
				select {
				case out <- est:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
