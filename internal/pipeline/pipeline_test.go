package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0xlemi/earnote/internal/audio"
	"github.com/0xlemi/earnote/internal/match"
	"github.com/0xlemi/earnote/internal/note"
	"github.com/0xlemi/earnote/internal/pitch"
)

const (
	rate        = 44100
	frameLength = 2048
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingEstimator records the frames it sees and returns a fixed result.
type countingEstimator struct {
	frames [][]float32
	result pitch.Detection
}

func (c *countingEstimator) Estimate(frame []float32, _ int) pitch.Detection {
	c.frames = append(c.frames, frame)
	return c.result
}

func tone(freq float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

func TestAnalyzerFramesChunks(t *testing.T) {
	t.Parallel()

	est := &countingEstimator{result: pitch.Detection{Frequency: 440, Confidence: 1}}
	a := &Analyzer{
		Frames:     audio.NewFrameBuffer(frameLength),
		Estimator:  est,
		SampleRate: rate,
		Logger:     quietLogger(),
	}

	chunks := make(chan []float32)
	out := make(chan Estimate, 16)
	errc := make(chan error, 1)
	go func() { errc <- a.Run(context.Background(), chunks, out) }()

	// 5 * 1000 = 2*2048 + 904
	for i := 0; i < 5; i++ {
		chunks <- make([]float32, 1000)
	}
	close(chunks)

	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}

	var got []Estimate
	for e := range out {
		got = append(got, e)
	}
	if len(got) != 2 {
		t.Fatalf("got %d estimates, want 2", len(got))
	}
	if got[0].Frequency != 440 {
		t.Errorf("estimate = %+v", got[0])
	}
	if a.Frames.Buffered() != 904 {
		t.Errorf("leftover = %d, want 904", a.Frames.Buffered())
	}
	for _, f := range est.frames {
		if len(f) != frameLength {
			t.Errorf("estimator got frame of %d samples", len(f))
		}
	}
}

func TestAnalyzerStopsOnCancel(t *testing.T) {
	t.Parallel()

	a := &Analyzer{
		Frames:     audio.NewFrameBuffer(frameLength),
		Estimator:  &countingEstimator{},
		SampleRate: rate,
		Logger:     quietLogger(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan []float32)
	out := make(chan Estimate)

	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx, chunks, out) }()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-out; ok {
		t.Error("out not closed")
	}
}

type syncRecorder struct {
	mu      sync.Mutex
	targets []string
	results []match.Result
}

func (r *syncRecorder) TargetChanged(letter string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, letter)
}

func (r *syncRecorder) DetectionUpdated(string) {}

func (r *syncRecorder) ResultChanged(res match.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// TestEndToEnd plays the target note through the real estimator and checks
// that it is scored as correct, and that the cooldown draws a new target.
func TestEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := match.StaticConfig(note.Config{})
	pres := &syncRecorder{}
	sched := match.NewChanScheduler()
	engine := match.New(match.Options{
		Cooldown: 300 * time.Millisecond,
		Rand:     rand.New(rand.NewSource(5)),
		Logger:   quietLogger(),
	}, cfg, pres, sched)

	target := engine.Target()
	freq := 440 * math.Pow(2, float64(60+note.PitchClass(target)-69)/12)

	a := &Analyzer{
		Frames:     audio.NewFrameBuffer(frameLength),
		Estimator:  pitch.NewMPMEstimator(frameLength),
		SampleRate: rate,
		Logger:     quietLogger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chunks := make(chan []float32)
	estimates := make(chan Estimate)
	go a.Run(ctx, chunks, estimates)

	done := make(chan error, 1)
	go func() { done <- RunHeadless(ctx, estimates, engine, sched) }()

	samples := tone(freq, 3*frameLength)
	for off := 0; off < len(samples); off += 128 {
		chunks <- samples[off : off+128]
	}

	// wait for the cooldown to re-pick
	deadline := time.After(2 * time.Second)
	for {
		pres.mu.Lock()
		n := len(pres.targets)
		pres.mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no new target after cooldown")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(chunks)

	if err := <-done; err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}

	pres.mu.Lock()
	defer pres.mu.Unlock()
	correct := 0
	for _, r := range pres.results {
		if r == match.ResultCorrect {
			correct++
		}
	}
	if correct != 1 {
		t.Errorf("got %d correct results, want exactly 1: %v", correct, pres.results)
	}
}

func TestLogPresenter(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	p := &LogPresenter{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	p.TargetChanged("G")
	p.DetectionUpdated("Detected: 392.00 Hz (G4)")
	p.DetectionUpdated("Detected: 392.00 Hz (G4)")
	p.ResultChanged(match.ResultCorrect)
	p.ResultChanged(match.ResultNone)

	out := buf.String()
	if !strings.Contains(out, "note=G") {
		t.Errorf("target not logged:\n%s", out)
	}
	if n := strings.Count(out, "msg=detection"); n != 1 {
		t.Errorf("detection logged %d times, want 1:\n%s", n, out)
	}
	if !strings.Contains(out, "result=correct") {
		t.Errorf("result not logged:\n%s", out)
	}
	if strings.Contains(out, "result=none") {
		t.Errorf("none result should not be logged:\n%s", out)
	}
}
