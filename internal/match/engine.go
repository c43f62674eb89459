// Package match holds the note quiz state machine: the current target, the
// cooldown after a correct answer and the mapping of raw pitch estimates to
// display events.
package match

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/0xlemi/earnote/internal/note"
	"github.com/0xlemi/earnote/internal/pitch"
)

// State of the engine
type State int

const (
	// Listening accepts detections
	Listening State = iota
	// Cooldown ignores detections until the next target is drawn
	Cooldown
	// Closed ignores everything
	Closed
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Cooldown:
		return "cooldown"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Defaults
const (
	DefaultThreshold = 0.95
	DefaultCooldown  = 1200 * time.Millisecond
)

// Options tune the engine
type Options struct {
	// Threshold is the minimum confidence for a detection to count.
	Threshold float64
	// Cooldown is how long detections are ignored after a correct match.
	Cooldown time.Duration
	// Rand picks targets. Nil uses a time-seeded source.
	Rand *rand.Rand
	// Logger receives transition logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// Engine is the quiz state machine. It is not safe for concurrent use:
// every method, and every callback handed to the Scheduler, must run on
// the same goroutine.
type Engine struct {
	opts      Options
	config    ConfigSource
	presenter Presenter
	scheduler Scheduler
	rng       *rand.Rand
	logger    *slog.Logger

	state  State
	target string

	// gen identifies the current cooldown; stale timer callbacks compare
	// against it and do nothing
	gen        uint64
	stopTimer  func()
	lastResult Result
}

// New creates an engine and draws the first target.
func New(opts Options, config ConfigSource, presenter Presenter, scheduler Scheduler) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		opts:      opts,
		config:    config,
		presenter: presenter,
		scheduler: scheduler,
		rng:       rng,
		logger:    logger,
	}
	e.pick("")
	return e
}

// State returns the current state
func (e *Engine) State() State { return e.state }

// Target returns the pitch class the user should produce
func (e *Engine) Target() string { return e.target }

// Result returns the indicator last sent to the presenter
func (e *Engine) Result() Result { return e.lastResult }

// SelectNewTarget draws a target uniformly from the active vocabulary and
// returns to Listening. A pending cooldown is cancelled.
func (e *Engine) SelectNewTarget() {
	if e.state == Closed {
		return
	}
	e.pick("")
}

// ConfigChanged re-draws the target after the notation settings changed.
// The previous target is avoided when another choice exists, so the user
// sees that the toggle took effect.
func (e *Engine) ConfigChanged() {
	if e.state == Closed {
		return
	}
	e.pick(e.target)
}

func (e *Engine) pick(avoid string) {
	e.cancelCooldown()

	vocab := note.Vocabulary(e.config.NotationConfig())
	if avoid != "" && len(vocab) > 1 {
		filtered := vocab[:0]
		for _, l := range vocab {
			if l != avoid {
				filtered = append(filtered, l)
			}
		}
		vocab = filtered
	}

	e.target = vocab[e.rng.Intn(len(vocab))]
	e.state = Listening
	e.logger.Debug("new target", "target", e.target)

	e.presenter.TargetChanged(e.target)
	e.presenter.DetectionUpdated("")
	e.setResult(ResultNone)
}

// Observe scores one estimator result. Detections below the confidence
// threshold, or that name an excluded accidental, count as no note.
func (e *Engine) Observe(d pitch.Detection) {
	if e.state != Listening {
		return
	}

	cfg := e.config.NotationConfig()

	var (
		n  note.Name
		ok bool
	)
	if !d.Absent() && d.Confidence >= e.opts.Threshold {
		n, ok = note.FrequencyToNote(d.Frequency, cfg)
	}

	if !ok {
		e.presenter.DetectionUpdated(FormatDetection(0, note.Name{}, false))
		e.setResult(ResultNone)
		return
	}

	text := FormatDetection(d.Frequency, n, true)
	e.presenter.DetectionUpdated(text)

	if n.Letter != e.target {
		e.setResult(ResultIncorrect)
		return
	}

	e.setResult(ResultCorrect)
	e.startCooldown()
	e.logger.Info("target matched", "target", e.target, "detected", n.String(), "hz", d.Frequency)
}

func (e *Engine) startCooldown() {
	e.state = Cooldown
	e.gen++
	gen := e.gen
	e.stopTimer = e.scheduler.AfterFunc(e.opts.Cooldown, func() {
		if e.state != Cooldown || e.gen != gen {
			return
		}
		e.stopTimer = nil
		e.pick("")
	})
}

func (e *Engine) cancelCooldown() {
	if e.stopTimer != nil {
		e.stopTimer()
		e.stopTimer = nil
	}
	e.gen++
}

func (e *Engine) setResult(r Result) {
	e.lastResult = r
	e.presenter.ResultChanged(r)
}

// Close cancels any pending cooldown. Later calls are ignored.
func (e *Engine) Close() {
	e.cancelCooldown()
	e.state = Closed
}

// FormatDetection renders the "Detected: ..." line.
func FormatDetection(hz float64, n note.Name, ok bool) string {
	if !ok {
		return "Detected: - (-)"
	}
	return fmt.Sprintf("Detected: %.2f Hz (%s)", hz, n)
}
