package match

import (
	"sync"
	"time"

	"github.com/0xlemi/earnote/internal/note"
)

// Result is the match indicator shown next to the target.
type Result int

const (
	ResultNone Result = iota
	ResultCorrect
	ResultIncorrect
)

func (r Result) String() string {
	switch r {
	case ResultCorrect:
		return "correct"
	case ResultIncorrect:
		return "incorrect"
	default:
		return "none"
	}
}

// Presenter receives display events from the engine. Implementations must
// not call back into the engine from these methods.
type Presenter interface {
	TargetChanged(letter string)
	DetectionUpdated(text string)
	ResultChanged(r Result)
}

// ConfigSource exposes the notation settings currently chosen by the user.
type ConfigSource interface {
	NotationConfig() note.Config
}

// StaticConfig is a ConfigSource that never changes.
type StaticConfig note.Config

// NotationConfig implements ConfigSource.
func (c StaticConfig) NotationConfig() note.Config { return note.Config(c) }

// Scheduler runs f once after d. The returned stop function cancels the
// call if it has not run yet. f must be invoked on the goroutine that
// drives the engine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func())
}

// ChanScheduler is a Scheduler for a select loop: fired callbacks are
// delivered on C and the loop runs them.
type ChanScheduler struct {
	C    chan func()
	done chan struct{}
	once sync.Once
}

// NewChanScheduler creates a scheduler with an unbuffered callback channel.
func NewChanScheduler() *ChanScheduler {
	return &ChanScheduler{
		C:    make(chan func()),
		done: make(chan struct{}),
	}
}

// AfterFunc implements Scheduler.
func (s *ChanScheduler) AfterFunc(d time.Duration, f func()) func() {
	cancelled := make(chan struct{})
	var once sync.Once

	t := time.AfterFunc(d, func() {
		select {
		case s.C <- f:
		case <-cancelled:
		case <-s.done:
		}
	})

	return func() {
		t.Stop()
		once.Do(func() { close(cancelled) })
	}
}

// Close releases timers still waiting to deliver.
func (s *ChanScheduler) Close() {
	s.once.Do(func() { close(s.done) })
}
