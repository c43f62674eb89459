package pipeline

import (
	"context"
	"log/slog"

	"github.com/0xlemi/earnote/internal/match"
)

// LogPresenter shows engine events as log lines, for runs without a
// terminal UI. Repeated detection lines are collapsed.
type LogPresenter struct {
	Logger *slog.Logger

	lastText string
}

// TargetChanged implements match.Presenter.
func (p *LogPresenter) TargetChanged(letter string) {
	p.Logger.Info("target", "note", letter)
}

// DetectionUpdated implements match.Presenter.
func (p *LogPresenter) DetectionUpdated(text string) {
	if text == "" || text == p.lastText {
		p.lastText = text
		return
	}
	p.lastText = text
	p.Logger.Debug("detection", "text", text)
}

// ResultChanged implements match.Presenter.
func (p *LogPresenter) ResultChanged(r match.Result) {
	if r == match.ResultNone {
		return
	}
	level := slog.LevelDebug
	if r == match.ResultCorrect {
		level = slog.LevelInfo
	}
	p.Logger.Log(context.Background(), level, "result", "result", r.String(), "detected", p.lastText)
}

// RunHeadless drives engine from estimates on the calling goroutine,
// running cooldown callbacks from sched in between. It returns nil when
// estimates is closed, after closing the engine.
func RunHeadless(ctx context.Context, estimates <-chan Estimate, engine *match.Engine, sched *match.ChanScheduler) error {
	defer engine.Close()
	defer sched.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-sched.C:
			f()
		case est, ok := <-estimates:
			if !ok {
				return nil
			}
			engine.Observe(est.Detection)
		}
	}
}
