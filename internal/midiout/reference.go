// Package midiout plays the current target note on a MIDI output so the
// user can hear what to sing.
package midiout

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/0xlemi/earnote/internal/match"
	"github.com/0xlemi/earnote/internal/note"
)

// ErrPortNotFound is returned when no output port matches the requested name.
var ErrPortNotFound = errors.New("midi output port not found")

const (
	referenceOctave   = 4
	referenceVelocity = 90
)

// Reference wraps a Presenter and sounds every new target on a MIDI
// channel. Other events pass straight through.
type Reference struct {
	next    match.Presenter
	send    func(midi.Message) error
	channel uint8
	key     int // sounding key, -1 when silent
	logger  *slog.Logger

	closer func() error
}

// NewReference creates a Reference that sends through send. It is mostly
// useful with a fake sender; Open connects to a real port.
func NewReference(next match.Presenter, send func(midi.Message) error, logger *slog.Logger) *Reference {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reference{
		next:   next,
		send:   send,
		key:    -1,
		logger: logger,
	}
}

// Open finds the first output port whose name contains portName
// (case-insensitive) and returns a Reference playing on it.
func Open(portName string, next match.Presenter, logger *slog.Logger) (*Reference, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}

	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("list midi outputs: %w", err)
	}

	var found drivers.Out
	for _, out := range outs {
		if strings.Contains(strings.ToLower(out.String()), strings.ToLower(portName)) {
			found = out
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("%w: %q", ErrPortNotFound, portName)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open %q: %w", found.String(), err)
	}

	send, err := midi.SendTo(found)
	if err != nil {
		found.Close()
		drv.Close()
		return nil, fmt.Errorf("send to %q: %w", found.String(), err)
	}

	r := NewReference(next, send, logger)
	r.closer = func() error {
		err := found.Close()
		return errors.Join(err, drv.Close())
	}
	r.logger.Info("midi reference tone enabled", "port", found.String())
	return r, nil
}

// Key returns the MIDI key for letter at the reference octave, or -1.
func Key(letter string) int {
	pc := note.PitchClass(letter)
	if pc < 0 {
		return -1
	}
	return (referenceOctave+1)*12 + pc
}

// TargetChanged stops the previous reference tone and starts the new one.
func (r *Reference) TargetChanged(letter string) {
	r.silence()
	if key := Key(letter); key >= 0 {
		if err := r.send(midi.NoteOn(r.channel, uint8(key), referenceVelocity)); err != nil {
			r.logger.Warn("midi note on", "key", key, "err", err)
		} else {
			r.key = key
		}
	}
	r.next.TargetChanged(letter)
}

// DetectionUpdated implements match.Presenter.
func (r *Reference) DetectionUpdated(text string) { r.next.DetectionUpdated(text) }

// ResultChanged implements match.Presenter.
func (r *Reference) ResultChanged(res match.Result) { r.next.ResultChanged(res) }

func (r *Reference) silence() {
	if r.key < 0 {
		return
	}
	if err := r.send(midi.NoteOff(r.channel, uint8(r.key))); err != nil {
		r.logger.Warn("midi note off", "key", r.key, "err", err)
	}
	r.key = -1
}

// Close silences the tone and releases the port.
func (r *Reference) Close() error {
	r.silence()
	if r.closer != nil {
		return r.closer()
	}
	return nil
}
