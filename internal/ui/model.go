package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0xlemi/earnote/internal/match"
	"github.com/0xlemi/earnote/internal/note"
	"github.com/0xlemi/earnote/internal/pipeline"
)

// EstimateMsg carries one analysed frame from the audio side
type EstimateMsg pipeline.Estimate

// InputErrorMsg reports that audio input could not be started. It is shown
// until the program exits.
type InputErrorMsg struct{ Err error }

// InputClosedMsg reports that the audio source ended
type InputClosedMsg struct{}

// cooldownMsg fires a callback registered with the scheduler
type cooldownMsg struct{ id uint64 }

// Settings is the notation configuration edited from the keyboard. The
// engine reads it on every detection.
type Settings struct {
	cfg note.Config
}

// NotationConfig implements match.ConfigSource
func (s *Settings) NotationConfig() note.Config { return s.cfg }

// display holds what the engine last told us to show
type display struct {
	target    string
	detection string
	result    match.Result
}

func (d *display) TargetChanged(letter string) { d.target = letter }
func (d *display) DetectionUpdated(text string) { d.detection = text }
func (d *display) ResultChanged(r match.Result) { d.result = r }

// scheduler runs engine timers through tea.Tick so callbacks execute inside
// Update, on the same goroutine as every other engine call
type scheduler struct {
	next   uint64
	live   map[uint64]func()
	queued []tea.Cmd
}

func (s *scheduler) AfterFunc(d time.Duration, f func()) func() {
	s.next++
	id := s.next
	s.live[id] = f
	s.queued = append(s.queued, tea.Tick(d, func(time.Time) tea.Msg {
		return cooldownMsg{id: id}
	}))
	return func() { delete(s.live, id) }
}

func (s *scheduler) fire(id uint64) {
	if f, ok := s.live[id]; ok {
		delete(s.live, id)
		f()
	}
}

// drain returns the ticks registered since the last call
func (s *scheduler) drain() tea.Cmd {
	if len(s.queued) == 0 {
		return nil
	}
	cmds := s.queued
	s.queued = nil
	return tea.Batch(cmds...)
}

// Model represents the UI state
type Model struct {
	engine   *match.Engine
	settings *Settings
	display  *display
	sched    *scheduler

	estimate  pipeline.Estimate
	inputErr  error
	inputDone bool
	width     int
	height    int
}

// NewModel creates a model with the given starting notation settings.
// Build the engine from Settings, Presenter and Scheduler, then attach it
// with WithEngine before running the program.
func NewModel(cfg note.Config) Model {
	return Model{
		settings: &Settings{cfg: cfg},
		display:  &display{},
		sched:    &scheduler{live: make(map[uint64]func())},
	}
}

// Settings returns the config source for the engine
func (m Model) Settings() *Settings { return m.settings }

// Presenter returns the sink for engine display events
func (m Model) Presenter() match.Presenter { return m.display }

// Scheduler returns the timer source for the engine
func (m Model) Scheduler() match.Scheduler { return m.sched }

// WithEngine attaches the engine driven by this model
func (m Model) WithEngine(e *match.Engine) Model {
	m.engine = e
	return m
}

// Init initializes the UI model
func (m Model) Init() tea.Cmd {
	return m.sched.drain()
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.engine != nil {
				m.engine.Close()
			}
			return m, tea.Quit
		case "a":
			m.settings.cfg.IncludeAccidentals = !m.settings.cfg.IncludeAccidentals
			m.configChanged()
		case "n":
			if m.settings.cfg.Notation == note.Western {
				m.settings.cfg.Notation = note.Alternative
			} else {
				m.settings.cfg.Notation = note.Western
			}
			m.configChanged()
		case " ":
			if m.engine != nil {
				m.engine.SelectNewTarget()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case EstimateMsg:
		m.estimate = pipeline.Estimate(msg)
		if m.engine != nil {
			m.engine.Observe(msg.Detection)
		}

	case cooldownMsg:
		m.sched.fire(msg.id)

	case InputErrorMsg:
		m.inputErr = msg.Err

	case InputClosedMsg:
		m.inputDone = true
	}

	return m, m.sched.drain()
}

func (m *Model) configChanged() {
	if m.engine != nil {
		m.engine.ConfigChanged()
	}
}

// View renders the UI
func (m Model) View() string {
	s := titleStyle.Render("EarNote - Sing the note")
	s += "\n"

	if m.display.target != "" {
		s += renderNote(m.display.target)
	}
	s += "  " + renderResult(m.display.result)
	s += "\n\n"

	if m.inputErr != nil {
		s += errorStyle.Render(fmt.Sprintf("Microphone access denied or error: %v", m.inputErr))
	} else {
		s += infoStyle.Render(m.display.detection)
		s += "\n"
		s += dimStyle.Render(m.levelLine())
		if m.inputDone {
			s += "\n" + dimStyle.Render("Input finished")
		}
	}

	s += "\n\n"
	s += infoStyle.Render(m.settingsLine())

	return s
}

func (m Model) levelLine() string {
	e := m.estimate
	raw := "-"
	if !e.Absent() {
		raw = fmt.Sprintf("%.2f Hz, clarity %.2f", e.Frequency, e.Confidence)
		if n, ok := note.FrequencyToNote(e.Frequency, note.Config{IncludeAccidentals: true, Notation: m.settings.cfg.Notation}); ok {
			raw += fmt.Sprintf(" | %s %+.0f cents", n, note.Cents(e.Frequency))
		}
	}
	return fmt.Sprintf("Level: %.1f dB | Raw: %s", e.Level.DB, raw)
}

func (m Model) settingsLine() string {
	acc := "off"
	if m.settings.cfg.IncludeAccidentals {
		acc = "on"
	}
	parts := []string{
		fmt.Sprintf("[a] accidentals: %s", acc),
		fmt.Sprintf("[n] notation: %s", m.settings.cfg.Notation),
		"[space] skip",
		"[q] quit",
	}
	return strings.Join(parts, "  ")
}
