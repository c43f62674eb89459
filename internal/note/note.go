package note

import (
	"fmt"
	"math"
	"strings"
)

// Notation selects the letter names used for the 12 pitch classes.
type Notation int

const (
	// Western uses sharps and B: C, C#, D, ... A#, B.
	Western Notation = iota
	// Alternative uses the German names: Cis, Dis, ... Ais and H for B.
	Alternative
)

func (n Notation) String() string {
	switch n {
	case Western:
		return "western"
	case Alternative:
		return "alternative"
	default:
		return fmt.Sprintf("notation(%d)", int(n))
	}
}

// ParseNotation converts a config value into a Notation.
func ParseNotation(s string) (Notation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "western", "english":
		return Western, nil
	case "alternative", "german":
		return Alternative, nil
	}
	return Western, fmt.Errorf("note: unknown notation %q", s)
}

// Config controls how frequencies are named and which notes are in play.
type Config struct {
	IncludeAccidentals bool
	Notation           Notation
}

// Name is a pitch class letter plus octave (A4 = 440 Hz).
type Name struct {
	Letter string
	Octave int
}

func (n Name) String() string {
	return fmt.Sprintf("%s%d", n.Letter, n.Octave)
}

// Reference pitch
const (
	a4Frequency = 440.0
	a4Midi      = 69
)

// Pitch class tables in chromatic order starting at C.
var (
	westernNames     = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	alternativeNames = [12]string{"C", "Cis", "D", "Dis", "E", "F", "Fis", "G", "Gis", "A", "Ais", "H"}

	// Chromatic indices of the accidentals.
	accidental = [12]bool{1: true, 3: true, 6: true, 8: true, 10: true}
)

func table(n Notation) *[12]string {
	if n == Alternative {
		return &alternativeNames
	}
	return &westernNames
}

// Midi returns the nearest MIDI note number for hz. ok is false for
// non-positive or non-finite input.
func Midi(hz float64) (midi int, ok bool) {
	if !(hz > 0) || math.IsInf(hz, 0) {
		return 0, false
	}
	semitones := 12 * math.Log2(hz/a4Frequency)
	return int(math.Round(a4Midi + semitones)), true
}

// FrequencyToNote maps hz to a note name under cfg. It reports false when
// hz is not a usable frequency, or when the nearest pitch class is an
// accidental and cfg excludes accidentals. Accidentals are never rounded
// to a neighbouring natural.
func FrequencyToNote(hz float64, cfg Config) (Name, bool) {
	midi, ok := Midi(hz)
	if !ok {
		return Name{}, false
	}

	pc := (midi + 1200) % 12
	if pc < 0 {
		pc += 12
	}
	if !cfg.IncludeAccidentals && accidental[pc] {
		return Name{}, false
	}

	// floor division so negative midi numbers land in the right octave
	octave := int(math.Floor(float64(midi)/12)) - 1

	return Name{
		Letter: table(cfg.Notation)[pc],
		Octave: octave,
	}, true
}

// Cents returns the deviation of hz from the nearest equal-tempered pitch,
// in the range [-50, +50]. Zero for unusable input.
func Cents(hz float64) float64 {
	if !(hz > 0) || math.IsInf(hz, 0) {
		return 0
	}
	semitones := 12 * math.Log2(hz/a4Frequency)
	return 100 * (semitones - math.Round(semitones))
}

// Vocabulary returns the pitch class letters currently in play, in
// chromatic order. The letters are exactly those FrequencyToNote produces
// for the same cfg.
func Vocabulary(cfg Config) []string {
	names := table(cfg.Notation)
	out := make([]string, 0, len(names))
	for i, name := range names {
		if !cfg.IncludeAccidentals && accidental[i] {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Contains reports whether letter is in the vocabulary for cfg.
func Contains(cfg Config, letter string) bool {
	for _, l := range Vocabulary(cfg) {
		if l == letter {
			return true
		}
	}
	return false
}

// Letter strips the octave from a rendered note name ("C#4" -> "C#",
// "Fis-1" -> "Fis").
func Letter(rendered string) string {
	return strings.TrimRight(rendered, "0123456789-")
}

// IsAccidental reports whether letter names a sharp in either notation.
func IsAccidental(letter string) bool {
	for i := range westernNames {
		if accidental[i] && (westernNames[i] == letter || alternativeNames[i] == letter) {
			return true
		}
	}
	return false
}

// Natural returns the natural letter an accidental is built on, in the
// same notation ("C#" -> "C", "Fis" -> "F"). Naturals are returned as is.
func Natural(letter string) string {
	for i := range westernNames {
		if !accidental[i] {
			continue
		}
		if westernNames[i] == letter {
			return westernNames[i-1]
		}
		if alternativeNames[i] == letter {
			return alternativeNames[i-1]
		}
	}
	return letter
}

// PitchClass returns the chromatic index (C = 0) of letter in either
// notation, or -1 if the letter is unknown.
func PitchClass(letter string) int {
	for i := range westernNames {
		if westernNames[i] == letter || alternativeNames[i] == letter {
			return i
		}
	}
	return -1
}
