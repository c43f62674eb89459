package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/0xlemi/earnote/internal/match"
	"github.com/0xlemi/earnote/internal/note"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F5F"))

	correctStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D75F"))

	incorrectStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F5F"))

	// Note colors, by chromatic index of the natural
	noteColors = map[int]string{
		0:  "#E8D6B0", // C: Beige
		2:  "#A020F0", // D: Purple
		4:  "#FFFF00", // E: Yellow
		5:  "#FFA500", // F: Orange
		7:  "#00FF00", // G: Green
		9:  "#FF0000", // A: Red
		11: "#0000FF", // B/H: Blue
	}
)

func blockStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(color)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333"))
}

// renderNote draws the target letter. Naturals get their own colour;
// accidentals are split between the colour of the natural below and the
// one above.
func renderNote(letter string) string {
	pc := note.PitchClass(letter)
	if pc < 0 {
		return infoStyle.Render(letter)
	}

	if !note.IsAccidental(letter) {
		return blockStyle(noteColors[pc]).Padding(2, 4).Render(letter)
	}

	base := note.Natural(letter)
	left := blockStyle(noteColors[pc-1]).
		BorderLeft(true).
		BorderTop(true).
		BorderBottom(true).
		BorderRight(false).
		PaddingLeft(2).
		PaddingRight(1).
		PaddingTop(2).
		PaddingBottom(2)
	right := blockStyle(noteColors[(pc+1)%12]).
		BorderLeft(false).
		BorderTop(true).
		BorderBottom(true).
		BorderRight(true).
		PaddingLeft(1).
		PaddingRight(2).
		PaddingTop(2).
		PaddingBottom(2)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		left.Render(base),
		right.Render(letter[len(base):]),
	)
}

func renderResult(r match.Result) string {
	switch r {
	case match.ResultCorrect:
		return correctStyle.Render("✓")
	case match.ResultIncorrect:
		return incorrectStyle.Render("✗")
	}
	return " "
}
