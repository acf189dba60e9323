package theme

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the title of a command's output.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// LabelStyle renders the left column of key/value output.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Width(12)

// ValueStyle renders the right column of key/value output.
var ValueStyle = lipgloss.NewStyle().
	Foreground(ColorWhite)

// SuccessStyle marks completed writes.
var SuccessStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen)

// ErrorStyle marks failed writes and invalid fields.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// HelpStyle is used for hints.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1)

// OperationStyle returns a color-coded style for a relation write kind.
func OperationStyle(kind string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch kind {
	case "create":
		return base.Foreground(ColorGreen)
	case "update":
		return base.Foreground(ColorYellow)
	case "delete":
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGray)
	}
}

// KeyValue renders one "label value" line.
func KeyValue(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		LabelStyle.Render(label), ValueStyle.Render(value))
}

// Panel renders a titled block of key/value lines in a border.
func Panel(title string, rows [][2]string) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, HeaderStyle.Render(title))
	for _, r := range rows {
		lines = append(lines, KeyValue(r[0], r[1]))
	}
	return BorderStyle.Render(strings.Join(lines, "\n"))
}

// Result renders a one-line outcome, green when err is nil.
func Result(msg string, err error) string {
	if err != nil {
		return ErrorStyle.Render("✗ "+msg) + " " + HelpStyle.Render(err.Error())
	}
	return SuccessStyle.Render("✓ " + msg)
}

// Issue renders an issue reference such as "#42".
func Issue(id int) string {
	return lipgloss.NewStyle().Bold(true).Foreground(ColorBlue).Render(fmt.Sprintf("#%d", id))
}
