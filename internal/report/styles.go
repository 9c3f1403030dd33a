package report

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#7B61FF")
	good    = lipgloss.Color("#73F59F")
	warn    = lipgloss.Color("#F5C16C")
	bad     = lipgloss.Color("#FF6B6B")
	dimmed  = lipgloss.Color("#666666")
	neutral = lipgloss.Color("#AAAAAA")
)

// statusColor maps a record status to its display color.
func statusColor(status string) lipgloss.Color {
	switch status {
	case "renamed", "ready", "completed":
		return good
	case "collision":
		return warn
	case "error":
		return bad
	case "unchanged":
		return dimmed
	default:
		return neutral
	}
}
