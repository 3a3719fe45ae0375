package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusSucceeded = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusSkipped = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleContext = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	StyleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("red"))

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// statusStyle picks the style for a terminal or live status string.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "running":
		return StyleStatusRunning
	case "succeeded":
		return StyleStatusSucceeded
	case "failed":
		return StyleStatusFailed
	case "skipped":
		return StyleStatusSkipped
	}
	return StyleStatusPending
}
