package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9E9E9E"}
	colorError  = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF9A9A"}

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	headingStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	selectedStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	doneStyle     = lipgloss.NewStyle().Foreground(colorMuted).Strikethrough(true)
	presetStyle   = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted)
	presetOnStyle = presetStyle.BorderForeground(colorAccent).Foreground(colorAccent)
	toastStyle    = lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("#333333")).Foreground(lipgloss.Color("#FFFFFF"))
	helpStyle     = lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)
	errorModalStyle = modalStyle.BorderForeground(colorError)
)
