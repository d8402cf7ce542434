package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7aa2f7")
	colorAgent   = lipgloss.Color("#9ece6a")
	colorMuted   = lipgloss.Color("#565f89")
	colorError   = lipgloss.Color("#f7768e")

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	youLabelStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	agentLabelStyle = lipgloss.NewStyle().
			Foreground(colorAgent).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)
