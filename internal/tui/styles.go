package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#0969da")
	colorMuted   = lipgloss.Color("#656d76")
	colorError   = lipgloss.Color("#cf222e")
	colorSuccess = lipgloss.Color("#1a7f37")
	colorWarning = lipgloss.Color("#9a6700")
)

var (
	sidebarStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted).Padding(0, 1)
	chatStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)
	inputStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent)
	inputOffStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted)

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle      = lipgloss.NewStyle().Foreground(colorMuted)
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	botStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	noteStyle     = lipgloss.NewStyle().Italic(true).Foreground(colorWarning)
	errorStyle    = lipgloss.NewStyle().Foreground(colorError)
	statusStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	readyStyle    = lipgloss.NewStyle().Foreground(colorSuccess)
)
