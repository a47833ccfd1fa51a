package style

import (
	"github.com/charmbracelet/lipgloss"
)

var palette = DefaultPalette()

// Header styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(palette.Primary).
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Primary)

	LabelStyle = lipgloss.NewStyle().
			Foreground(palette.TextMuted)

	ValueStyle = lipgloss.NewStyle().
			Foreground(palette.TextSecondary)
)

// Panels
var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted).
			Padding(0, 1)

	LogPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Info).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Foreground(palette.Info).
			Bold(true)
)

// Status styles
var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(palette.Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(palette.Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(palette.Warning).
			Bold(true)

	RunningStyle = lipgloss.NewStyle().
			Foreground(palette.Primary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(palette.TextMuted)

	LinkStyle = lipgloss.NewStyle().
			Foreground(palette.Info).
			Underline(true)
)

// Help bar style
var (
	HelpStyle = lipgloss.NewStyle().
		Foreground(palette.TextMuted).
		Margin(1, 0, 0, 0).
		Italic(true)
)
