package style

import "github.com/charmbracelet/lipgloss"

// Palette is the set of colors every style is derived from.
type Palette struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Info    lipgloss.Color

	Text          lipgloss.Color
	TextMuted     lipgloss.Color
	TextSecondary lipgloss.Color
}

// DefaultPalette is tuned for dark terminals.
func DefaultPalette() Palette {
	return Palette{
		Primary: lipgloss.Color("#00E5FF"),
		Success: lipgloss.Color("#2AFFAA"),
		Error:   lipgloss.Color("#FF5555"),
		Warning: lipgloss.Color("#FFB500"),
		Info:    lipgloss.Color("#3B82F6"),

		Text:          lipgloss.Color("#ECEFF4"),
		TextMuted:     lipgloss.Color("#6C7280"),
		TextSecondary: lipgloss.Color("#B4BCC8"),
	}
}
