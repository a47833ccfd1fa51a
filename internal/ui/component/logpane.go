package component

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/dlmm-launcher/internal/logger"
	"github.com/rovshanmuradov/dlmm-launcher/internal/ui/style"
)

// LogPane shows the tail of the console log captured by a LogBuffer.
type LogPane struct {
	buffer    *logger.LogBuffer
	viewport  viewport.Model
	visible   bool
	showDebug bool
	follow    bool
	limit     int
}

// NewLogPane creates a pane over buffer showing at most limit lines.
func NewLogPane(buffer *logger.LogBuffer, limit int) *LogPane {
	if limit <= 0 {
		limit = 200
	}
	return &LogPane{
		buffer:   buffer,
		viewport: viewport.New(50, 6),
		visible:  true,
		follow:   true,
		limit:    limit,
	}
}

// SetSize sets the outer dimensions; border and title are subtracted.
func (lp *LogPane) SetSize(width, height int) {
	w := width - 4
	h := height - 3
	if w < 10 {
		w = 10
	}
	if h < 2 {
		h = 2
	}
	lp.viewport.Width = w
	lp.viewport.Height = h
	lp.Refresh()
}

// ToggleVisible shows or hides the pane.
func (lp *LogPane) ToggleVisible() { lp.visible = !lp.visible }

// IsVisible returns whether the pane is shown
func (lp *LogPane) IsVisible() bool { return lp.visible }

// ToggleDebug includes or hides debug lines.
func (lp *LogPane) ToggleDebug() {
	lp.showDebug = !lp.showDebug
	lp.Refresh()
}

// ScrollUp stops following the tail.
func (lp *LogPane) ScrollUp() {
	lp.follow = false
	lp.viewport.LineUp(1)
}

// ScrollDown resumes following once the bottom is reached.
func (lp *LogPane) ScrollDown() {
	lp.viewport.LineDown(1)
	lp.follow = lp.viewport.AtBottom()
}

// Update forwards viewport messages (mouse wheel).
func (lp *LogPane) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	lp.viewport, cmd = lp.viewport.Update(msg)
	return cmd
}

// Lines returns the buffered lines that pass the debug filter.
func (lp *LogPane) Lines() []string {
	if lp.buffer == nil {
		return nil
	}
	var lines []string
	for _, e := range lp.buffer.GetRecentLogs(lp.limit) {
		if !lp.showDebug && strings.Contains(e.Line, "[DEBUG]") {
			continue
		}
		lines = append(lines, e.Line)
	}
	return lines
}

// Refresh reloads the viewport from the buffer.
func (lp *LogPane) Refresh() {
	lines := lp.Lines()
	if len(lines) == 0 {
		lp.viewport.SetContent(style.MutedStyle.Render("no log lines yet"))
		return
	}
	lp.viewport.SetContent(strings.Join(lines, "\n"))
	if lp.follow {
		lp.viewport.GotoBottom()
	}
}

// View renders the pane
func (lp *LogPane) View() string {
	if !lp.visible {
		return ""
	}
	title := "Logs"
	if lp.showDebug {
		title += " (debug)"
	}
	return style.LogPanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		style.PanelTitleStyle.Render(title),
		lp.viewport.View(),
	))
}
