package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/dlmm-launcher/internal/logger"
	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
	"github.com/rovshanmuradov/dlmm-launcher/internal/ui/component"
	"github.com/rovshanmuradov/dlmm-launcher/internal/ui/style"
)

const logRefreshInterval = 500 * time.Millisecond

// RunInfo is the static header of the run view.
type RunInfo struct {
	Pair     string
	Cluster  string
	Payer    string
	Strategy string
	DryRun   bool
}

// Model is the run view: header, step list, log tail and final summary.
type Model struct {
	info    RunInfo
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	steps   *component.StepList
	logs    *component.LogPane
	now     func() time.Time

	finished bool // pipeline stopped, report publishing may still run
	done     bool
	report   *pipeline.Report
	err      error

	width  int
	height int
}

// NewModel creates the run view. buffer may be nil.
func NewModel(info RunInfo, buffer *logger.LogBuffer) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = style.RunningStyle
	return &Model{
		info:    info,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		steps:   component.NewStepList(),
		logs:    component.NewLogPane(buffer, 200),
		now:     time.Now,
	}
}

// Init starts the spinner and the log refresh ticker
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, logTick())
}

func logTick() tea.Cmd {
	return tea.Tick(logRefreshInterval, func(t time.Time) tea.Msg { return logTickMsg(t) })
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.logs.SetSize(msg.Width, m.logHeight())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.ToggleLogs):
			m.logs.ToggleVisible()
		case key.Matches(msg, m.keys.ToggleDbg):
			m.logs.ToggleDebug()
		case key.Matches(msg, m.keys.Up):
			m.logs.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.logs.ScrollDown()
		}
		return m, nil

	case StepStartedMsg:
		m.steps.Start(msg.Step, msg.At)
		return m, nil

	case StepFinishedMsg:
		m.steps.Finish(msg.Outcome)
		return m, nil

	case RunFinishedMsg:
		m.finished = true
		m.report = msg.Report
		return m, nil

	case RunDoneMsg:
		m.finished, m.done = true, true
		if msg.Report != nil {
			m.report = msg.Report
		}
		m.err = msg.Err
		m.logs.Refresh()
		return m, nil

	case logTickMsg:
		m.logs.Refresh()
		return m, logTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, m.logs.Update(msg)
}

// Done reports whether the run and its publishing returned.
func (m *Model) Done() bool { return m.done }

// Report returns the final report, nil until the pipeline stopped.
func (m *Model) Report() *pipeline.Report { return m.report }

// ExitCode maps the final state to the process exit code. A view closed
// before the run finished counts as aborted.
func (m *Model) ExitCode() int {
	if m.report != nil && m.done {
		return m.report.ExitCode()
	}
	return pipeline.ExitAborted
}

func (m *Model) logHeight() int {
	h := m.height / 3
	if h < 6 {
		h = 6
	}
	return h
}

// View renders the run view
func (m *Model) View() string {
	sections := []string{m.headerView(), style.PanelStyle.Render(m.steps.View(m.spinner.View(), m.now()))}
	if m.finished {
		sections = append(sections, m.summaryView())
	}
	if m.logs.IsVisible() {
		sections = append(sections, m.logs.View())
	}
	sections = append(sections, style.HelpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) headerView() string {
	field := func(label, value string) string {
		return style.LabelStyle.Render(label+" ") + style.ValueStyle.Render(value)
	}
	parts := []string{
		"DLMM launcher",
		field("pair", m.info.Pair),
		field("cluster", m.info.Cluster),
		field("payer", logger.ShortenAddress(m.info.Payer)),
		field("strategy", m.info.Strategy),
	}
	if m.info.DryRun {
		parts = append(parts, style.WarningStyle.Render("DRY RUN"))
	}
	return style.HeaderStyle.Render(strings.Join(parts, "  "))
}

func (m *Model) summaryView() string {
	if m.report == nil {
		if m.err != nil {
			return style.ErrorStyle.Render("run failed to start: " + m.err.Error())
		}
		return ""
	}
	r := m.report
	var status string
	switch r.Status {
	case pipeline.RunSucceeded:
		status = style.SuccessStyle.Render(strings.ToUpper(string(r.Status)))
	case pipeline.RunFailed:
		status = style.WarningStyle.Render(strings.ToUpper(string(r.Status)))
	default:
		status = style.ErrorStyle.Render(strings.ToUpper(string(r.Status)))
	}

	lines := []string{fmt.Sprintf("%s %s", status, style.MutedStyle.Render(r.RunID))}
	if r.BaseMint != "" {
		lines = append(lines, "base mint  "+r.BaseMint)
	}
	if r.QuoteMint != "" {
		lines = append(lines, "quote mint "+r.QuoteMint)
	}
	if r.PoolAddress != "" {
		lines = append(lines, "pool       "+r.PoolAddress)
	}
	if r.ExplorerURL != "" {
		lines = append(lines, style.LinkStyle.Render(r.ExplorerURL))
	}
	if r.Error != "" {
		lines = append(lines, style.ErrorStyle.Render(r.Error))
	}
	if !m.done {
		lines = append(lines, m.spinner.View()+" publishing report")
	}
	return style.PanelStyle.Render(strings.Join(lines, "\n"))
}
