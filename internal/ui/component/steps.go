package component

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
	"github.com/rovshanmuradov/dlmm-launcher/internal/ui/style"
)

// StepRow is the displayed state of one pipeline step.
type StepRow struct {
	Name     pipeline.StepName
	Status   pipeline.StepStatus
	Started  time.Time
	Duration time.Duration
	Reason   string
	Effects  map[string]string
}

// StepList keeps rows in the order steps first appeared.
type StepList struct {
	rows  []StepRow
	index map[pipeline.StepName]int
}

// NewStepList returns an empty list.
func NewStepList() *StepList {
	return &StepList{index: make(map[pipeline.StepName]int)}
}

// Start marks name as running.
func (sl *StepList) Start(name pipeline.StepName, at time.Time) {
	i, ok := sl.index[name]
	if !ok {
		sl.index[name] = len(sl.rows)
		sl.rows = append(sl.rows, StepRow{Name: name})
		i = len(sl.rows) - 1
	}
	sl.rows[i].Status = pipeline.StatusRunning
	sl.rows[i].Started = at
}

// Finish records an outcome. Unknown steps are appended.
func (sl *StepList) Finish(o pipeline.StepOutcome) {
	i, ok := sl.index[o.Name]
	if !ok {
		sl.index[o.Name] = len(sl.rows)
		sl.rows = append(sl.rows, StepRow{Name: o.Name})
		i = len(sl.rows) - 1
	}
	r := &sl.rows[i]
	r.Status = o.Status
	r.Duration = o.Duration
	r.Reason = o.Reason
	r.Effects = o.Effects
}

// Rows returns a copy of the rows.
func (sl *StepList) Rows() []StepRow {
	return append([]StepRow(nil), sl.rows...)
}

// Running returns the running step, if any.
func (sl *StepList) Running() (StepRow, bool) {
	for _, r := range sl.rows {
		if r.Status == pipeline.StatusRunning {
			return r, true
		}
	}
	return StepRow{}, false
}

// View renders the list; spinner is drawn in front of the running step.
func (sl *StepList) View(spinner string, now time.Time) string {
	if len(sl.rows) == 0 {
		return style.MutedStyle.Render("waiting for the first step...")
	}
	var b strings.Builder
	for _, r := range sl.rows {
		switch r.Status {
		case pipeline.StatusRunning:
			fmt.Fprintf(&b, "%s %s %s\n", spinner, style.RunningStyle.Render(string(r.Name)),
				style.MutedStyle.Render(now.Sub(r.Started).Truncate(time.Second).String()))
		case pipeline.StatusSucceeded:
			fmt.Fprintf(&b, "%s %s %s%s\n", style.SuccessStyle.Render("✓"), r.Name,
				style.MutedStyle.Render(r.Duration.Truncate(time.Millisecond).String()), effects(r.Effects))
		case pipeline.StatusUnresolved:
			fmt.Fprintf(&b, "%s %s %s\n", style.WarningStyle.Render("?"), r.Name, style.WarningStyle.Render(r.Reason))
		case pipeline.StatusFailed:
			fmt.Fprintf(&b, "%s %s %s\n", style.ErrorStyle.Render("✗"), r.Name, style.ErrorStyle.Render(r.Reason))
		default:
			fmt.Fprintf(&b, "· %s\n", style.MutedStyle.Render(string(r.Name)))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func effects(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return "  " + style.ValueStyle.Render(strings.Join(parts, " "))
}
