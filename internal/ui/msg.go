package ui

import (
	"time"

	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
)

// Tea message types for UI communication

// StepStartedMsg marks a step as running.
type StepStartedMsg struct {
	Step pipeline.StepName
	At   time.Time
}

// StepFinishedMsg carries the recorded outcome of a step.
type StepFinishedMsg struct {
	Outcome pipeline.StepOutcome
}

// RunFinishedMsg arrives when the pipeline stops, before the report is
// exported.
type RunFinishedMsg struct {
	Report *pipeline.Report
}

// RunDoneMsg arrives once the run and its report publishing have returned.
type RunDoneMsg struct {
	Report *pipeline.Report
	Err    error
}

// logTickMsg refreshes the log pane.
type logTickMsg time.Time
