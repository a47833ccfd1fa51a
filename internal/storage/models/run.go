// internal/storage/models/run.go
package models

import (
	"encoding/json"
	"time"

	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
)

// Run is one archived provisioning run.
type Run struct {
	RunID       string
	Pair        string
	Status      string
	Error       string
	Payer       string
	BaseMint    string
	QuoteMint   string
	PoolAddress string
	BinStep     int
	FeeBps      int
	StartPrice  float64
	UpperPrice  float64
	Strategy    string
	StartedAt   time.Time
	FinishedAt  time.Time
	// Report is the full report as JSON.
	Report []byte
	Steps  []Step
}

// Step is one step outcome of a run, in run order.
type Step struct {
	Position   int
	Name       string
	Status     string
	Fatal      bool
	Reason     string
	Effects    []byte
	DurationMs int64
}

// FromReport flattens a report into rows.
func FromReport(r *pipeline.Report) (*Run, error) {
	full, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	run := &Run{
		RunID:       r.RunID,
		Pair:        r.Pair,
		Status:      string(r.Status),
		Error:       r.Error,
		Payer:       r.Payer,
		BaseMint:    r.BaseMint,
		QuoteMint:   r.QuoteMint,
		PoolAddress: r.PoolAddress,
		BinStep:     r.BinStep,
		FeeBps:      r.FeeBps,
		StartPrice:  r.StartPrice,
		UpperPrice:  r.UpperPrice,
		Strategy:    r.Strategy,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Report:      full,
	}
	for i, s := range r.Steps {
		effects, err := json.Marshal(s.Effects)
		if err != nil {
			return nil, err
		}
		run.Steps = append(run.Steps, Step{
			Position:   i,
			Name:       string(s.Name),
			Status:     string(s.Status),
			Fatal:      s.Fatal,
			Reason:     s.Reason,
			Effects:    effects,
			DurationMs: s.Duration.Milliseconds(),
		})
	}
	return run, nil
}
