// =============================
// File: internal/pipeline/report.go
// =============================
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/binmath"
	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/strategy"
)

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	// RunFailed: the run completed but at least one step failed.
	RunFailed RunStatus = "failed"
	// RunAborted: a fatal step stopped the run.
	RunAborted RunStatus = "aborted"
)

// Exit codes of the command line tools.
const (
	ExitSucceeded = 0
	ExitAborted   = 1
	ExitFailed    = 2
)

// PlanSummary describes one seed plan in the report.
type PlanSummary struct {
	Label     string  `json:"label" yaml:"label"`
	MinPrice  float64 `json:"min_price" yaml:"min_price"`
	MaxPrice  float64 `json:"max_price" yaml:"max_price"`
	Amount    uint64  `json:"amount" yaml:"amount"`
	Shape     string  `json:"shape" yaml:"shape"`
	Curvature float64 `json:"curvature" yaml:"curvature"`
}

// Report is the final summary of a run. Created mints are always present
// once their step succeeded, whatever happened downstream.
type Report struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	Pair       string        `json:"pair" yaml:"pair"`
	Status     RunStatus     `json:"status" yaml:"status"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Steps      []StepOutcome `json:"steps" yaml:"steps"`

	Payer       string `json:"payer" yaml:"payer"`
	BaseMint    string `json:"base_mint,omitempty" yaml:"base_mint,omitempty"`
	QuoteMint   string `json:"quote_mint,omitempty" yaml:"quote_mint,omitempty"`
	PoolAddress string `json:"pool_address,omitempty" yaml:"pool_address,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty" yaml:"explorer_url,omitempty"`

	BinStep       int           `json:"bin_step" yaml:"bin_step"`
	FeeBps        int           `json:"fee_bps" yaml:"fee_bps"`
	StartPrice    float64       `json:"start_price" yaml:"start_price"`
	UpperPrice    float64       `json:"upper_price" yaml:"upper_price"`
	SpotPrice     float64       `json:"spot_price" yaml:"spot_price"`
	SpotNextPrice float64       `json:"spot_next_price" yaml:"spot_next_price"`
	Strategy      string        `json:"strategy" yaml:"strategy"`
	Pad           string        `json:"pad" yaml:"pad"`
	Plans         []PlanSummary `json:"plans" yaml:"plans"`
}

// ExitCode maps the run status to the process exit status.
func (r *Report) ExitCode() int {
	switch r.Status {
	case RunSucceeded:
		return ExitSucceeded
	case RunFailed:
		return ExitFailed
	default:
		return ExitAborted
	}
}

// FailedSteps lists the steps that failed.
func (r *Report) FailedSteps() []StepOutcome {
	var out []StepOutcome
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			out = append(out, s)
		}
	}
	return out
}

func (r *Report) unresolved() (StepOutcome, bool) {
	for _, s := range r.Steps {
		if s.Status == StatusUnresolved {
			return s, true
		}
	}
	return StepOutcome{}, false
}

// Summary renders the report as the text block printed at the end of a run.
func (r *Report) Summary() string {
	var b strings.Builder
	line := strings.Repeat("=", 28)
	fmt.Fprintf(&b, "%s\n Run       : %s (%s)\n", line, r.RunID, r.Status)
	if r.PoolAddress != "" {
		fmt.Fprintf(&b, " DLMM pair : %s\n", r.PoolAddress)
		if r.ExplorerURL != "" {
			fmt.Fprintf(&b, " UI        : %s\n", r.ExplorerURL)
		}
	} else if s, ok := r.unresolved(); ok {
		fmt.Fprintf(&b, " DLMM pair : not discoverable yet after %s attempts, retry with `resolve --base %s --quote %s`\n",
			orDash(s.Effects["attempts"]), r.BaseMint, r.QuoteMint)
	} else {
		b.WriteString(" DLMM pair : -\n")
	}
	fmt.Fprintf(&b, " Base mint : %s\n Quote mint: %s\n", orDash(r.BaseMint), orDash(r.QuoteMint))
	fmt.Fprintf(&b, " Start     : %.10g\n Upper     : %.10g\n", r.StartPrice, r.UpperPrice)
	fmt.Fprintf(&b, " BinStep   : %d bps  Fee: %d bps\n", r.BinStep, r.FeeBps)
	fmt.Fprintf(&b, " Spot      : %.10g  Spot+1: %.10g\n", r.SpotPrice, r.SpotNextPrice)
	fmt.Fprintf(&b, " Strategy  : %s\n SpotPad   : %s\n", r.Strategy, r.Pad)
	for _, s := range r.FailedSteps() {
		fmt.Fprintf(&b, " FAILED    : %s: %s\n", s.Name, s.Reason)
	}
	b.WriteString(line)
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (r *run) report(runErr error) *Report {
	cfg := r.cfg
	rep := &Report{
		RunID:      r.id,
		Pair:       cfg.Pair,
		StartedAt:  r.started,
		FinishedAt: r.deps.Now(),
		Steps:      r.state.Steps(),
		Payer:      r.deps.Payer.PublicKey.String(),
		BinStep:    cfg.BinStep,
		FeeBps:     cfg.FeeBps,
		StartPrice: cfg.StartPrice,
		Strategy:   string(cfg.Strategy.Kind),
		Pad:        "off",
	}
	if r.state.BaseMint != nil {
		rep.BaseMint = r.state.BaseMint.String()
	}
	if r.state.QuoteMint != nil {
		rep.QuoteMint = r.state.QuoteMint.String()
	}
	if r.state.PoolAddress != nil {
		rep.PoolAddress = r.state.PoolAddress.String()
		if cfg.ExplorerURL != "" {
			rep.ExplorerURL = fmt.Sprintf(cfg.ExplorerURL, rep.PoolAddress)
		}
	}

	if spot, err := strategy.SpotBin(cfg.StartPrice, r.grid); err == nil {
		rep.SpotPrice = spot.Price
		if next, err := binmath.NextBin(spot, r.grid); err == nil {
			rep.SpotNextPrice = next.Price
		}
	}
	for _, p := range r.plans {
		rep.Plans = append(rep.Plans, PlanSummary{
			Label: p.Label, MinPrice: p.MinPrice, MaxPrice: p.MaxPrice,
			Amount: p.Amount, Shape: p.Shape.String(), Curvature: p.Shape.Curvature,
		})
		if p.MaxPrice > rep.UpperPrice {
			rep.UpperPrice = p.MaxPrice
		}
	}
	if pad := cfg.Strategy.Pad; pad != nil {
		rep.Pad = fmt.Sprintf("spot->%.0f%%", pad.MaxFactor*100)
	}

	switch {
	case runErr != nil:
		rep.Status = RunAborted
		rep.Error = runErr.Error()
	case len(rep.FailedSteps()) > 0:
		rep.Status = RunFailed
	default:
		rep.Status = RunSucceeded
	}
	return rep
}
