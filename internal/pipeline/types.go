// =============================
// File: internal/pipeline/types.go
// =============================
package pipeline

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// StepName identifies one pipeline step. Seed and gate steps carry the plan
// label or gate name, e.g. "SeedLiquidity[primary]".
type StepName string

const (
	StepFundingGate             StepName = "FundingGate"
	StepCreateBaseMint          StepName = "CreateBaseMint"
	StepCreateQuoteMint         StepName = "CreateQuoteMint"
	StepDistributeInitialSupply StepName = "DistributeInitialSupply"
	StepFundRecipient           StepName = "FundRecipient"
	StepPrepareToolkit          StepName = "PrepareToolkit"
	StepCreatePool              StepName = "CreatePool"
	StepSeedLiquidity           StepName = "SeedLiquidity"
	StepResolvePoolAddress      StepName = "ResolvePoolAddress"
)

// SeedStep names the seed step of one plan.
func SeedStep(label string) StepName {
	return StepName(fmt.Sprintf("%s[%s]", StepSeedLiquidity, label))
}

// GateStep names one funding gate.
func GateStep(gate string) StepName {
	return StepName(fmt.Sprintf("%s[%s]", StepFundingGate, gate))
}

// StepStatus is the state of one step.
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusRunning   StepStatus = "running"
	StatusSucceeded StepStatus = "succeeded"
	StatusFailed    StepStatus = "failed"

	// StatusUnresolved: the pool lookup ran out of attempts. The pool may
	// exist and not be listed yet, so it does not fail the run.
	StatusUnresolved StepStatus = "unresolved"
)

// StepOutcome records what one step did.
type StepOutcome struct {
	Name     StepName          `json:"name" yaml:"name"`
	Status   StepStatus        `json:"status" yaml:"status"`
	Fatal    bool              `json:"fatal" yaml:"fatal"`
	Reason   string            `json:"reason,omitempty" yaml:"reason,omitempty"`
	Effects  map[string]string `json:"effects,omitempty" yaml:"effects,omitempty"`
	Duration time.Duration     `json:"duration" yaml:"duration"`
}

// StepError is a failed step.
type StepError struct {
	Step StepName
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// State is the mutable record of one run. Each step writes it once.
type State struct {
	BaseMint      *solana.PublicKey
	QuoteMint     *solana.PublicKey
	PayerBaseATA  solana.PublicKey
	PayerQuoteATA solana.PublicKey
	CreateOutput  string
	PoolAddress   *solana.PublicKey

	steps []StepOutcome
	index map[StepName]int
}

func newState(planned []StepName) *State {
	s := &State{index: make(map[StepName]int, len(planned))}
	for _, name := range planned {
		s.index[name] = len(s.steps)
		s.steps = append(s.steps, StepOutcome{Name: name, Status: StatusPending})
	}
	return s
}

// Step returns the outcome of name.
func (s *State) Step(name StepName) (StepOutcome, bool) {
	i, ok := s.index[name]
	if !ok {
		return StepOutcome{}, false
	}
	return s.steps[i], true
}

// Steps returns every outcome in run order.
func (s *State) Steps() []StepOutcome {
	out := make([]StepOutcome, len(s.steps))
	copy(out, s.steps)
	return out
}

func (s *State) set(o StepOutcome) {
	if i, ok := s.index[o.Name]; ok {
		s.steps[i] = o
		return
	}
	s.index[o.Name] = len(s.steps)
	s.steps = append(s.steps, o)
}

// Observer receives step transitions. Calls come from the pipeline goroutine.
type Observer interface {
	StepStarted(name StepName)
	StepFinished(outcome StepOutcome)
	RunFinished(report *Report)
}

type nopObserver struct{}

func (nopObserver) StepStarted(StepName)     {}
func (nopObserver) StepFinished(StepOutcome) {}
func (nopObserver) RunFinished(*Report)      {}
