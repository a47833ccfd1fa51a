// =============================
// File: internal/pipeline/pipeline.go
// =============================

// Package pipeline sequences market provisioning: mints, supply, recipient
// funding, pool creation, liquidity seeding and pool address resolution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/binmath"
	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/strategy"
	"github.com/rovshanmuradov/dlmm-launcher/internal/engine"
	"github.com/rovshanmuradov/dlmm-launcher/internal/funding"
	"github.com/rovshanmuradov/dlmm-launcher/internal/resolver"
	"github.com/rovshanmuradov/dlmm-launcher/internal/wallet"
)

// Tokens are the token primitives the pipeline drives.
type Tokens interface {
	CreateMint(ctx context.Context, payer *wallet.Wallet, authority solana.PublicKey, decimals uint8) (solana.PublicKey, error)
	CreateOrGetAccount(ctx context.Context, payer *wallet.Wallet, owner, mint solana.PublicKey) (solana.PublicKey, error)
	MintTo(ctx context.Context, authority *wallet.Wallet, mint, destination solana.PublicKey, amount uint64) (solana.Signature, error)
	Transfer(ctx context.Context, owner *wallet.Wallet, source, destination solana.PublicKey, amount uint64) (solana.Signature, error)
	TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// FundingGate guards spending steps.
type FundingGate interface {
	EnsureBalance(ctx context.Context, req funding.Requirement) (uint64, error)
}

// PoolResolver finds the created pool.
type PoolResolver interface {
	Resolve(ctx context.Context, creationOutput string, base, quote solana.PublicKey) (resolver.Result, error)
}

// ToolkitPreparer readies the external engine before pool creation.
type ToolkitPreparer interface {
	Prepare(ctx context.Context, payer *wallet.Wallet) error
}

// Deps are the collaborators of a run. Toolkit and Observer are optional.
type Deps struct {
	Payer    *wallet.Wallet
	Tokens   Tokens
	Funding  FundingGate
	Engine   engine.Engine
	Resolver PoolResolver
	Toolkit  ToolkitPreparer
	Observer Observer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs one provisioning.
type Pipeline struct {
	cfg    Config
	deps   Deps
	grid   binmath.Grid
	plans  []strategy.SeedPlan
	logger *zap.Logger
}

// New validates cfg, plans the seed deposits and returns a pipeline. Invalid
// configuration or strategy parameters fail here, before any network call.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if deps.Payer == nil || deps.Tokens == nil || deps.Funding == nil || deps.Engine == nil || deps.Resolver == nil {
		return nil, errors.New("pipeline: payer, tokens, funding, engine and resolver are required")
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	grid, err := binmath.NewGrid(cfg.BinStep)
	if err != nil {
		return nil, err
	}
	plans, err := strategy.Plan(cfg.StartPrice, grid, cfg.SeedAmount, cfg.Strategy)
	if err != nil {
		return nil, err
	}

	return &Pipeline{cfg: cfg, deps: deps, grid: grid, plans: plans, logger: logger.Named("pipeline")}, nil
}

// Plans returns the seed deposits this run will make.
func (p *Pipeline) Plans() []strategy.SeedPlan {
	return append([]strategy.SeedPlan(nil), p.plans...)
}

// plannedSteps lists every step in run order.
func (p *Pipeline) plannedSteps() []StepName {
	steps := []StepName{
		GateStep(GatePreRun),
		StepCreateBaseMint,
		StepCreateQuoteMint,
		StepDistributeInitialSupply,
		StepFundRecipient,
	}
	if p.deps.Toolkit != nil {
		steps = append(steps, StepPrepareToolkit)
	}
	steps = append(steps, StepCreatePool)
	for i, plan := range p.plans {
		steps = append(steps, GateStep(seedGate(i)), SeedStep(plan.Label))
	}
	return append(steps, StepResolvePoolAddress)
}

func seedGate(i int) string {
	if i == 0 {
		return GatePreSeed
	}
	return GatePrePad
}

// Lines of toolkit output logged with a failed toolkit step.
const toolOutputTailLines = 8

// errAborted marks the run as stopped by a fatal step.
var errAborted = errors.New("run aborted")

// Run executes every step in order and always returns a report. The error is
// non-nil only when a fatal step aborted the run or ctx was cancelled.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	run := &run{
		Pipeline: p,
		id:       uuid.New().String(),
		state:    newState(p.plannedSteps()),
		started:  p.deps.Now(),
	}
	run.logger = p.logger.With(zap.String("run_id", run.id), zap.String("pair", p.cfg.Pair))
	run.logger.Info("Provisioning started",
		zap.String("payer", p.deps.Payer.PublicKey.String()),
		zap.Int("plans", len(p.plans)))

	err := run.execute(ctx)
	report := run.report(err)

	if err != nil {
		run.logger.Error("Provisioning aborted", zap.Error(err))
	} else {
		run.logger.Info("Provisioning finished", zap.String("status", string(report.Status)))
	}
	p.deps.Observer.RunFinished(report)
	return report, err
}

type run struct {
	*Pipeline
	id      string
	state   *State
	started time.Time
	pool    *engine.PoolParams
	logger  *zap.Logger
}

func (r *run) execute(ctx context.Context) error {
	if err := r.gate(ctx, GatePreRun, r.cfg.Funding.PreRunMinimum); err != nil {
		return err
	}

	fatal := []struct {
		name StepName
		fn   func(context.Context) (map[string]string, error)
	}{
		{StepCreateBaseMint, r.createBaseMint},
		{StepCreateQuoteMint, r.createQuoteMint},
		{StepDistributeInitialSupply, r.distributeInitialSupply},
	}
	for _, s := range fatal {
		if err := r.step(ctx, s.name, true, s.fn); err != nil {
			return err
		}
	}

	// Non-fatal from here on: failures are recorded and the run continues.
	_ = r.step(ctx, StepFundRecipient, false, r.fundRecipient)
	if r.deps.Toolkit != nil {
		_ = r.step(ctx, StepPrepareToolkit, false, r.prepareToolkit)
	}
	_ = r.step(ctx, StepCreatePool, false, r.createPool)

	for i, plan := range r.plans {
		minimum := r.cfg.Funding.PreSeedMinimum
		if i > 0 {
			minimum = r.cfg.Funding.PrePadMinimum
		}
		if err := r.gate(ctx, seedGate(i), minimum); err != nil {
			return err
		}
		_ = r.step(ctx, SeedStep(plan.Label), false, r.seed(plan))
	}

	_ = r.step(ctx, StepResolvePoolAddress, false, r.resolvePoolAddress)
	return ctx.Err()
}

// step runs fn as name, records the outcome and logs one line for it. A
// failure of a fatal step, or any failure under a cancelled ctx, is returned.
func (r *run) step(ctx context.Context, name StepName, fatal bool, fn func(context.Context) (map[string]string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.state.set(StepOutcome{Name: name, Status: StatusRunning, Fatal: fatal})
	r.deps.Observer.StepStarted(name)

	start := time.Now()
	effects, err := fn(ctx)
	outcome := StepOutcome{Name: name, Fatal: fatal, Effects: effects, Duration: time.Since(start)}

	fields := []zap.Field{zap.String("step", string(name)), zap.Duration("duration", outcome.Duration)}
	for k, v := range effects {
		fields = append(fields, zap.String(k, v))
	}

	switch {
	case err == nil:
		outcome.Status = StatusSucceeded
		fields = append(fields, zap.String("status", string(outcome.Status)))
		r.logger.Info("Step succeeded", fields...)
	case errors.Is(err, errNoPool):
		outcome.Status = StatusUnresolved
		outcome.Reason = err.Error()
		fields = append(fields, zap.String("status", string(outcome.Status)))
		r.logger.Warn("Pool not discoverable yet, it may still be listed later", fields...)
		err = nil
	default:
		outcome.Status = StatusFailed
		outcome.Reason = err.Error()
		fields = append(fields, zap.String("status", string(outcome.Status)), zap.Error(err))
		var toolErr *engine.ToolError
		if errors.As(err, &toolErr) && toolErr.Output != "" {
			fields = append(fields, zap.String("output_tail", toolErr.Tail(toolOutputTailLines)))
		}
		if fatal {
			r.logger.Error("Fatal step failed", fields...)
		} else {
			r.logger.Warn("Step failed, continuing", fields...)
		}
	}
	r.state.set(outcome)
	r.deps.Observer.StepFinished(outcome)

	switch {
	case err == nil:
		return nil
	case fatal:
		return &StepError{Step: name, Err: fmt.Errorf("%w: %w", errAborted, err)}
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return nil
	}
}

// gate runs a funding gate as a fatal step.
func (r *run) gate(ctx context.Context, name string, minimum uint64) error {
	return r.step(ctx, GateStep(name), true, func(ctx context.Context) (map[string]string, error) {
		req := funding.Requirement{
			Account:      r.deps.Payer.PublicKey,
			Minimum:      minimum,
			MaxAttempts:  r.cfg.Funding.MaxAttempts,
			PollInterval: r.cfg.Funding.PollInterval,
			TopUp:        r.cfg.Funding.TopUp,
		}
		balance, err := r.deps.Funding.EnsureBalance(ctx, req)
		effects := map[string]string{
			"balance_sol": funding.LamportsToSOL(balance),
			"minimum_sol": funding.LamportsToSOL(minimum),
		}
		return effects, err
	})
}
