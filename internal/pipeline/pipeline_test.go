package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/strategy"
	"github.com/rovshanmuradov/dlmm-launcher/internal/engine"
	"github.com/rovshanmuradov/dlmm-launcher/internal/funding"
	"github.com/rovshanmuradov/dlmm-launcher/internal/resolver"
	"github.com/rovshanmuradov/dlmm-launcher/internal/wallet"
)

const sol = 1_000_000_000

type fakeTokens struct {
	mints        []solana.PublicKey
	failMint     int // 1-based CreateMint call that fails
	mintCalls    int
	mintTo       map[solana.PublicKey]uint64
	transfers    []uint64
	quoteBalance uint64
	failTransfer bool
}

func (f *fakeTokens) CreateMint(context.Context, *wallet.Wallet, solana.PublicKey, uint8) (solana.PublicKey, error) {
	f.mintCalls++
	if f.mintCalls == f.failMint {
		return solana.PublicKey{}, errors.New("blockhash not found")
	}
	m := solana.NewWallet().PublicKey()
	f.mints = append(f.mints, m)
	return m, nil
}

func (f *fakeTokens) CreateOrGetAccount(_ context.Context, _ *wallet.Wallet, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return ata, err
}

func (f *fakeTokens) MintTo(_ context.Context, _ *wallet.Wallet, mint, _ solana.PublicKey, amount uint64) (solana.Signature, error) {
	if f.mintTo == nil {
		f.mintTo = map[solana.PublicKey]uint64{}
	}
	f.mintTo[mint] += amount
	return solana.Signature{}, nil
}

func (f *fakeTokens) Transfer(_ context.Context, _ *wallet.Wallet, _, _ solana.PublicKey, amount uint64) (solana.Signature, error) {
	if f.failTransfer {
		return solana.Signature{}, errors.New("transfer failed")
	}
	f.transfers = append(f.transfers, amount)
	return solana.Signature{}, nil
}

func (f *fakeTokens) TokenBalance(context.Context, solana.PublicKey) (uint64, error) {
	return f.quoteBalance, nil
}

type fakeFunding struct {
	minimums []uint64
	failAt   int
}

func (f *fakeFunding) EnsureBalance(_ context.Context, req funding.Requirement) (uint64, error) {
	f.minimums = append(f.minimums, req.Minimum)
	if len(f.minimums) == f.failAt {
		return req.Minimum / 2, funding.ErrFundingTimeout
	}
	return req.Minimum, nil
}

type fakeEngine struct {
	createErr  error
	createOut  string
	seedErr    map[string]error
	seeded     []string
	createPool *engine.PoolParams
}

func (f *fakeEngine) CreatePool(_ context.Context, p engine.PoolParams) (engine.Result, error) {
	f.createPool = &p
	if f.createErr != nil {
		return engine.Result{ExitCode: 1, Output: "Error: simulation failed"}, f.createErr
	}
	return engine.Result{Output: f.createOut}, nil
}

func (f *fakeEngine) SeedLiquidity(_ context.Context, _ engine.PoolParams, plan strategy.SeedPlan) (engine.Result, error) {
	f.seeded = append(f.seeded, plan.Label)
	if err := f.seedErr[plan.Label]; err != nil {
		return engine.Result{ExitCode: 1}, err
	}
	return engine.Result{}, nil
}

type fakeResolver struct {
	result resolver.Result
	output string
}

func (f *fakeResolver) Resolve(_ context.Context, output string, _, _ solana.PublicKey) (resolver.Result, error) {
	f.output = output
	return f.result, nil
}

type recordingObserver struct {
	started  []StepName
	finished []StepOutcome
	report   *Report
}

func (o *recordingObserver) StepStarted(name StepName)  { o.started = append(o.started, name) }
func (o *recordingObserver) StepFinished(s StepOutcome) { o.finished = append(o.finished, s) }
func (o *recordingObserver) RunFinished(r *Report)      { o.report = r }

func testConfig() Config {
	return Config{
		Pair:            "nomu_usdc",
		Recipient:       solana.NewWallet().PublicKey(),
		Base:            TokenSpec{Symbol: "NOMU", Decimals: 6, Supply: 1_000_000_000_000_000},
		Quote:           QuoteSpec{TokenSpec: TokenSpec{Symbol: "USDC", Decimals: 6, Supply: 1_000_000_000_000}, Mode: QuoteCreate},
		RecipientBase:   1_000_000_000,
		RecipientQuote:  1_000_000,
		BinStep:         25,
		FeeBps:          25,
		StartPrice:      0.0015,
		ActivationType:  engine.ActivationTimestamp,
		ActivationDelay: 30 * time.Second,
		Strategy: strategy.CurvedRange(10, 1.2,
			&strategy.Pad{MaxFactor: 1.05, Amount: 2_000_000_000_000}),
		SeedAmount: 100_000_000_000_000,
		Funding: FundingConfig{
			PreRunMinimum:  2 * sol,
			PreSeedMinimum: 2 * sol,
			PrePadMinimum:  3 * sol / 2,
			MaxAttempts:    3,
			PollInterval:   time.Millisecond,
		},
		ExplorerURL: "https://devnet.meteora.ag/dlmm/%s",
	}
}

type fixture struct {
	tokens   *fakeTokens
	funding  *fakeFunding
	engine   *fakeEngine
	resolver *fakeResolver
	observer *recordingObserver
	logger   *zap.Logger
}

func newFixture() *fixture {
	return &fixture{
		tokens:   &fakeTokens{quoteBalance: 1_000_000_000_000},
		funding:  &fakeFunding{},
		engine:   &fakeEngine{},
		resolver: &fakeResolver{},
		observer: &recordingObserver{},
	}
}

func (f *fixture) pipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	payer, err := wallet.Generate()
	require.NoError(t, err)
	logger := f.logger
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	p, err := New(cfg, Deps{
		Payer:    payer,
		Tokens:   f.tokens,
		Funding:  f.funding,
		Engine:   f.engine,
		Resolver: f.resolver,
		Observer: f.observer,
		Now:      func() time.Time { return time.Unix(1_700_000_000, 0) },
	}, logger)
	require.NoError(t, err)
	return p
}

func stepNames(steps []StepOutcome) []StepName {
	names := make([]StepName, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

func TestRunSucceeds(t *testing.T) {
	f := newFixture()
	pool := solana.NewWallet().PublicKey()
	f.engine.createOut = "Pool address: " + pool.String()
	f.resolver.result = resolver.Result{Address: pool, Found: true, Source: resolver.SourceOutput}

	report, err := f.pipeline(t, testConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunSucceeded, report.Status)
	assert.Equal(t, ExitSucceeded, report.ExitCode())
	assert.Equal(t, []StepName{
		GateStep(GatePreRun),
		StepCreateBaseMint,
		StepCreateQuoteMint,
		StepDistributeInitialSupply,
		StepFundRecipient,
		StepCreatePool,
		GateStep(GatePreSeed),
		SeedStep(strategy.LabelPrimary),
		GateStep(GatePrePad),
		SeedStep(strategy.LabelPad),
		StepResolvePoolAddress,
	}, stepNames(report.Steps))
	for _, s := range report.Steps {
		assert.Equal(t, StatusSucceeded, s.Status, s.Name)
	}

	require.Len(t, f.tokens.mints, 2)
	assert.Equal(t, f.tokens.mints[0].String(), report.BaseMint)
	assert.Equal(t, f.tokens.mints[1].String(), report.QuoteMint)
	assert.Equal(t, pool.String(), report.PoolAddress)
	assert.Equal(t, "https://devnet.meteora.ag/dlmm/"+pool.String(), report.ExplorerURL)
	assert.Equal(t, f.engine.createOut, f.resolver.output)

	assert.Equal(t, []uint64{2 * sol, 2 * sol, 3 * sol / 2}, f.funding.minimums)
	assert.Equal(t, []string{strategy.LabelPrimary, strategy.LabelPad}, f.engine.seeded)
	assert.Equal(t, []uint64{1_000_000_000, 1_000_000}, f.tokens.transfers)
	assert.Equal(t, uint64(1_000_000_000_000_000), f.tokens.mintTo[f.tokens.mints[0]])

	require.NotNil(t, f.engine.createPool)
	require.NotNil(t, f.engine.createPool.Activation.Point)
	assert.Equal(t, int64(1_700_000_030), *f.engine.createPool.Activation.Point)

	assert.Greater(t, report.SpotNextPrice, report.SpotPrice)
	assert.InEpsilon(t, 0.015, report.UpperPrice, 1e-9)
	assert.Equal(t, "spot->105%", report.Pad)
	assert.Len(t, f.observer.started, len(report.Steps))
	assert.Same(t, report, f.observer.report)
}

func TestCreatePoolFailureStillSeedsAndReportsMints(t *testing.T) {
	f := newFixture()
	f.engine.createErr = &engine.ToolError{Command: "bun run src/create_pool.ts", ExitCode: 1, Err: errors.New("exit status 1")}
	f.engine.seedErr = map[string]error{
		strategy.LabelPrimary: errors.New("pool account not found"),
		strategy.LabelPad:     errors.New("pool account not found"),
	}

	report, err := f.pipeline(t, testConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{strategy.LabelPrimary, strategy.LabelPad}, f.engine.seeded)
	assert.Equal(t, RunFailed, report.Status)
	assert.Equal(t, ExitFailed, report.ExitCode())
	assert.NotEmpty(t, report.BaseMint)
	assert.NotEmpty(t, report.QuoteMint)

	create, ok := stepByName(report, StepCreatePool)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, create.Status)
	assert.Equal(t, "1", create.Effects["exit_code"])

	failed := stepNames(report.FailedSteps())
	assert.Contains(t, failed, StepCreatePool)
	assert.Contains(t, failed, SeedStep(strategy.LabelPrimary))
	assert.Contains(t, failed, SeedStep(strategy.LabelPad))
	assert.NotContains(t, failed, StepResolvePoolAddress)
	assert.Contains(t, report.Summary(), "FAILED    : CreatePool")
}

func TestToolFailureLogsOutputTail(t *testing.T) {
	f := newFixture()
	core, logs := observer.New(zapcore.WarnLevel)
	f.logger = zap.New(core)

	var output string
	for i := 1; i <= 20; i++ {
		output += fmt.Sprintf("line %d\n", i)
	}
	f.engine.createErr = &engine.ToolError{Command: "bun run src/create_pool.ts", ExitCode: 1, Output: output, Err: errors.New("exit status 1")}

	_, err := f.pipeline(t, testConfig()).Run(context.Background())
	require.NoError(t, err)

	entries := logs.FilterField(zap.String("step", string(StepCreatePool))).All()
	require.Len(t, entries, 1)
	tail, ok := entries[0].ContextMap()["output_tail"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(tail, "line 13\n"), tail)
	assert.True(t, strings.HasSuffix(tail, "line 20"), tail)
}

func TestSeedFailureIsIsolatedPerPlan(t *testing.T) {
	f := newFixture()
	f.engine.seedErr = map[string]error{strategy.LabelPrimary: errors.New("0x1781")}
	f.resolver.result = resolver.Result{Address: solana.NewWallet().PublicKey(), Found: true}

	report, err := f.pipeline(t, testConfig()).Run(context.Background())
	require.NoError(t, err)

	pad, ok := stepByName(report, SeedStep(strategy.LabelPad))
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, pad.Status)
	assert.Equal(t, []StepName{SeedStep(strategy.LabelPrimary)}, stepNames(report.FailedSteps()))
}

func TestFatalMintFailureAborts(t *testing.T) {
	f := newFixture()
	f.tokens.failMint = 2 // quote mint

	report, err := f.pipeline(t, testConfig()).Run(context.Background())
	require.Error(t, err)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepCreateQuoteMint, stepErr.Step)
	assert.Equal(t, RunAborted, report.Status)
	assert.Equal(t, ExitAborted, report.ExitCode())
	assert.NotEmpty(t, report.BaseMint, "created base mint stays visible")
	assert.Empty(t, report.QuoteMint)

	dist, ok := stepByName(report, StepDistributeInitialSupply)
	require.True(t, ok)
	assert.Equal(t, StatusPending, dist.Status)
	assert.Nil(t, f.engine.createPool)
}

func TestFundingTimeoutBeforeSeedAborts(t *testing.T) {
	f := newFixture()
	f.funding.failAt = 2 // pre-seed gate

	report, err := f.pipeline(t, testConfig()).Run(context.Background())
	assert.ErrorIs(t, err, funding.ErrFundingTimeout)
	assert.Equal(t, RunAborted, report.Status)
	assert.Empty(t, f.engine.seeded)
	assert.NotNil(t, f.engine.createPool)
}

func TestFundRecipientFailureIsNonFatal(t *testing.T) {
	f := newFixture()
	f.tokens.failTransfer = true
	f.resolver.result = resolver.Result{Address: solana.NewWallet().PublicKey(), Found: true}

	report, err := f.pipeline(t, testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []StepName{StepFundRecipient}, stepNames(report.FailedSteps()))
	assert.Len(t, f.engine.seeded, 2)
}

func TestQuoteTransferSkippedWhenBalanceLow(t *testing.T) {
	f := newFixture()
	f.tokens.quoteBalance = 10
	f.resolver.result = resolver.Result{Address: solana.NewWallet().PublicKey(), Found: true}

	report, err := f.pipeline(t, testConfig()).Run(context.Background())
	require.NoError(t, err)

	fund, ok := stepByName(report, StepFundRecipient)
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, fund.Status)
	assert.Equal(t, "skipped", fund.Effects["quote_sent"])
	assert.Equal(t, []uint64{1_000_000_000}, f.tokens.transfers)
}

func TestExistingQuoteMintIsNotCreated(t *testing.T) {
	f := newFixture()
	cfg := testConfig()
	usdc := solana.MustPublicKeyFromBase58("Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr")
	cfg.Quote = QuoteSpec{TokenSpec: TokenSpec{Symbol: "USDC", Decimals: 6}, Mode: QuoteExisting, Mint: usdc}
	cfg.Strategy = strategy.SingleBin()

	report, err := f.pipeline(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, f.tokens.mints, 1)
	assert.Equal(t, usdc.String(), report.QuoteMint)
	assert.NotContains(t, f.tokens.mintTo, usdc)
	assert.Equal(t, []string{strategy.LabelSingleBin}, f.engine.seeded)
	// Pool not discoverable: reported, not a failure.
	assert.Equal(t, RunSucceeded, report.Status)
	assert.Empty(t, report.FailedSteps())
}

func TestUnresolvedPoolDoesNotFailRun(t *testing.T) {
	f := newFixture()
	f.resolver.result = resolver.Result{Found: false, Attempts: 5}

	report, err := f.pipeline(t, testConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunSucceeded, report.Status)
	assert.Equal(t, ExitSucceeded, report.ExitCode())
	assert.Empty(t, report.PoolAddress)

	resolve, ok := stepByName(report, StepResolvePoolAddress)
	require.True(t, ok)
	assert.Equal(t, StatusUnresolved, resolve.Status)
	assert.Equal(t, "5", resolve.Effects["attempts"])

	summary := report.Summary()
	assert.Contains(t, summary, "not discoverable yet after 5 attempts")
	assert.Contains(t, summary, "--base "+report.BaseMint)
	assert.NotContains(t, summary, "FAILED")
}

func TestNewRejectsInvalidStrategyBeforeAnyCall(t *testing.T) {
	f := newFixture()
	cfg := testConfig()
	cfg.Strategy = strategy.CurvedRange(1, 1.2, nil)

	payer, err := wallet.Generate()
	require.NoError(t, err)
	_, err = New(cfg, Deps{Payer: payer, Tokens: f.tokens, Funding: f.funding, Engine: f.engine, Resolver: f.resolver}, zap.NewNop())
	assert.ErrorIs(t, err, strategy.ErrInvalidRange)
	assert.Zero(t, f.tokens.mintCalls)
	assert.Empty(t, f.funding.minimums)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	cfg.Quote.Mode = QuoteExisting
	cfg.BinStep = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "quote mint is required")
	assert.ErrorContains(t, err, "bin step")
}

func TestCancelledRunStops(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.pipeline(t, testConfig()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, RunAborted, report.Status)
	assert.Zero(t, f.tokens.mintCalls)
}

func stepByName(r *Report, name StepName) (StepOutcome, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepOutcome{}, false
}
