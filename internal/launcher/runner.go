// internal/launcher/runner.go
package launcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/blockchain/solbc"
	"github.com/rovshanmuradov/dlmm-launcher/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/dlmm-launcher/internal/config"
	"github.com/rovshanmuradov/dlmm-launcher/internal/engine"
	"github.com/rovshanmuradov/dlmm-launcher/internal/export"
	"github.com/rovshanmuradov/dlmm-launcher/internal/funding"
	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
	"github.com/rovshanmuradov/dlmm-launcher/internal/resolver"
	"github.com/rovshanmuradov/dlmm-launcher/internal/resolver/listing"
	"github.com/rovshanmuradov/dlmm-launcher/internal/storage"
	"github.com/rovshanmuradov/dlmm-launcher/internal/storage/models"
	"github.com/rovshanmuradov/dlmm-launcher/internal/wallet"
)

// Runner wires the ledger, toolkit, resolver and report sinks for one
// configuration.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	rpc      *rpc.Client
	chain    *solbc.Client
	payer    *wallet.Wallet
	shutdown *ShutdownHandler
}

// NewRunner loads the payer keypair and connects to the RPC endpoints. An
// unhealthy endpoint list is only warned about; calls fail over later.
func NewRunner(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	payer, err := wallet.LoadKeypairFile(cfg.KeypairPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load payer keypair: %w", err)
	}

	rpcClient, err := rpc.NewClient(cfg.RPCList, rpc.Options{RateLimit: cfg.RPCRateLimit, Timeout: cfg.RPCTimeout}, logger)
	if err != nil {
		return nil, err
	}
	if err := rpcClient.HealthCheck(ctx); err != nil {
		logger.Warn("No healthy RPC endpoint at startup", zap.Error(err))
	}

	opts := solbc.DefaultOptions()
	opts.ComputeUnitPrice = cfg.DLMM.ComputeUnitPriceMicroLamports
	opts.WebsocketURL = cfg.WebSocketURL

	logger.Info("Launcher ready",
		zap.String("cluster", cfg.Cluster),
		zap.String("rpc", rpc.MaskURL(rpcClient.Primary())),
		zap.String("payer", payer.PublicKey.String()))

	return &Runner{
		cfg:      cfg,
		logger:   logger,
		rpc:      rpcClient,
		chain:    solbc.NewClient(rpcClient, opts, logger),
		payer:    payer,
		shutdown: NewShutdownHandler(logger, 0),
	}, nil
}

// Payer returns the paying wallet.
func (r *Runner) Payer() *wallet.Wallet {
	return r.payer
}

// Pipeline assembles a provisioning pipeline. observer may be nil.
func (r *Runner) Pipeline(observer pipeline.Observer) (*pipeline.Pipeline, error) {
	pc, err := r.cfg.PipelineConfig()
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Payer:    r.payer,
		Tokens:   r.chain,
		Funding:  funding.NewGate(r.chain, funding.FaucetAvailable(r.cfg.Cluster), r.logger),
		Engine:   engine.NewCLIEngine(r.cfg.EngineOptions(r.payer.PublicKey), r.logger),
		Resolver: r.Resolver(),
		Observer: observer,
	}
	if r.cfg.Toolkit.Prepare {
		deps.Toolkit = engine.NewToolkit(r.cfg.Toolkit.Dir, r.cfg.Toolkit.RepoURL, r.cfg.Toolkit.Runner,
			r.cfg.Toolkit.Install, nil, r.logger)
	}
	return pipeline.New(pc, deps, r.logger)
}

// Resolver builds the pool resolver with the configured listing sources.
func (r *Runner) Resolver() *resolver.Resolver {
	return r.resolver(r.cfg.Resolver.InitialDelay)
}

func (r *Runner) resolver(initialDelay time.Duration) *resolver.Resolver {
	opts := resolver.Options{
		InitialDelay: initialDelay,
		MaxAttempts:  r.cfg.Resolver.MaxAttempts,
		PollInterval: r.cfg.Resolver.PollInterval,
	}

	var listers []resolver.Lister
	if r.cfg.Resolver.Source == "program" || r.cfg.Resolver.Source == "both" {
		listers = append(listers, listing.NewProgramLister(r.rpc, r.logger))
	}
	if r.cfg.Resolver.Source == "api" || r.cfg.Resolver.Source == "both" {
		listers = append(listers, listing.NewAPILister(r.cfg.Resolver.APIURL, &http.Client{Timeout: r.cfg.RPCTimeout}, r.logger))
	}

	var lister resolver.Lister
	switch len(listers) {
	case 0:
	case 1:
		lister = listers[0]
	default:
		lister = resolver.MultiLister{Listers: listers, Logger: r.logger}
	}
	return resolver.New(lister, opts, r.logger)
}

// Run executes the pipeline and publishes its report.
func (r *Runner) Run(ctx context.Context, observer pipeline.Observer) (*pipeline.Report, error) {
	p, err := r.Pipeline(observer)
	if err != nil {
		return nil, err
	}
	report, runErr := p.Run(ctx)
	r.Publish(context.WithoutCancel(ctx), report)
	return report, runErr
}

// Publish exports report to the report dir and archives it in Postgres when
// configured. Failures are logged only.
func (r *Runner) Publish(ctx context.Context, report *pipeline.Report) {
	if report == nil {
		return
	}
	if format, err := export.ParseFormat(r.cfg.Report.Format); err != nil {
		r.logger.Warn("Report export skipped", zap.Error(err))
	} else if _, err := export.NewReportExporter(r.cfg.Report.Dir, r.logger).Export(report, format); err != nil {
		r.logger.Warn("Report export failed", zap.Error(err))
	}

	if r.cfg.ReportPostgresURL() == "" {
		return
	}
	if err := r.archive(ctx, report); err != nil {
		r.logger.Warn("Report archive failed", zap.Error(err))
	}
}

func (r *Runner) archive(ctx context.Context, report *pipeline.Report) error {
	store, err := r.storage(ctx)
	if err != nil {
		return err
	}
	run, err := models.FromReport(report)
	if err != nil {
		return err
	}
	if err := store.SaveRun(ctx, run); err != nil {
		return err
	}
	r.logger.Info("Report archived", zap.String("run_id", run.RunID))
	return nil
}

func (r *Runner) storage(ctx context.Context) (storage.Storage, error) {
	store, err := OpenArchive(ctx, r.cfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.shutdown.AddFunc("postgres", func() error { store.Close(); return nil })
	return store, nil
}

// Resolve runs only the pool listing for an existing pair, without the
// post-creation delay.
func (r *Runner) Resolve(ctx context.Context, base, quote solana.PublicKey) (resolver.Result, error) {
	return r.resolver(0).Resolve(ctx, "", base, quote)
}

// Balance returns the payer balance in lamports.
func (r *Runner) Balance(ctx context.Context) (uint64, error) {
	return r.chain.GetBalance(ctx, r.payer.PublicKey)
}

// TokenBalance returns the raw amount of mint held by the payer across all of
// its token accounts.
func (r *Runner) TokenBalance(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	return r.chain.OwnerTokenBalance(ctx, r.payer.PublicKey, mint)
}

// Close releases the runner's resources.
func (r *Runner) Close(ctx context.Context) error {
	return r.shutdown.Shutdown(ctx)
}
