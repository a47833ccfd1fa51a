// ====================================
// File: cmd/dlmm-launcher/main.go
// ====================================
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/config"
	"github.com/rovshanmuradov/dlmm-launcher/internal/funding"
	"github.com/rovshanmuradov/dlmm-launcher/internal/launcher"
	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func main() {
	root := &cobra.Command{
		Use:           "dlmm-launcher",
		Short:         "Provision a two-token DLMM market",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path (json or yaml)")
	pf.String("cluster", "", "cluster: devnet, testnet, localnet, mainnet-beta")
	pf.String("keypair", "", "payer keypair file")
	pf.String("recipient", "", "recipient wallet address")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.Bool("debug", false, "development logging")
	pf.Bool("dry-run", false, "ask the pool toolkit to simulate only")

	root.AddCommand(
		&cobra.Command{Use: "run", Short: "Run the full provisioning pipeline", RunE: runPipeline},
		&cobra.Command{Use: "plan", Short: "Print seed plans and toolkit configs without network calls", RunE: runPlan},
	)

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Print the payer SOL balance and, with --mint, its token balances",
		RunE:  runBalance,
	}
	balanceCmd.Flags().StringSlice("mint", nil, "token mint to report (repeatable)")
	root.AddCommand(balanceCmd)

	runsCmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List archived runs, or show one run with its steps",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRuns,
	}
	runsCmd.Flags().String("pair", "", "only runs of this pair")
	runsCmd.Flags().Int("limit", 20, "maximum runs to list")
	root.AddCommand(runsCmd)

	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Look up the pool of an existing pair",
		RunE:  runResolve,
	}
	resolveCmd.Flags().String("base", "", "base mint")
	resolveCmd.Flags().String("quote", "", "quote mint")
	_ = resolveCmd.MarkFlagRequired("base")
	_ = resolveCmd.MarkFlagRequired("quote")
	root.AddCommand(resolveCmd)

	if err := root.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(pipeline.ExitAborted)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	return config.LoadConfig(cfgFile, cmd.Flags())
}

// setup loads the config, the logger and the runner shared by the network
// commands. The returned cleanup closes them in reverse order.
func setup(ctx context.Context, cmd *cobra.Command) (*launcher.Runner, *zap.Logger, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	appLogger, err := launcher.NewLogger(cfg, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	runner, err := launcher.NewRunner(ctx, cfg, appLogger.Logger)
	if err != nil {
		_ = appLogger.Sync()
		return nil, nil, nil, err
	}
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := runner.Close(closeCtx); err != nil {
			appLogger.Warn("Shutdown finished with errors", zap.Error(err))
		}
		_ = appLogger.Sync()
	}
	return runner, appLogger.Logger, cleanup, nil
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, log, cleanup, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := runner.Run(ctx, nil)
	if report == nil {
		return err
	}
	if err != nil {
		log.Error("Run stopped", zap.Error(err))
	}
	fmt.Println(report.Summary())
	if code := report.ExitCode(); code != pipeline.ExitSucceeded {
		return exitError{code: code}
	}
	return nil
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The owner is only known once the keypair loads; the preview falls back
	// to the zero key when it cannot be read.
	owner := solana.PublicKey{}
	if kp, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.KeypairPath); err == nil {
		owner = kp.PublicKey()
	}

	preview, err := launcher.BuildPreview(cfg, owner)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pair:  %s\n", preview.Pair)
	fmt.Fprintf(out, "spot:  %s (next %s)\n", preview.Spot, preview.SpotNext)
	for _, p := range preview.Plans {
		fmt.Fprintf(out, "plan:  %s\n", p)
	}

	files := append([]string{preview.CreateAt}, preview.SeedFiles...)
	configs := append([]interface{}{preview.Create}, toAny(preview.Seeds)...)
	for i, c := range configs {
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n# %s\n%s\n", files[i], data)
	}
	return nil
}

func runResolve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseFlag, _ := cmd.Flags().GetString("base")
	quoteFlag, _ := cmd.Flags().GetString("quote")
	base, err := solana.PublicKeyFromBase58(baseFlag)
	if err != nil {
		return fmt.Errorf("invalid base mint: %w", err)
	}
	quote, err := solana.PublicKeyFromBase58(quoteFlag)
	if err != nil {
		return fmt.Errorf("invalid quote mint: %w", err)
	}

	runner, _, cleanup, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := runner.Resolve(ctx, base, quote)
	if err != nil {
		return err
	}
	if !res.Found {
		fmt.Fprintf(cmd.OutOrStdout(), "pool not found after %d attempts\n", res.Attempts)
		return exitError{code: pipeline.ExitFailed}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pool: %s (source %s)\n", res.Address, res.Source)
	return nil
}

func runBalance(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, _, cleanup, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	lamports, err := runner.Balance(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s SOL\n", runner.Payer().PublicKey, funding.LamportsToSOL(lamports))

	mints, _ := cmd.Flags().GetStringSlice("mint")
	for _, m := range mints {
		mint, err := solana.PublicKeyFromBase58(m)
		if err != nil {
			return fmt.Errorf("invalid mint %q: %w", m, err)
		}
		amount, err := runner.TokenBalance(ctx, mint)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d raw units\n", mint, amount)
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	appLogger, err := launcher.NewLogger(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = appLogger.Sync() }()

	store, err := launcher.OpenArchive(ctx, cfg, appLogger.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		return launcher.WriteRun(cmd.OutOrStdout(), run)
	}

	pair, _ := cmd.Flags().GetString("pair")
	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(ctx, pair, limit)
	if err != nil {
		return err
	}
	return launcher.WriteRuns(cmd.OutOrStdout(), runs)
}

func toAny[T any](in []T) []interface{} {
	out := make([]interface{}, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}
