package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/config"
	"github.com/rovshanmuradov/dlmm-launcher/internal/events"
	"github.com/rovshanmuradov/dlmm-launcher/internal/launcher"
	"github.com/rovshanmuradov/dlmm-launcher/internal/logger"
	"github.com/rovshanmuradov/dlmm-launcher/internal/pipeline"
	"github.com/rovshanmuradov/dlmm-launcher/internal/ui"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (json or yaml)")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath, nil)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The view owns the terminal: console lines go to the buffer, the file
	// sink keeps the full JSON log.
	buffer := logger.NewLogBuffer(1000)
	appLogger, err := launcher.NewLogger(cfg, buffer)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()

	os.Exit(run(rootCtx, cfg, appLogger.Logger, buffer))
}

func run(ctx context.Context, cfg *config.Config, appLogger *zap.Logger, buffer *logger.LogBuffer) int {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner, err := launcher.NewRunner(runCtx, cfg, appLogger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return pipeline.ExitAborted
	}
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = runner.Close(closeCtx)
	}()

	pc, err := cfg.PipelineConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return pipeline.ExitAborted
	}

	model := ui.NewModel(ui.RunInfo{
		Pair:     pc.Pair,
		Cluster:  cfg.Cluster,
		Payer:    runner.Payer().PublicKey.String(),
		Strategy: string(pc.Strategy.Kind),
		DryRun:   cfg.Toolkit.DryRun,
	}, buffer)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	bus := events.NewBus(appLogger, 64)
	bridge := ui.NewBridge(bus, program, appLogger)

	var (
		report *pipeline.Report
		runErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		report, runErr = runner.Run(runCtx, events.NewObserver(bus))
		// Delivers the queued step events before the final message.
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		_ = bus.Shutdown(shutdownCtx)
		done()
		program.Send(ui.RunDoneMsg{Report: report, Err: runErr})
	}()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		appLogger.Error("TUI application failed", zap.Error(err))
	}

	// Quitting the view early cancels the run; wait for its report.
	cancel()
	<-finished
	bridge.Close()

	appLogger.Info("TUI closed", zap.Uint64("events", bridge.Sent()))
	if report == nil {
		if runErr != nil {
			fmt.Fprintln(os.Stderr, "Error:", runErr)
		}
		return pipeline.ExitAborted
	}
	fmt.Println(report.Summary())
	return report.ExitCode()
}
