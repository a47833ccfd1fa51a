// =============================
// File: internal/engine/engine.go
// =============================

// Package engine drives the external DLMM pool toolkit: it writes one JSON
// config per invocation and runs the toolkit's scripts as subprocesses.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/dlmm/strategy"
)

// Engine creates pools and seeds liquidity.
type Engine interface {
	CreatePool(ctx context.Context, pool PoolParams) (Result, error)
	SeedLiquidity(ctx context.Context, pool PoolParams, plan strategy.SeedPlan) (Result, error)
}

// Result is the outcome of one invocation. Output is kept on failure too.
type Result struct {
	ConfigPath string
	Output     string
	ExitCode   int
	Duration   time.Duration
}

// ToolError is a failed toolkit invocation.
type ToolError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with status %d: %v", e.Command, e.ExitCode, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Tail returns the last n lines of the captured output.
func (e *ToolError) Tail(n int) string {
	lines := strings.Split(strings.TrimRight(e.Output, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Executor runs name with args in dir and returns combined stdout and stderr.
type Executor func(ctx context.Context, dir, name string, args ...string) (output []byte, exitCode int, err error)

// OSExecutor runs commands with os/exec.
func OSExecutor(ctx context.Context, dir, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}
	return buf.Bytes(), code, err
}

// Scripts are toolkit entry points, relative to the toolkit dir.
type Scripts struct {
	CreatePool    string
	SeedSingleBin string
	SeedLFG       string
}

// DefaultScripts are the meteora-pool-setup entry points.
func DefaultScripts() Scripts {
	return Scripts{
		CreatePool:    "src/create_pool.ts",
		SeedSingleBin: "src/seed_liquidity_single_bin.ts",
		SeedLFG:       "src/seed_liquidity_lfg.ts",
	}
}

// CLIOptions configure a CLIEngine.
type CLIOptions struct {
	// Dir is the toolkit checkout; configs go to Dir/config.
	Dir string
	// Runner and RunArgs prefix every script, e.g. "bun" ["run"].
	Runner   string
	RunArgs  []string
	Scripts  Scripts
	Settings Settings
	// Owner receives positions and fees.
	Owner solana.PublicKey
	Exec  Executor
}

// CLIEngine is the Engine backed by the toolkit's command line scripts.
type CLIEngine struct {
	opts   CLIOptions
	logger *zap.Logger
}

// NewCLIEngine creates an engine. Missing options fall back to bun and the
// default scripts.
func NewCLIEngine(opts CLIOptions, logger *zap.Logger) *CLIEngine {
	if opts.Runner == "" {
		opts.Runner = "bun"
		if opts.RunArgs == nil {
			opts.RunArgs = []string{"run"}
		}
	}
	def := DefaultScripts()
	if opts.Scripts.CreatePool == "" {
		opts.Scripts.CreatePool = def.CreatePool
	}
	if opts.Scripts.SeedSingleBin == "" {
		opts.Scripts.SeedSingleBin = def.SeedSingleBin
	}
	if opts.Scripts.SeedLFG == "" {
		opts.Scripts.SeedLFG = def.SeedLFG
	}
	if opts.Settings.KeypairFile == "" {
		opts.Settings.KeypairFile = "./keypair.json"
	}
	if opts.Exec == nil {
		opts.Exec = OSExecutor
	}
	return &CLIEngine{opts: opts, logger: logger.Named("engine")}
}

// CreatePool writes the creation config and runs the create script.
func (e *CLIEngine) CreatePool(ctx context.Context, pool PoolParams) (Result, error) {
	cfg := BuildCreateConfig(e.opts.Settings, pool)
	return e.invoke(ctx, e.opts.Scripts.CreatePool, ConfigFileName(pool.Pair, nil), cfg)
}

// SeedLiquidity writes the plan's config and runs the matching seed script.
func (e *CLIEngine) SeedLiquidity(ctx context.Context, pool PoolParams, plan strategy.SeedPlan) (Result, error) {
	cfg := BuildSeedConfig(e.opts.Settings, pool, plan, e.opts.Owner)
	script := e.opts.Scripts.SeedLFG
	if plan.IsSingleBin() {
		script = e.opts.Scripts.SeedSingleBin
	}
	return e.invoke(ctx, script, ConfigFileName(pool.Pair, &plan), cfg)
}

// WriteConfig writes cfg under Dir/config and returns the path relative to Dir.
func (e *CLIEngine) WriteConfig(name string, cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}
	dir := filepath.Join(e.opts.Dir, "config")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return "./" + filepath.ToSlash(filepath.Join("config", name)), nil
}

func (e *CLIEngine) invoke(ctx context.Context, script, configName string, cfg Config) (Result, error) {
	rel, err := e.WriteConfig(configName, cfg)
	if err != nil {
		return Result{}, err
	}

	args := append(append([]string{}, e.opts.RunArgs...), script, "--config", rel)
	command := e.opts.Runner + " " + strings.Join(args, " ")
	e.logger.Info("Running toolkit", zap.String("command", command))

	start := time.Now()
	out, code, runErr := e.opts.Exec(ctx, e.opts.Dir, e.opts.Runner, args...)
	res := Result{
		ConfigPath: filepath.Join(e.opts.Dir, "config", configName),
		Output:     string(out),
		ExitCode:   code,
		Duration:   time.Since(start),
	}
	e.echo(script, res.Output)

	if runErr != nil {
		return res, &ToolError{Command: command, ExitCode: code, Output: res.Output, Err: runErr}
	}
	e.logger.Info("Toolkit finished",
		zap.String("script", script),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (e *CLIEngine) echo(script, output string) {
	sc := bufio.NewScanner(strings.NewReader(output))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			e.logger.Debug(line, zap.String("script", script))
		}
	}
}
