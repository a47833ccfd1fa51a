package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/wallet"
)

// DefaultRepoURL is the toolkit repository cloned when Dir is missing.
const DefaultRepoURL = "https://github.com/MeteoraAg/meteora-pool-setup"

// ErrRunnerMissing is returned when the script runner is not installed.
var ErrRunnerMissing = errors.New("toolkit runner not available")

// Toolkit prepares the toolkit checkout the CLIEngine runs in.
type Toolkit struct {
	Dir     string
	RepoURL string
	Runner  string
	// Install runs "<runner> install" after checkout; failures only warn.
	Install bool
	// KeypairFile is written relative to Dir.
	KeypairFile string

	exec   Executor
	logger *zap.Logger
}

// NewToolkit creates a toolkit handle. exec may be nil.
func NewToolkit(dir, repoURL, runner string, install bool, exec Executor, logger *zap.Logger) *Toolkit {
	if repoURL == "" {
		repoURL = DefaultRepoURL
	}
	if runner == "" {
		runner = "bun"
	}
	if exec == nil {
		exec = OSExecutor
	}
	return &Toolkit{
		Dir:         dir,
		RepoURL:     repoURL,
		Runner:      runner,
		Install:     install,
		KeypairFile: "keypair.json",
		exec:        exec,
		logger:      logger.Named("toolkit"),
	}
}

// Prepare checks the runner, clones the toolkit when absent, installs its
// dependencies and writes payer's keypair where the toolkit configs point.
func (t *Toolkit) Prepare(ctx context.Context, payer *wallet.Wallet) error {
	out, _, err := t.exec(ctx, "", t.Runner, "-v")
	if err != nil {
		return fmt.Errorf("%w: %s -v: %v", ErrRunnerMissing, t.Runner, err)
	}
	t.logger.Info("Runner found", zap.String("runner", t.Runner), zap.ByteString("version", trimNewline(out)))

	if _, err := os.Stat(t.Dir); errors.Is(err, os.ErrNotExist) {
		parent := filepath.Dir(t.Dir)
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", parent, err)
		}
		t.logger.Info("Cloning toolkit", zap.String("repo", t.RepoURL), zap.String("dir", t.Dir))
		if out, code, err := t.exec(ctx, parent, "git", "clone", t.RepoURL, filepath.Base(t.Dir)); err != nil {
			return &ToolError{Command: "git clone " + t.RepoURL, ExitCode: code, Output: string(out), Err: err}
		}
	} else if err != nil {
		return fmt.Errorf("failed to stat toolkit dir: %w", err)
	} else {
		t.logger.Info("Using existing toolkit", zap.String("dir", t.Dir))
	}

	if t.Install {
		if out, _, err := t.exec(ctx, t.Dir, t.Runner, "install"); err != nil {
			t.logger.Warn("Toolkit install failed, continuing",
				zap.Error(err), zap.ByteString("output", trimNewline(out)))
		}
	}

	return payer.WriteKeygenFile(filepath.Join(t.Dir, t.KeypairFile))
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
