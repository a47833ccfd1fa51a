// internal/launcher/history.go
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/config"
	"github.com/rovshanmuradov/dlmm-launcher/internal/storage"
	"github.com/rovshanmuradov/dlmm-launcher/internal/storage/models"
	"github.com/rovshanmuradov/dlmm-launcher/internal/storage/postgres"
)

// ErrNoArchive is returned when no Postgres URL is configured.
var ErrNoArchive = errors.New("report archive not configured (report.postgres_url)")

// OpenArchive connects to the report archive and applies the schema.
func OpenArchive(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	dsn := cfg.ReportPostgresURL()
	if dsn == "" {
		return nil, ErrNoArchive
	}
	store, err := postgres.NewStorage(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := store.RunMigrations(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// WriteRuns prints one line per archived run, newest first.
func WriteRuns(w io.Writer, runs []*models.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no archived runs")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "PAIR", "STATUS", "STARTED", "POOL")
	for _, r := range runs {
		t.Row(r.RunID, r.Pair, r.Status, r.StartedAt.UTC().Format(time.RFC3339), orDash(r.PoolAddress))
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// WriteRun prints one archived run with its steps.
func WriteRun(w io.Writer, r *models.Run) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run:        %s\n", r.RunID)
	fmt.Fprintf(&b, "pair:       %s (%s, bin step %d, fee %d bps)\n", r.Pair, r.Strategy, r.BinStep, r.FeeBps)
	fmt.Fprintf(&b, "status:     %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(&b, "error:      %s\n", r.Error)
	}
	fmt.Fprintf(&b, "base mint:  %s\n", orDash(r.BaseMint))
	fmt.Fprintf(&b, "quote mint: %s\n", orDash(r.QuoteMint))
	fmt.Fprintf(&b, "pool:       %s\n", orDash(r.PoolAddress))
	fmt.Fprintf(&b, "duration:   %s\n", r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond))
	for _, s := range r.Steps {
		line := fmt.Sprintf("  %-28s %-9s %6dms", s.Name, s.Status, s.DurationMs)
		if s.Reason != "" {
			line += "  " + s.Reason
		}
		b.WriteString(line + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
