package launcher

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/config"
	"github.com/rovshanmuradov/dlmm-launcher/internal/storage/models"
)

func archivedRun() *models.Run {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Run{
		RunID:      "3f0c9a1e-run",
		Pair:       "nomu_usdc",
		Status:     "failed",
		Payer:      "Payer111",
		BaseMint:   "Base111",
		QuoteMint:  "Quote111",
		BinStep:    25,
		FeeBps:     25,
		Strategy:   "curved_range",
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Steps: []models.Step{
			{Position: 0, Name: "CreateBaseMint", Status: "succeeded", Fatal: true, DurationMs: 1200},
			{Position: 1, Name: "ResolvePoolAddress", Status: "failed", Reason: "pool not listed", DurationMs: 30000},
		},
	}
}

func TestWriteRuns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRuns(&buf, []*models.Run{archivedRun()}))

	out := buf.String()
	assert.Contains(t, out, "PAIR")
	assert.Contains(t, out, "3f0c9a1e-run")
	assert.Contains(t, out, "nomu_usdc")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
	assert.Contains(t, out, "-", "missing pool prints a dash")
}

func TestWriteRunsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRuns(&buf, nil))
	assert.Equal(t, "no archived runs\n", buf.String())
}

func TestWriteRun(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, archivedRun()))

	out := buf.String()
	assert.Contains(t, out, "status:     failed")
	assert.Contains(t, out, "pool:       -")
	assert.Contains(t, out, "duration:   1m30s")
	assert.Contains(t, out, "CreateBaseMint")
	assert.Contains(t, out, "pool not listed")
}

func TestOpenArchiveRequiresURL(t *testing.T) {
	_, err := OpenArchive(context.Background(), &config.Config{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoArchive)
}
