// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/dlmm-launcher/internal/storage/models"
)

// ErrNotFound is returned when a run is not archived.
var ErrNotFound = errors.New("run not found")

// Storage archives run reports.
type Storage interface {
	SaveRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	ListRuns(ctx context.Context, pair string, limit int) ([]*models.Run, error)

	RunMigrations(ctx context.Context) error
	Close()
}
