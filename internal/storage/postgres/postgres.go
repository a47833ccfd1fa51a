// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-launcher/internal/storage"
	"github.com/rovshanmuradov/dlmm-launcher/internal/storage/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS provisioning_runs (
	run_id       TEXT PRIMARY KEY,
	pair         TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	payer        TEXT NOT NULL,
	base_mint    TEXT NOT NULL DEFAULT '',
	quote_mint   TEXT NOT NULL DEFAULT '',
	pool_address TEXT NOT NULL DEFAULT '',
	bin_step     INTEGER NOT NULL,
	fee_bps      INTEGER NOT NULL,
	start_price  DOUBLE PRECISION NOT NULL,
	upper_price  DOUBLE PRECISION NOT NULL,
	strategy     TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	report       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS provisioning_runs_pair_idx ON provisioning_runs (pair, started_at DESC);
CREATE TABLE IF NOT EXISTS provisioning_steps (
	run_id      TEXT NOT NULL REFERENCES provisioning_runs (run_id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	fatal       BOOLEAN NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	effects     JSONB NOT NULL,
	duration_ms BIGINT NOT NULL,
	PRIMARY KEY (run_id, position)
);`

const runColumns = `run_id, pair, status, error, payer, base_mint, quote_mint, pool_address,
	bin_step, fee_bps, start_price, upper_price, strategy, started_at, finished_at, report`

type postgresStorage struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStorage connects to dsn and pings the server.
func NewStorage(ctx context.Context, dsn string, logger *zap.Logger) (storage.Storage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &postgresStorage{pool: pool, logger: logger.Named("postgres")}, nil
}

func (p *postgresStorage) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *postgresStorage) RunMigrations(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	p.logger.Debug("Migrations applied")
	return nil
}

// SaveRun upserts the run and replaces its steps in one transaction.
func (p *postgresStorage) SaveRun(ctx context.Context, run *models.Run) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO provisioning_runs (`+runColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (run_id) DO UPDATE SET
				status = EXCLUDED.status,
				error = EXCLUDED.error,
				base_mint = EXCLUDED.base_mint,
				quote_mint = EXCLUDED.quote_mint,
				pool_address = EXCLUDED.pool_address,
				upper_price = EXCLUDED.upper_price,
				finished_at = EXCLUDED.finished_at,
				report = EXCLUDED.report`,
			run.RunID, run.Pair, run.Status, run.Error, run.Payer, run.BaseMint, run.QuoteMint, run.PoolAddress,
			run.BinStep, run.FeeBps, run.StartPrice, run.UpperPrice, run.Strategy, run.StartedAt, run.FinishedAt,
			string(run.Report),
		)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM provisioning_steps WHERE run_id = $1`, run.RunID); err != nil {
			return fmt.Errorf("failed to clear steps: %w", err)
		}
		if len(run.Steps) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, s := range run.Steps {
			batch.Queue(`
				INSERT INTO provisioning_steps (run_id, position, name, status, fatal, reason, effects, duration_ms)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				run.RunID, s.Position, s.Name, s.Status, s.Fatal, s.Reason, string(s.Effects), s.DurationMs)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for range run.Steps {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to save step: %w", err)
			}
		}
		return nil
	})
}

func (p *postgresStorage) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM provisioning_runs WHERE run_id = $1`, runID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT position, name, status, fatal, reason, effects::text, duration_ms
		FROM provisioning_steps WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s models.Step
		var effects string
		if err := rows.Scan(&s.Position, &s.Name, &s.Status, &s.Fatal, &s.Reason, &effects, &s.DurationMs); err != nil {
			return nil, err
		}
		s.Effects = []byte(effects)
		run.Steps = append(run.Steps, s)
	}
	return run, rows.Err()
}

// ListRuns returns the newest runs first; an empty pair lists every pair.
func (p *postgresStorage) ListRuns(ctx context.Context, pair string, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx, `
		SELECT `+runColumns+` FROM provisioning_runs
		WHERE $1 = '' OR pair = $1
		ORDER BY started_at DESC LIMIT $2`, pair, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*models.Run, error) {
	var run models.Run
	var report string
	err := row.Scan(&run.RunID, &run.Pair, &run.Status, &run.Error, &run.Payer, &run.BaseMint, &run.QuoteMint,
		&run.PoolAddress, &run.BinStep, &run.FeeBps, &run.StartPrice, &run.UpperPrice, &run.Strategy,
		&run.StartedAt, &run.FinishedAt, &report)
	if err != nil {
		return nil, err
	}
	run.Report = []byte(report)
	return &run, nil
}
