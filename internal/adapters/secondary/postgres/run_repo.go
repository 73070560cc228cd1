package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

type runRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) ports.RunRepository {
	return &runRepo{pool: pool}
}

func (r *runRepo) Save(ctx context.Context, run *domain.TrainingRun) error {
	query := `
		INSERT INTO training_run
			(run_id, model_key, metadata_key, rmse, mae, r2, train_rows, test_rows, promoted, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (run_id) DO UPDATE SET
			model_key = EXCLUDED.model_key,
			metadata_key = EXCLUDED.metadata_key,
			rmse = EXCLUDED.rmse,
			mae = EXCLUDED.mae,
			r2 = EXCLUDED.r2,
			train_rows = EXCLUDED.train_rows,
			test_rows = EXCLUDED.test_rows
	`
	_, err := r.pool.Exec(ctx, query,
		run.RunID, run.ModelKey, run.MetadataKey,
		run.Metrics.RMSE, run.Metrics.MAE, run.Metrics.R2,
		run.Metrics.TrainRows, run.Metrics.TestRows,
		run.Promoted, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save training run: %w", err)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, runID string) (*domain.TrainingRun, error) {
	query := `
		SELECT run_id, model_key, metadata_key, rmse, mae, r2, train_rows, test_rows, promoted, created_at
		FROM training_run
		WHERE run_id = $1
	`
	run, err := scanRun(r.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get training run: %w", err)
	}
	return run, nil
}

// MarkPromoted flags runID as the production run and clears the flag on every other run.
func (r *runRepo) MarkPromoted(ctx context.Context, runID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `UPDATE training_run SET promoted = TRUE WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("mark training run promoted: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE training_run SET promoted = FALSE WHERE run_id <> $1 AND promoted`, runID); err != nil {
		return fmt.Errorf("demote training runs: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *runRepo) List(ctx context.Context, limit int) ([]*domain.TrainingRun, error) {
	query := `
		SELECT run_id, model_key, metadata_key, rmse, mae, r2, train_rows, test_rows, promoted, created_at
		FROM training_run
		ORDER BY run_id DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list training runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan training run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training run rows: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*domain.TrainingRun, error) {
	var run domain.TrainingRun
	err := row.Scan(
		&run.RunID, &run.ModelKey, &run.MetadataKey,
		&run.Metrics.RMSE, &run.Metrics.MAE, &run.Metrics.R2,
		&run.Metrics.TrainRows, &run.Metrics.TestRows,
		&run.Promoted, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
