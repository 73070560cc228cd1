package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

type pointerRepo struct {
	pool *pgxpool.Pool
}

// NewPointerRepository stores the production pointer in a single-row table.
func NewPointerRepository(pool *pgxpool.Pool) ports.PointerRepository {
	return &pointerRepo{pool: pool}
}

func (r *pointerRepo) Get(ctx context.Context) (*domain.ProductionPointer, error) {
	query := `
		SELECT run_id, model_key, metadata_key, metrics, version, promoted_at
		FROM production_pointer
		WHERE id = 1
	`
	var (
		p       domain.ProductionPointer
		metrics []byte
	)
	err := r.pool.QueryRow(ctx, query).Scan(&p.RunID, &p.ModelKey, &p.MetadataKey, &metrics, &p.Version, &p.PromotedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoProductionPointer
		}
		return nil, fmt.Errorf("get production pointer: %w", err)
	}
	if err := json.Unmarshal(metrics, &p.Metrics); err != nil {
		return nil, fmt.Errorf("decode pointer metrics: %w", err)
	}
	return &p, nil
}

func (r *pointerRepo) CompareAndSwap(ctx context.Context, expectedVersion int64, next *domain.ProductionPointer) (*domain.ProductionPointer, error) {
	metrics, err := json.Marshal(next.Metrics)
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}

	stored := *next
	if expectedVersion == 0 {
		query := `
			INSERT INTO production_pointer (id, run_id, model_key, metadata_key, metrics, version, promoted_at)
			VALUES (1, $1, $2, $3, $4, 1, $5)
		`
		_, err := r.pool.Exec(ctx, query, next.RunID, next.ModelKey, next.MetadataKey, metrics, next.PromotedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return nil, domain.ErrPromotionConflict
			}
			return nil, fmt.Errorf("insert production pointer: %w", err)
		}
		stored.Version = 1
		return &stored, nil
	}

	query := `
		UPDATE production_pointer
		SET run_id = $1, model_key = $2, metadata_key = $3, metrics = $4,
		    promoted_at = $5, version = version + 1
		WHERE id = 1 AND version = $6
		RETURNING version
	`
	err = r.pool.QueryRow(ctx, query,
		next.RunID, next.ModelKey, next.MetadataKey, metrics, next.PromotedAt, expectedVersion,
	).Scan(&stored.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPromotionConflict
		}
		return nil, fmt.Errorf("update production pointer: %w", err)
	}
	return &stored, nil
}
