package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

type estimateRepo struct {
	pool *pgxpool.Pool
}

func NewEstimateRepository(pool *pgxpool.Pool) ports.EstimateRepository {
	return &estimateRepo{pool: pool}
}

func (r *estimateRepo) Create(ctx context.Context, rec *domain.EstimateRecord) error {
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	var request []byte
	if rec.Request != nil {
		if request, err = json.Marshal(rec.Request); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	var lat, lon *float64
	if rec.Coordinates != nil {
		lat, lon = &rec.Coordinates.Lat, &rec.Coordinates.Lon
	}

	query := `
		INSERT INTO valuation_estimate
			(id, created_at, address, neighborhood, estimated_price, price_per_sqm,
			 model_used, model_run_id, lat, lon, features, request, request_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`
	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.CreatedAt, rec.Address, rec.Neighborhood,
		rec.EstimatedPrice, rec.PricePerSqm,
		string(rec.ModelUsed), nullableString(rec.ModelRunID),
		lat, lon, features, request, nullableString(rec.RequestID),
	)
	if err != nil {
		return fmt.Errorf("insert valuation_estimate: %w", err)
	}
	return nil
}

func (r *estimateRepo) ListRecent(ctx context.Context, limit int) ([]*domain.EstimateRecord, error) {
	query := `
		SELECT id, created_at, address, neighborhood, estimated_price, price_per_sqm,
		       model_used, COALESCE(model_run_id, ''), lat, lon, features,
		       request, COALESCE(request_id, '')
		FROM valuation_estimate
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list valuation_estimate: %w", err)
	}
	defer rows.Close()

	var out []*domain.EstimateRecord
	for rows.Next() {
		rec, err := scanEstimate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan valuation_estimate row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate valuation_estimate rows: %w", err)
	}
	return out, nil
}

func scanEstimate(row pgx.Row) (*domain.EstimateRecord, error) {
	var (
		rec       domain.EstimateRecord
		modelUsed string
		lat, lon  *float64
		features  []byte
		request   []byte
	)
	err := row.Scan(
		&rec.ID, &rec.CreatedAt, &rec.Address, &rec.Neighborhood,
		&rec.EstimatedPrice, &rec.PricePerSqm,
		&modelUsed, &rec.ModelRunID, &lat, &lon, &features,
		&request, &rec.RequestID,
	)
	if err != nil {
		return nil, err
	}
	rec.ModelUsed = domain.ModelUsed(modelUsed)
	if lat != nil && lon != nil {
		rec.Coordinates = &domain.Coordinates{Lat: *lat, Lon: *lon}
	}
	if err := json.Unmarshal(features, &rec.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	if len(request) > 0 {
		rec.Request = &domain.EstimateRequest{}
		if err := json.Unmarshal(request, rec.Request); err != nil {
			return nil, fmt.Errorf("decode request: %w", err)
		}
	}
	return &rec, nil
}
