package ports

import (
	"context"

	"apartment-valuation-service/internal/core/domain"
)

type RunRepository interface {
	Save(ctx context.Context, run *domain.TrainingRun) error
	GetByID(ctx context.Context, runID string) (*domain.TrainingRun, error)
	MarkPromoted(ctx context.Context, runID string) error
	List(ctx context.Context, limit int) ([]*domain.TrainingRun, error)
}

type EstimateRepository interface {
	Create(ctx context.Context, rec *domain.EstimateRecord) error
	ListRecent(ctx context.Context, limit int) ([]*domain.EstimateRecord, error)
}
