package ports

import (
	"context"

	"apartment-valuation-service/internal/core/domain"
)

// PromotionBus broadcasts production pointer changes to serving processes.
type PromotionBus interface {
	Publish(ctx context.Context, p *domain.ProductionPointer) error

	// Subscribe blocks, calling onPromote for every event, until ctx is done.
	Subscribe(ctx context.Context, onPromote func(p *domain.ProductionPointer)) error
}
