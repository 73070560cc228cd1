package ports

import (
	"context"

	"apartment-valuation-service/internal/core/domain"
)

// PointerRepository stores the single production pointer.
type PointerRepository interface {
	// Get returns domain.ErrNoProductionPointer when nothing was promoted yet.
	Get(ctx context.Context) (*domain.ProductionPointer, error)

	// CompareAndSwap replaces the pointer only if its current version equals
	// expectedVersion (0 = no pointer yet) and returns the stored pointer with
	// its new version. A lost race returns domain.ErrPromotionConflict.
	CompareAndSwap(ctx context.Context, expectedVersion int64, next *domain.ProductionPointer) (*domain.ProductionPointer, error)
}
