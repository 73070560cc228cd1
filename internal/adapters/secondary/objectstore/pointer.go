package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

// PointerKey holds the production pointer when it lives in the object store.
const PointerKey = "production/pointer.json"

type pointerRepo struct {
	store ports.ObjectStore
	mu    sync.Mutex
}

// NewPointerRepository keeps the production pointer as a JSON object. The
// version check is serialized in-process only, so at most one process may
// promote against the same store.
func NewPointerRepository(store ports.ObjectStore) ports.PointerRepository {
	return &pointerRepo{store: store}
}

func (r *pointerRepo) Get(ctx context.Context) (*domain.ProductionPointer, error) {
	body, err := r.store.Get(ctx, PointerKey)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, domain.ErrNoProductionPointer
		}
		return nil, fmt.Errorf("read production pointer: %w", err)
	}
	var p domain.ProductionPointer
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode production pointer: %w", err)
	}
	return &p, nil
}

func (r *pointerRepo) CompareAndSwap(ctx context.Context, expectedVersion int64, next *domain.ProductionPointer) (*domain.ProductionPointer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var current int64
	p, err := r.Get(ctx)
	switch {
	case err == nil:
		current = p.Version
	case errors.Is(err, domain.ErrNoProductionPointer):
	default:
		return nil, err
	}
	if current != expectedVersion {
		return nil, domain.ErrPromotionConflict
	}

	stored := *next
	stored.Version = current + 1
	body, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal production pointer: %w", err)
	}
	if err := r.store.Put(ctx, PointerKey, body); err != nil {
		return nil, fmt.Errorf("write production pointer: %w", err)
	}
	return &stored, nil
}
