package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-valuation-service/internal/core/domain"
)

func TestPointerRepository_CompareAndSwap(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	repo := NewPointerRepository(store)
	ctx := context.Background()

	_, err = repo.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrNoProductionPointer)

	p, err := repo.CompareAndSwap(ctx, 0, &domain.ProductionPointer{RunID: "2025-01-01-00-00-00"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)

	_, err = repo.CompareAndSwap(ctx, 0, &domain.ProductionPointer{RunID: "2025-02-01-00-00-00"})
	assert.ErrorIs(t, err, domain.ErrPromotionConflict)

	p, err = repo.CompareAndSwap(ctx, 1, &domain.ProductionPointer{RunID: "2025-02-01-00-00-00"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Version)

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01-00-00-00", got.RunID)
	assert.Equal(t, int64(2), got.Version)
}
