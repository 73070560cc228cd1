package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"apartment-valuation-service/internal/core/domain"
	"apartment-valuation-service/internal/testutil"
)

func TestModelCache_LoadsOnce(t *testing.T) {
	store, pointers, runID := productionSetup(t)
	mockPointers := new(testutil.MockPointerRepo)
	p, err := pointers.Get(context.Background())
	require.NoError(t, err)
	mockPointers.On("Get", mock.Anything).Return(p, nil).Once()

	cache := NewModelCache(store, mockPointers, DefaultModelCacheOptions())
	a, err := cache.Get(context.Background())
	require.NoError(t, err)
	b, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, runID, a.Pointer.RunID)
	assert.Equal(t, a.Forest.Features, a.Metadata.FeatureColumns)
	mockPointers.AssertExpectations(t)
}

func TestModelCache_RetriesAfterInterval(t *testing.T) {
	pointers := new(testutil.MockPointerRepo)
	pointers.On("Get", mock.Anything).Return(nil, domain.ErrNoProductionPointer).Once()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewModelCache(testutil.NewMemoryStore(), pointers, ModelCacheOptions{RetryAfter: time.Minute})
	cache.now = func() time.Time { return now }

	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)

	// within the retry interval the failure is served from memory
	_, err = cache.Get(context.Background())
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	pointers.AssertNumberOfCalls(t, "Get", 1)

	now = now.Add(2 * time.Minute)
	pointers.On("Get", mock.Anything).Return(nil, domain.ErrNoProductionPointer).Once()
	_, err = cache.Get(context.Background())
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	pointers.AssertNumberOfCalls(t, "Get", 2)
}

func TestModelCache_CallerCancellationNotCached(t *testing.T) {
	store, pointers, runID := productionSetup(t)
	cache := NewModelCache(store, pointers, DefaultModelCacheOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, runID, m.Pointer.RunID)

	m, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runID, m.Pointer.RunID)
}

func TestModelCache_InvalidatePicksUpPromotion(t *testing.T) {
	store, pointers, runID := productionSetup(t)
	cache := NewModelCache(store, pointers, DefaultModelCacheOptions())

	m, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runID, m.Pointer.RunID)

	// promote a copy of the same artifacts under a later run id
	next := "2030-01-01-00-00-00"
	for _, pair := range [][2]string{
		{domain.ModelKey(runID), domain.ModelKey(next)},
		{domain.ModelMetadataKey(runID), domain.ModelMetadataKey(next)},
		{domain.ModelMetricsKey(runID), domain.ModelMetricsKey(next)},
	} {
		body, err := store.Get(context.Background(), pair[0])
		require.NoError(t, err)
		require.NoError(t, store.Put(context.Background(), pair[1], body))
	}
	_, err = NewPromotionService(store, pointers, nil, nil).Promote(context.Background(), next, 1)
	require.NoError(t, err)

	m, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runID, m.Pointer.RunID)

	cache.Invalidate()
	m, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, next, m.Pointer.RunID)
}

func TestModelCache_MetadataMismatchRejected(t *testing.T) {
	store, pointers, runID := productionSetup(t)
	require.NoError(t, store.Put(context.Background(), domain.ModelMetadataKey(runID), []byte(`{"feature_columns":["sqm"]}`)))

	cache := NewModelCache(store, pointers, DefaultModelCacheOptions())
	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestModelCache_Watch(t *testing.T) {
	bus := new(testutil.MockPromotionBus)
	cache := NewModelCache(testutil.NewMemoryStore(), &testutil.MemoryPointerRepo{}, DefaultModelCacheOptions())
	cache.current = &LoadedModel{Pointer: &domain.ProductionPointer{RunID: "x"}}

	bus.On("Subscribe", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		onPromote := args.Get(1).(func(p *domain.ProductionPointer))
		onPromote(&domain.ProductionPointer{RunID: "y"})
	}).Return(nil)

	require.NoError(t, cache.Watch(context.Background(), bus))
	assert.Nil(t, cache.current)
}
