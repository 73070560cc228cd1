package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"apartment-valuation-service/internal/core/domain"
	"apartment-valuation-service/internal/testutil"
)

const (
	runA = "2025-01-01-00-00-00"
	runB = "2025-02-01-00-00-00"
)

func seedTrainedRun(t *testing.T, store *testutil.MemoryStore, runID string, rmse float64) {
	t.Helper()
	ctx := context.Background()
	metrics, err := json.Marshal(domain.Metrics{RMSE: rmse, MAE: rmse / 2})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, domain.ModelMetricsKey(runID), metrics))
	require.NoError(t, store.Put(ctx, domain.ModelKey(runID), []byte(`{}`)))
	require.NoError(t, store.Put(ctx, domain.ModelMetadataKey(runID), []byte(`{}`)))
}

func TestPromotionService_Compare_Bootstrap(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedTrainedRun(t, store, runA, 50000)
	svc := NewPromotionService(store, &testutil.MemoryPointerRepo{}, nil, nil)

	cmp, err := svc.Compare(context.Background(), runA)
	require.NoError(t, err)
	assert.True(t, cmp.IsBetter)
	assert.Equal(t, int64(0), cmp.IncumbentVersion)
	assert.Equal(t, 50000.0, cmp.Metrics.RMSE)
}

func TestPromotionService_Compare_Strict(t *testing.T) {
	cases := []struct {
		name       string
		challenger float64
		better     bool
	}{
		{"lower wins", 39999, true},
		{"tie keeps incumbent", 40000, false},
		{"higher loses", 40001, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := testutil.NewMemoryStore()
			pointers := &testutil.MemoryPointerRepo{}
			seedTrainedRun(t, store, runA, 40000)
			seedTrainedRun(t, store, runB, c.challenger)
			svc := NewPromotionService(store, pointers, nil, nil)

			_, err := svc.Promote(context.Background(), runA, 0)
			require.NoError(t, err)

			cmp, err := svc.Compare(context.Background(), runB)
			require.NoError(t, err)
			assert.Equal(t, c.better, cmp.IsBetter)
			assert.Equal(t, int64(1), cmp.IncumbentVersion)
			assert.Equal(t, runA, cmp.IncumbentRunID)
			if c.better {
				assert.Equal(t, c.challenger, cmp.Metrics.RMSE)
			} else {
				assert.Equal(t, 40000.0, cmp.Metrics.RMSE)
			}
		})
	}
}

func TestPromotionService_Compare_MissingMetrics(t *testing.T) {
	svc := NewPromotionService(testutil.NewMemoryStore(), &testutil.MemoryPointerRepo{}, nil, nil)
	_, err := svc.Compare(context.Background(), runA)
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestPromotionService_Promote_PublishesAndMarks(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedTrainedRun(t, store, runA, 100)
	runs := new(testutil.MockRunRepo)
	bus := new(testutil.MockPromotionBus)
	runs.On("MarkPromoted", mock.Anything, runA).Return(nil)
	bus.On("Publish", mock.Anything, mock.MatchedBy(func(p *domain.ProductionPointer) bool {
		return p.RunID == runA && p.Version == 1
	})).Return(nil)

	svc := NewPromotionService(store, &testutil.MemoryPointerRepo{}, runs, bus)
	p, err := svc.Promote(context.Background(), runA, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.ModelKey(runA), p.ModelKey)
	assert.Equal(t, domain.ModelMetadataKey(runA), p.MetadataKey)
	assert.Equal(t, 100.0, p.Metrics.RMSE)
	runs.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestPromotionService_Promote_MissingArtifact(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedTrainedRun(t, store, runA, 100)
	require.NoError(t, store.Put(context.Background(), domain.ModelMetricsKey(runB), []byte(`{"rmse":1}`)))
	pointers := &testutil.MemoryPointerRepo{}
	svc := NewPromotionService(store, pointers, nil, nil)

	_, err := svc.Promote(context.Background(), runB, 0)
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	_, err = pointers.Get(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoProductionPointer)
}

func TestPromotionService_Promote_StaleVersionConflicts(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedTrainedRun(t, store, runA, 100)
	seedTrainedRun(t, store, runB, 90)
	svc := NewPromotionService(store, &testutil.MemoryPointerRepo{}, nil, nil)

	_, err := svc.Promote(context.Background(), runA, 0)
	require.NoError(t, err)

	_, err = svc.Promote(context.Background(), runB, 0)
	assert.ErrorIs(t, err, domain.ErrPromotionConflict)

	p, err := svc.Production(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runA, p.RunID)
}

func TestPromotionService_CompareAndPromote_ConcurrentSingleWinner(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedTrainedRun(t, store, runA, 100)
	seedTrainedRun(t, store, runB, 90)
	svc := NewPromotionService(store, &testutil.MemoryPointerRepo{}, nil, nil)

	// both gates observe version 0; only one swap may land
	cmpA, err := svc.Compare(context.Background(), runA)
	require.NoError(t, err)
	cmpB, err := svc.Compare(context.Background(), runB)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, c := range []*Comparison{cmpA, cmpB} {
		wg.Add(1)
		go func(i int, c *Comparison) {
			defer wg.Done()
			_, errs[i] = svc.Promote(context.Background(), c.RunID, c.IncumbentVersion)
		}(i, c)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrPromotionConflict)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	p, err := svc.Production(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)
	assert.Equal(t, domain.ModelMetadataKey(p.RunID), p.MetadataKey)
}

func TestPromotionService_CompareAndPromote(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedTrainedRun(t, store, runA, 100)
	seedTrainedRun(t, store, runB, 120)
	svc := NewPromotionService(store, &testutil.MemoryPointerRepo{}, nil, nil)

	res, err := svc.CompareAndPromote(context.Background(), runA)
	require.NoError(t, err)
	assert.True(t, res.Promoted)
	assert.Equal(t, runA, res.Pointer.RunID)

	res, err = svc.CompareAndPromote(context.Background(), runB)
	require.NoError(t, err)
	assert.False(t, res.Promoted)
	assert.Nil(t, res.Pointer)
	assert.Equal(t, 100.0, res.Comparison.Metrics.RMSE)

	p, err := svc.ForcePromote(context.Background(), runB)
	require.NoError(t, err)
	assert.Equal(t, runB, p.RunID)
	assert.Equal(t, int64(2), p.Version)
}

func TestPromotionService_ListRunsFromStore(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedTrainedRun(t, store, runA, 100)
	seedTrainedRun(t, store, runB, 90)
	svc := NewPromotionService(store, &testutil.MemoryPointerRepo{}, nil, nil)
	_, err := svc.Promote(context.Background(), runA, 0)
	require.NoError(t, err)

	runs, err := svc.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, runB, runs[0].RunID)
	assert.False(t, runs[0].Promoted)
	assert.Equal(t, runA, runs[1].RunID)
	assert.True(t, runs[1].Promoted)
	assert.Equal(t, 90.0, runs[0].Metrics.RMSE)
}

func TestPromotionService_GetRunFromStore(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedTrainedRun(t, store, runA, 100)
	seedTrainedRun(t, store, runB, 90)
	svc := NewPromotionService(store, &testutil.MemoryPointerRepo{}, nil, nil)
	_, err := svc.Promote(context.Background(), runB, 0)
	require.NoError(t, err)

	run, err := svc.GetRun(context.Background(), runB)
	require.NoError(t, err)
	assert.Equal(t, runB, run.RunID)
	assert.Equal(t, domain.ModelKey(runB), run.ModelKey)
	assert.Equal(t, 90.0, run.Metrics.RMSE)
	assert.True(t, run.Promoted)
	assert.Equal(t, 2025, run.CreatedAt.Year())

	run, err = svc.GetRun(context.Background(), runA)
	require.NoError(t, err)
	assert.False(t, run.Promoted)

	_, err = svc.GetRun(context.Background(), "2030-01-01-00-00-00")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	_, err = svc.GetRun(context.Background(), "../etc")
	assert.ErrorIs(t, err, domain.ErrInvalidRunID)
}

func TestPromotionService_GetRunUsesRepository(t *testing.T) {
	runs := new(testutil.MockRunRepo)
	want := &domain.TrainingRun{RunID: runA, Promoted: true}
	runs.On("GetByID", mock.Anything, runA).Return(want, nil)
	runs.On("GetByID", mock.Anything, runB).Return(nil, domain.ErrRunNotFound)
	svc := NewPromotionService(testutil.NewMemoryStore(), &testutil.MemoryPointerRepo{}, runs, nil)

	got, err := svc.GetRun(context.Background(), runA)
	require.NoError(t, err)
	assert.Same(t, want, got)

	_, err = svc.GetRun(context.Background(), runB)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	runs.AssertExpectations(t)
}
