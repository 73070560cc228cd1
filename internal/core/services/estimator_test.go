package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"apartment-valuation-service/internal/core/domain"
	"apartment-valuation-service/internal/core/forest"
	"apartment-valuation-service/internal/core/locational"
	"apartment-valuation-service/internal/testutil"
)

func num(v float64) *float64 { return &v }

var testLocator = locational.NewLocator([]locational.Centroid{
	{Neighborhood: "el Raval", District: "1", Coord: locational.Coord{Lat: 41.3797, Lon: 2.1682}},
	{Neighborhood: "Pedralbes", District: "4", Coord: locational.Coord{Lat: 41.3901, Lon: 2.1126}},
})

// productionSetup trains and promotes a small model.
func productionSetup(t *testing.T) (*testutil.MemoryStore, *testutil.MemoryPointerRepo, string) {
	t.Helper()
	store := testutil.NewMemoryStore()
	pointers := &testutil.MemoryPointerRepo{}
	runID := preparedRun(t, store, 200)

	_, err := NewTrainerService(store, nil, forest.Config{Trees: 5, Seed: 1}).Train(context.Background(), runID)
	require.NoError(t, err)
	_, err = NewPromotionService(store, pointers, nil, nil).Promote(context.Background(), runID, 0)
	require.NoError(t, err)
	return store, pointers, runID
}

func newEstimator(store *testutil.MemoryStore, pointers *testutil.MemoryPointerRepo, geo *testutil.MockGeocoder, audit *testutil.MockEstimateRepo) *EstimatorService {
	cache := NewModelCache(store, pointers, DefaultModelCacheOptions())
	svc := NewEstimatorService(cache, store, nil, nil, testLocator, DefaultEstimatorOptions())
	if geo != nil {
		svc.geocoder = geo
	}
	if audit != nil {
		svc.estimates = audit
	}
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestEstimatorService_FallbackUsesBaseline(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedBaselines(t, store, testBaselines)
	svc := newEstimator(store, &testutil.MemoryPointerRepo{}, nil, nil)

	est, err := svc.Estimate(context.Background(), &domain.EstimateRequest{Neighborhood: "el Raval", Sqm: 80})
	require.NoError(t, err)
	assert.Equal(t, domain.ModelUsedFallback, est.ModelUsed)
	assert.Equal(t, 320000.0, est.EstimatedPrice)
	assert.Equal(t, 4000.0, est.PricePerSqm)
	assert.Equal(t, "el Raval", est.InferredNeighborhood)
	assert.Equal(t, "1", est.District)
	assert.Empty(t, est.ModelRunID)
}

func TestEstimatorService_FallbackUnknownNeighborhoodUsesMean(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedBaselines(t, store, testBaselines)
	svc := newEstimator(store, &testutil.MemoryPointerRepo{}, nil, nil)

	est, err := svc.Estimate(context.Background(), &domain.EstimateRequest{Neighborhood: "Atlantis", Sqm: 80})
	require.NoError(t, err)
	assert.Equal(t, domain.ModelUsedFallback, est.ModelUsed)
	assert.Equal(t, 466667.0, est.EstimatedPrice)
	assert.Equal(t, defaultDistrict, est.District)
}

func TestEstimatorService_NoModelNoBaseline(t *testing.T) {
	svc := newEstimator(testutil.NewMemoryStore(), &testutil.MemoryPointerRepo{}, nil, nil)
	_, err := svc.Estimate(context.Background(), &domain.EstimateRequest{Sqm: 80})
	assert.ErrorIs(t, err, domain.ErrNoEstimator)
}

func TestEstimatorService_RejectsInvalidSize(t *testing.T) {
	svc := newEstimator(testutil.NewMemoryStore(), &testutil.MemoryPointerRepo{}, nil, nil)
	_, err := svc.Estimate(context.Background(), &domain.EstimateRequest{Sqm: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidSize)
}

func TestEstimatorService_UsesProductionModel(t *testing.T) {
	store, pointers, runID := productionSetup(t)
	audit := new(testutil.MockEstimateRepo)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.EstimateRecord) bool {
		return r.ModelUsed == domain.ModelUsedModel && r.ModelRunID == runID && r.Neighborhood == "Pedralbes"
	})).Return(nil)
	svc := newEstimator(store, pointers, nil, audit)

	est, err := svc.Estimate(context.Background(), &domain.EstimateRequest{
		Neighborhood: "Pedralbes", Sqm: 120, Bedrooms: num(3), HasElevator: true, HasTerrace: true,
	})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, domain.ModelUsedModel, est.ModelUsed)
	assert.Equal(t, runID, est.ModelRunID)
	assert.Greater(t, est.EstimatedPrice, 0.0)
	assert.Equal(t, 15.0, est.InputFeatures[domain.ColTerraceSqm])
	assert.Equal(t, 3.0, est.InputFeatures[domain.ColBedrooms])
	audit.AssertExpectations(t)
}

func TestEstimatorService_AuditCarriesRequestAndRequestID(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedBaselines(t, store, testBaselines)
	var got *domain.EstimateRecord
	audit := new(testutil.MockEstimateRepo)
	audit.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(*domain.EstimateRecord)
	}).Return(nil)
	svc := newEstimator(store, &testutil.MemoryPointerRepo{}, nil, audit)

	req := &domain.EstimateRequest{Neighborhood: "el Raval", Sqm: 50, Bedrooms: num(2), HasBalcony: true}
	ctx := domain.ContextWithRequestID(context.Background(), "req-7")
	_, err := svc.Estimate(ctx, req)
	require.NoError(t, err)
	req.Sqm = 999
	svc.Wait()

	require.NotNil(t, got)
	assert.Equal(t, "req-7", got.RequestID)
	require.NotNil(t, got.Request)
	assert.Equal(t, 50.0, got.Request.Sqm)
	assert.Equal(t, "el Raval", got.Request.Neighborhood)
	assert.Equal(t, 2.0, *got.Request.Bedrooms)
	assert.True(t, got.Request.HasBalcony)

	body, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"request":{`)
	assert.Contains(t, string(body), `"request_id":"req-7"`)
}

func TestEstimatorService_AuditFailureIsNotSurfaced(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedBaselines(t, store, testBaselines)
	audit := new(testutil.MockEstimateRepo)
	audit.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)
	svc := newEstimator(store, &testutil.MemoryPointerRepo{}, nil, audit)

	ctx, cancel := context.WithCancel(context.Background())
	est, err := svc.Estimate(ctx, &domain.EstimateRequest{Neighborhood: "el Raval", Sqm: 50})
	cancel()
	svc.Wait()

	require.NoError(t, err)
	assert.NotNil(t, est)
	audit.AssertNumberOfCalls(t, "Create", 1)
}

func TestEstimatorService_GeocodedAddressWins(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedBaselines(t, store, testBaselines)
	geo := new(testutil.MockGeocoder)
	geo.On("Geocode", mock.Anything, "Avinguda de Pedralbes 1").
		Return(&domain.Coordinates{Lat: 41.391, Lon: 2.113}, nil)
	svc := newEstimator(store, &testutil.MemoryPointerRepo{}, geo, nil)

	est, err := svc.Estimate(context.Background(), &domain.EstimateRequest{
		Address: "Avinguda de Pedralbes 1", Neighborhood: "el Raval", Sqm: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "Pedralbes", est.InferredNeighborhood)
	assert.Equal(t, "4", est.District)
	require.NotNil(t, est.Coordinates)
	assert.Equal(t, 41.391, est.Coordinates.Lat)
	assert.Equal(t, 700000.0, est.EstimatedPrice)

	dist := locational.DistanceToCenterKm(locational.Coord{Lat: 41.391, Lon: 2.113})
	assert.Equal(t, locational.Round(dist, 2), est.InputFeatures[domain.ColDistanceCBD])
}

func TestEstimatorService_GeocodeMissFallsBackToDeclared(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedBaselines(t, store, testBaselines)
	geo := new(testutil.MockGeocoder)
	geo.On("Geocode", mock.Anything, mock.Anything).Return(nil, domain.ErrGeocodeMiss)
	svc := newEstimator(store, &testutil.MemoryPointerRepo{}, geo, nil)

	est, err := svc.Estimate(context.Background(), &domain.EstimateRequest{Address: "nowhere", Sqm: 10})
	require.NoError(t, err)
	assert.Equal(t, "la Dreta de l'Eixample", est.InferredNeighborhood)
	assert.Nil(t, est.Coordinates)
	assert.Equal(t, 65000.0, est.EstimatedPrice)
}

func TestReconstructFeatures_Defaults(t *testing.T) {
	meta := &domain.Metadata{
		NeighborhoodMap: domain.NewEncodingMap("el Raval", "Pedralbes"),
		ConditionMap:    domain.NewEncodingMap("Excellent", "Good"),
		MaterialMap:     domain.NewEncodingMap("Premium", "Standard"),
		FloorPlanMap:    domain.NewEncodingMap("Open", "Traditional"),
		BuildingTypeMap: domain.NewEncodingMap("Modernista"),
	}
	loc := Location{Neighborhood: "Pedralbes", District: "4", DistanceKm: 5}

	f := ReconstructFeatures(&domain.EstimateRequest{Sqm: 70}, loc, meta, 2025)
	assert.Equal(t, 2.0, f[domain.ColNeighborhoodCode])
	assert.Equal(t, 2.0, f[domain.ColConditionCode])
	assert.Equal(t, 2.0, f[domain.ColMaterialCode])
	assert.Equal(t, 2.0, f[domain.ColFloorPlanCode])
	assert.Equal(t, 0.0, f[domain.ColBuildingTypeCode]) // Condo unseen, no Unknown code
	assert.Equal(t, 2.0, f[domain.ColFloor])
	assert.Equal(t, 1990.0, f[domain.ColYearBuilt])
	assert.Equal(t, 5.0, f[domain.ColRenovationYrsAgo])
	assert.Equal(t, 2.0, f[domain.ColBedrooms])
	assert.Equal(t, 1.0, f[domain.ColBathrooms])
	assert.Equal(t, 100.0, f[domain.ColHOAMonthly])
	assert.Equal(t, 1.0, f[domain.ColPropertyTaxRate])
	assert.Equal(t, 0.0, f[domain.ColTerraceSqm])

	f = ReconstructFeatures(&domain.EstimateRequest{Sqm: 70, YearRenovated: num(2030)}, loc, nil, 2025)
	assert.Equal(t, 0.0, f[domain.ColRenovationYrsAgo])
	assert.Equal(t, 0.0, f[domain.ColNeighborhoodCode])
}

func TestReconstructFeatures_HeuristicParityWithGenerator(t *testing.T) {
	baselines := []domain.NeighborhoodBaseline{
		{Neighborhood: "el Raval", District: "1", ProjectedPrice: 4000},
		{Neighborhood: "la Dreta de l'Eixample", District: "2", ProjectedPrice: 6500},
		{Neighborhood: "Pedralbes", District: "4", ProjectedPrice: 7000},
		{Neighborhood: "Horta", District: "7", ProjectedPrice: 3200},
		{Neighborhood: "Trinitat Vella", District: "9", ProjectedPrice: 2200},
		{Neighborhood: "Nowhere", District: "99", ProjectedPrice: 3000},
	}
	gen := NewListingGenerator(baselines, WeightUniform, 11, 2025).WithoutLocationalNoise()

	for i := 0; i < 300; i++ {
		l := gen.Next()
		loc := Location{Neighborhood: l.Neighborhood, District: l.District, DistanceKm: l.DistanceCBDKm}
		f := ReconstructFeatures(&domain.EstimateRequest{Sqm: float64(l.Sqm)}, loc, nil, 2025)

		assert.Equal(t, float64(l.WalkScore), f[domain.ColWalkScore], l.Neighborhood)
		assert.Equal(t, float64(l.SafetyScore), f[domain.ColSafetyScore], l.Neighborhood)
		assert.Equal(t, float64(l.AmenitiesScore), f[domain.ColAmenitiesScore], l.Neighborhood)
		assert.Equal(t, float64(l.DistanceMetroMin), f[domain.ColDistanceMetro], l.Neighborhood)
		assert.Equal(t, l.DistanceCBDKm, f[domain.ColDistanceCBD], l.Neighborhood)
	}
}

func TestListingGenerator_LocationalNoiseOnlyTouchesLocation(t *testing.T) {
	baselines := []domain.NeighborhoodBaseline{
		{Neighborhood: "el Raval", District: "1", ProjectedPrice: 4000},
		{Neighborhood: "Pedralbes", District: "4", ProjectedPrice: 7000},
	}
	noisy := NewListingGenerator(baselines, WeightUniform, 5, 2025)
	exact := NewListingGenerator(baselines, WeightUniform, 5, 2025).WithoutLocationalNoise()

	var jittered bool
	for i := 0; i < 50; i++ {
		a, b := noisy.Next(), exact.Next()
		assert.Equal(t, a.Neighborhood, b.Neighborhood)
		assert.Equal(t, a.Sqm, b.Sqm)
		assert.Equal(t, a.YearBuilt, b.YearBuilt)
		assert.Equal(t, a.Condition, b.Condition)
		assert.Equal(t, max(0.3, locational.DistrictDistanceKm(b.District)), b.DistanceCBDKm)
		if a.DistanceCBDKm != b.DistanceCBDKm {
			jittered = true
		}
	}
	assert.True(t, jittered)
}

func TestReconstructFeatures_CoversTrainedColumns(t *testing.T) {
	store := testutil.NewMemoryStore()
	runID := preparedRun(t, store, 50)

	body, err := store.Get(context.Background(), domain.ProcessedMetadataKey(runID))
	require.NoError(t, err)
	var meta domain.Metadata
	require.NoError(t, json.Unmarshal(body, &meta))

	f := ReconstructFeatures(&domain.EstimateRequest{Sqm: 80, Condition: "Excellent"}, Location{Neighborhood: "el Raval", District: "1"}, &meta, 2025)
	for _, col := range meta.FeatureColumns {
		_, ok := f[col]
		assert.True(t, ok, col)
	}
	assert.Len(t, f, len(meta.FeatureColumns))
	assert.Equal(t, meta.ConditionMap.Encode("Excellent"), f[domain.ColConditionCode])
	assert.Equal(t, meta.NeighborhoodMap.Encode("el Raval"), f[domain.ColNeighborhoodCode])
}

func TestFeatureVector_UnknownColumnIsZero(t *testing.T) {
	v := FeatureVector(map[string]float64{"a": 1, "b": 2}, []string{"b", "zzz", "a"})
	assert.Equal(t, []float64{2, 0, 1}, v)
}

func TestEstimatorService_ListNeighborhoods(t *testing.T) {
	store := testutil.NewMemoryStore()
	svc := newEstimator(store, &testutil.MemoryPointerRepo{}, nil, nil)

	_, err := svc.ListNeighborhoods(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoBaseline)

	seedBaselines(t, store, testBaselines)
	svc.ReloadBaseline()
	out, err := svc.ListNeighborhoods(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestEstimatorService_ListEstimates(t *testing.T) {
	svc := newEstimator(testutil.NewMemoryStore(), &testutil.MemoryPointerRepo{}, nil, nil)
	out, err := svc.ListEstimates(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, out)

	audit := new(testutil.MockEstimateRepo)
	audit.On("ListRecent", mock.Anything, 10).Return([]*domain.EstimateRecord{{Neighborhood: "Sants"}}, nil)
	svc.estimates = audit
	out, err = svc.ListEstimates(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
