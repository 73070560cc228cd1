package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-valuation-service/internal/core/domain"
	"apartment-valuation-service/internal/testutil"
)

var testBaselines = []domain.NeighborhoodBaseline{
	{Neighborhood: "el Raval", District: "1", PriceAnchor: 3000, SlopePerYear: 100, ProjectedPrice: 4000},
	{Neighborhood: "Pedralbes", District: "4", PriceAnchor: 5000, SlopePerYear: 200, ProjectedPrice: 7000},
	{Neighborhood: "la Dreta de l'Eixample", District: "2", PriceAnchor: 5000, SlopePerYear: 150, ProjectedPrice: 6500},
}

func seedBaselines(t *testing.T, store *testutil.MemoryStore, baselines []domain.NeighborhoodBaseline) {
	t.Helper()
	body, err := json.Marshal(baselines)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), domain.BaselineKey, body))
}

func TestListingGenerator_Deterministic(t *testing.T) {
	a := NewListingGenerator(testBaselines, WeightByPrice, 7, 2025)
	b := NewListingGenerator(testBaselines, WeightByPrice, 7, 2025)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestListingGenerator_AttributeRanges(t *testing.T) {
	gen := NewListingGenerator(testBaselines, WeightByPrice, 11, 2025)
	for i := 0; i < 500; i++ {
		l := gen.Next()
		assert.GreaterOrEqual(t, l.Sqm, 35)
		assert.LessOrEqual(t, l.Sqm, 280)
		assert.GreaterOrEqual(t, l.Bedrooms, 1)
		assert.GreaterOrEqual(t, l.Bathrooms, 1)
		assert.LessOrEqual(t, l.Bathrooms, 4)
		assert.GreaterOrEqual(t, l.Floor, 0)
		assert.LessOrEqual(t, l.Floor, 10)
		assert.GreaterOrEqual(t, l.YearBuilt, 1890)
		assert.LessOrEqual(t, l.YearBuilt, 2024)
		assert.GreaterOrEqual(t, l.YearRenovated, l.YearBuilt)
		assert.LessOrEqual(t, l.YearRenovated, 2025)
		assert.GreaterOrEqual(t, l.DistanceCBDKm, 0.3)
		assert.GreaterOrEqual(t, l.DistanceMetroMin, 1)
		assert.GreaterOrEqual(t, l.PropertyTaxRate, 0.8)
		assert.LessOrEqual(t, l.PropertyTaxRate, 1.2)
		assert.Greater(t, l.Price, 0)
		if l.Floor <= 1 {
			assert.True(t, l.HasElevator)
		}
		if l.Floor == 0 || l.Floor == 10 {
			assert.True(t, l.HasTerrace)
		}
		if l.HasTerrace {
			assert.GreaterOrEqual(t, l.TerraceSqm, 5)
		} else {
			assert.Zero(t, l.TerraceSqm)
		}
	}
}

func TestListingGenerator_WeightingPolicy(t *testing.T) {
	skewed := []domain.NeighborhoodBaseline{
		{Neighborhood: "cheap", District: "9", ProjectedPrice: 1},
		{Neighborhood: "dear", District: "2", ProjectedPrice: 10000},
	}

	count := func(policy WeightingPolicy) int {
		gen := NewListingGenerator(skewed, policy, 3, 2025)
		n := 0
		for i := 0; i < 2000; i++ {
			if gen.Next().Neighborhood == "cheap" {
				n++
			}
		}
		return n
	}

	assert.Less(t, count(WeightByPrice), 20)
	assert.InDelta(t, 1000, count(WeightUniform), 150)
}

func TestListingPrice_Chain(t *testing.T) {
	l := &domain.SyntheticListing{
		Sqm:              100,
		Floor:            0,
		Condition:        "Good",
		MaterialQuality:  "Standard",
		HasElevator:      true,
		HasAC:            true,
		ParkingSpots:     1,
		DistanceMetroMin: 5,
		WalkScore:        70,
		SafetyScore:      70,
		AmenitiesScore:   75,
	}

	want := 4000.0 * 100
	want *= 0.92
	want *= 1.04 * 0.98
	want += 4000
	want += 28000
	want *= 1.08 - 2*0.015
	want *= 1.05 - 0.05

	assert.InDelta(t, want, ListingPrice(l, 4000, 2, 1), 1e-6)
	assert.InDelta(t, want*1.05, ListingPrice(l, 4000, 2, 1.05), 1e-6)
}

func TestListingPrice_WalkUpPenaltyAppliesBeforeAdditions(t *testing.T) {
	base := domain.SyntheticListing{
		Sqm: 50, Floor: 4, Condition: "Good", MaterialQuality: "Standard",
		HasAC: true, WalkScore: 70, SafetyScore: 70, AmenitiesScore: 75,
	}
	withLift := base
	withLift.HasElevator = true

	walkUp := ListingPrice(&base, 1000, 0, 1)
	lifted := ListingPrice(&withLift, 1000, 0, 1)

	// the penalty scales only the size-based price, never the +4000 AC
	sizeBased := 1000.0 * 50 * 1.024 * 1.04 * 0.98
	assert.InDelta(t, (sizeBased*0.88+4000)*1.08*1.05, walkUp, 1e-6)
	assert.InDelta(t, (sizeBased+4000)*1.08*1.05, lifted, 1e-6)
}

func TestGeneratorService_Generate(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedBaselines(t, store, testBaselines)

	svc := NewGeneratorService(store, GeneratorOptions{Samples: 120, Seed: 42})
	svc.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

	res, err := svc.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04-05-06-07", res.RunID)
	assert.Equal(t, "raw/2025-03-04-05-06-07/housing_data.csv", res.Key)
	assert.Equal(t, 120, res.Rows)

	body, err := store.Get(context.Background(), res.Key)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 121)
	assert.Equal(t, domain.RawListingHeader, records[0])
}

func TestGeneratorService_Generate_NoBaseline(t *testing.T) {
	svc := NewGeneratorService(testutil.NewMemoryStore(), DefaultGeneratorOptions())
	_, err := svc.Generate(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoBaseline)
}
