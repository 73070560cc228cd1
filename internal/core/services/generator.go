package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"

	"apartment-valuation-service/internal/core/domain"
	"apartment-valuation-service/internal/core/locational"
	ports "apartment-valuation-service/internal/core/ports/output"
)

// WeightingPolicy decides how often each neighbourhood is sampled.
type WeightingPolicy string

const (
	WeightByPrice WeightingPolicy = "price"
	WeightUniform WeightingPolicy = "uniform"
)

func (p WeightingPolicy) weight(b domain.NeighborhoodBaseline) float64 {
	if p == WeightUniform {
		return 1
	}
	return math.Max(1, b.ProjectedPrice)
}

var (
	floorPlans    = []string{"Traditional", "Open", "Loft", "Duplex"}
	buildingTypes = []string{"Condo", "Modernista", "Loft Conversion", "New Development"}
	conditions    = []string{"Excellent", "Good", "Average", "Needs Repair"}
	materials     = []string{"Premium", "Contemporary", "Standard", "Basic"}

	floorWeights     = []float64{8, 12, 12, 12, 10, 10, 10, 8, 6, 6, 6}
	conditionWeights = []float64{25, 45, 20, 10}
	parkingWeights   = []float64{60, 30, 10}
	sqmPerBedroom    = []float64{25, 30, 32, 35}

	conditionFactor = map[string]float64{"Excellent": 1.12, "Good": 1.04, "Average": 0.95, "Needs Repair": 0.82}
	materialFactor  = map[string]float64{"Premium": 1.08, "Contemporary": 1.03, "Standard": 0.98, "Basic": 0.93}
)

const (
	topFloor          = 10
	oldestBuilding    = 1890
	typicalBuilding   = 1975
	newestBuilding    = 2024
	earliestRenovated = 1960
)

type GeneratorOptions struct {
	Samples   int
	Seed      uint64 // 0 seeds from the clock
	Weighting WeightingPolicy
}

func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{Samples: 3000, Weighting: WeightByPrice}
}

type GenerateResult struct {
	RunID string `json:"run_id"`
	Key   string `json:"key"`
	Rows  int    `json:"rows"`
}

// GeneratorService samples synthetic listings around the baseline table.
type GeneratorService struct {
	store ports.ObjectStore
	opts  GeneratorOptions
	now   func() time.Time
}

func NewGeneratorService(store ports.ObjectStore, opts GeneratorOptions) *GeneratorService {
	if opts.Samples <= 0 {
		opts.Samples = DefaultGeneratorOptions().Samples
	}
	if opts.Weighting == "" {
		opts.Weighting = WeightByPrice
	}
	return &GeneratorService{store: store, opts: opts, now: time.Now}
}

// Generate writes a new raw dataset under a fresh run id.
func (s *GeneratorService) Generate(ctx context.Context) (*GenerateResult, error) {
	baselines, err := LoadBaselines(ctx, s.store)
	if err != nil {
		return nil, err
	}

	now := s.now()
	seed := s.opts.Seed
	if seed == 0 {
		seed = uint64(now.UnixNano())
	}
	gen := NewListingGenerator(baselines, s.opts.Weighting, seed, now.Year())

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(domain.RawListingHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < s.opts.Samples; i++ {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		l := gen.Next()
		if err := w.Write(l.Record()); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	runID := domain.NewRunID(now)
	key := domain.RawDatasetKey(runID)
	if err := s.store.Put(ctx, key, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write raw dataset: %w", err)
	}

	log.WithFields(log.Fields{
		"run_id":    runID,
		"rows":      s.opts.Samples,
		"weighting": s.opts.Weighting,
	}).Info("synthetic dataset generated")
	return &GenerateResult{RunID: runID, Key: key, Rows: s.opts.Samples}, nil
}

// ============================================================================
// Sampling
// ============================================================================

// ListingGenerator draws listings from one seeded stream. Not safe for concurrent use.
type ListingGenerator struct {
	baselines   []domain.NeighborhoodBaseline
	weights     []float64
	picker      sampleuv.Weighted
	rng         *rand.Rand
	currentYear int
	exact       bool

	sqm       distuv.Normal
	yearBuilt distuv.Triangle
	terrace   distuv.Exponential
	floor     distuv.Categorical
	condition distuv.Categorical
	parking   distuv.Categorical
}

func NewListingGenerator(baselines []domain.NeighborhoodBaseline, policy WeightingPolicy, seed uint64, currentYear int) *ListingGenerator {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	weights := make([]float64, len(baselines))
	for i, b := range baselines {
		weights[i] = policy.weight(b)
	}
	return &ListingGenerator{
		baselines:   baselines,
		weights:     weights,
		picker:      sampleuv.NewWeighted(weights, rng),
		rng:         rng,
		currentYear: currentYear,
		sqm:         distuv.Normal{Mu: 95, Sigma: 35, Src: rng},
		yearBuilt:   distuv.NewTriangle(oldestBuilding, newestBuilding, typicalBuilding, rng),
		terrace:     distuv.Exponential{Rate: 1.0 / 12, Src: rng},
		floor:       distuv.NewCategorical(floorWeights, rng),
		condition:   distuv.NewCategorical(conditionWeights, rng),
		parking:     distuv.NewCategorical(parkingWeights, rng),
	}
}

// WithoutLocationalNoise pins distance and scores to their district values.
// The random stream is consumed as usual so the other fields do not change.
func (g *ListingGenerator) WithoutLocationalNoise() *ListingGenerator {
	g.exact = true
	return g
}

// pick samples with replacement.
func (g *ListingGenerator) pick() domain.NeighborhoodBaseline {
	idx, ok := g.picker.Take()
	if !ok {
		return g.baselines[g.rng.IntN(len(g.baselines))]
	}
	g.picker.Reweight(idx, g.weights[idx])
	return g.baselines[idx]
}

func (g *ListingGenerator) chance(threshold float64) bool {
	return g.rng.Float64() > threshold
}

func (g *ListingGenerator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.rng.Float64()
}

func (g *ListingGenerator) gauss(sigma float64) float64 {
	return g.rng.NormFloat64() * sigma
}

// randInt is inclusive of both ends.
func (g *ListingGenerator) randInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *ListingGenerator) choose(labels []string) string {
	return labels[g.rng.IntN(len(labels))]
}

// Next draws one listing.
func (g *ListingGenerator) Next() domain.SyntheticListing {
	entry := g.pick()
	base := entry.ProjectedPrice

	jitter := g.uniform(-0.3, 0.3)
	if g.exact {
		jitter = 0
	}
	dist := math.Max(0.3, locational.DistrictDistanceKm(entry.District)+jitter)

	l := domain.SyntheticListing{
		Neighborhood:     entry.Neighborhood,
		District:         entry.District,
		BaselinePriceSqm: int(base),
	}

	l.Sqm = max(35, min(280, int(g.sqm.Rand())))
	l.Bedrooms = max(1, int(math.RoundToEven(float64(l.Sqm)/sqmPerBedroom[g.rng.IntN(len(sqmPerBedroom))])))
	l.Bathrooms = max(1, min(4, int(math.Ceil(float64(l.Bedrooms)/1.5))))

	l.Floor = int(g.floor.Rand())
	l.FloorPlan = g.choose(floorPlans)
	l.BuildingType = g.choose(buildingTypes)

	l.YearBuilt = int(g.yearBuilt.Rand())
	l.YearRenovated = l.YearBuilt
	if g.chance(0.4) {
		l.YearRenovated = g.randInt(max(l.YearBuilt, earliestRenovated), g.currentYear)
	}
	l.Condition = conditions[int(g.condition.Rand())]
	l.MaterialQuality = g.choose(materials)

	l.HasElevator = l.Floor <= 1 || g.chance(0.2)
	l.HasAC = g.chance(0.25)
	l.HasFireplace = g.chance(0.7)
	l.HasBalcony = g.chance(0.5)
	l.HasTerrace = g.chance(0.65) || l.Floor == 0 || l.Floor == topFloor
	if l.HasTerrace {
		l.TerraceSqm = int(g.terrace.Rand()) + 5
	}
	l.ParkingSpots = int(g.parking.Rand())
	l.HasPool = g.chance(0.8)
	l.HasGym = g.chance(0.6)
	l.HasDoorman = g.chance(0.5)

	hoa := float64(g.randInt(40, 250)) * (1 + domain.Flag(l.HasPool)*0.3 + domain.Flag(l.HasGym)*0.2)
	l.HOAMonthly = locational.Round(hoa, 2)
	l.PropertyTaxRate = locational.Round(g.uniform(0.8, 1.2), 2)

	noise := locational.Noise{
		Metro:     g.gauss(2),
		Walk:      g.gauss(5),
		Safety:    g.gauss(6),
		Amenities: g.gauss(6),
	}
	if g.exact {
		noise = locational.Noise{}
	}
	scores := locational.ComputeScores(dist, entry.District, noise)
	l.DistanceMetroMin = scores.DistanceMetroMin
	l.WalkScore = scores.WalkScore
	l.SafetyScore = scores.SafetyScore
	l.AmenitiesScore = scores.AmenitiesScore
	l.DistanceCBDKm = locational.Round(dist, 2)

	l.Price = int(ListingPrice(&l, base, dist, g.uniform(0.94, 1.08)))
	return l
}

// ListingPrice applies the price adjustment chain. Order matters: multiplicative
// and additive steps do not commute.
func ListingPrice(l *domain.SyntheticListing, basePriceSqm, distKm, noise float64) float64 {
	price := basePriceSqm * float64(l.Sqm)

	switch {
	case l.Floor == 0:
		price *= 0.92
	case l.Floor >= 9:
		price *= 1.18
	default:
		price *= 1 + float64(l.Floor)*0.006
	}

	price *= conditionFactor[l.Condition] * materialFactor[l.MaterialQuality]

	if !l.HasElevator && l.Floor > 2 {
		price *= 0.88
	}
	if l.HasAC {
		price += 4000
	}
	if l.HasFireplace {
		price += 2500
	}
	if l.HasBalcony {
		price += 1500
	}
	if l.HasTerrace {
		price += float64(l.TerraceSqm) * basePriceSqm * 0.45
	}
	price += float64(l.ParkingSpots) * 28000
	if l.HasPool {
		price += 18000
	}
	if l.HasGym {
		price += 8000
	}
	if l.HasDoorman {
		price += 6000
	}

	price *= 1.08 - math.Min(0.5, distKm*0.015)
	price *= 1.05 - math.Min(0.4, float64(l.DistanceMetroMin)*0.01)
	price *= 1 + float64(l.WalkScore-70)/700
	price *= 1 + float64(l.SafetyScore-70)/900
	price *= 1 + float64(l.AmenitiesScore-75)/800
	return price * noise
}
