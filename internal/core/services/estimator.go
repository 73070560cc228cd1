package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"apartment-valuation-service/internal/core/domain"
	"apartment-valuation-service/internal/core/locational"
	ports "apartment-valuation-service/internal/core/ports/output"
)

// Inference-time defaults for attributes the request does not carry.
const (
	defaultFloor              = 2
	defaultYearBuilt          = 1990
	defaultRenovationYearsAgo = 5
	defaultBedrooms           = 2
	defaultBathrooms          = 1
	defaultTerraceSqm         = 15
	defaultHOA                = 100
	defaultTaxRate            = 1.0
	defaultDistrict           = "2"
)

// ModelProvider yields the production model; ModelCache implements it.
type ModelProvider interface {
	Get(ctx context.Context) (*LoadedModel, error)
}

type EstimatorOptions struct {
	DefaultNeighborhood string
	GeocodeTimeout      time.Duration
	AuditTimeout        time.Duration
}

func DefaultEstimatorOptions() EstimatorOptions {
	return EstimatorOptions{
		DefaultNeighborhood: "la Dreta de l'Eixample",
		GeocodeTimeout:      5 * time.Second,
		AuditTimeout:        5 * time.Second,
	}
}

// EstimatorService reconstructs model features from a sparse request and prices it.
type EstimatorService struct {
	models    ModelProvider
	store     ports.ObjectStore
	geocoder  ports.Geocoder           // optional
	estimates ports.EstimateRepository // optional
	locator   *locational.Locator
	opts      EstimatorOptions
	now       func() time.Time

	mu       sync.Mutex
	baseline *domain.BaselineTable

	audits sync.WaitGroup
}

func NewEstimatorService(
	models ModelProvider,
	store ports.ObjectStore,
	geocoder ports.Geocoder,
	estimates ports.EstimateRepository,
	locator *locational.Locator,
	opts EstimatorOptions,
) *EstimatorService {
	d := DefaultEstimatorOptions()
	if opts.DefaultNeighborhood == "" {
		opts.DefaultNeighborhood = d.DefaultNeighborhood
	}
	if opts.GeocodeTimeout <= 0 {
		opts.GeocodeTimeout = d.GeocodeTimeout
	}
	if opts.AuditTimeout <= 0 {
		opts.AuditTimeout = d.AuditTimeout
	}
	if locator == nil {
		locator = locational.DefaultLocator()
	}
	return &EstimatorService{
		models:    models,
		store:     store,
		geocoder:  geocoder,
		estimates: estimates,
		locator:   locator,
		opts:      opts,
		now:       time.Now,
	}
}

// Location is where the reconstructor believes the apartment is.
type Location struct {
	Neighborhood string
	District     string
	Coordinates  *domain.Coordinates
	DistanceKm   float64
}

func (s *EstimatorService) Estimate(ctx context.Context, req *domain.EstimateRequest) (*domain.Estimate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	table := s.baselineTable(ctx)
	loc := s.resolveLocation(ctx, req, table)

	var meta *domain.Metadata
	model, modelErr := s.models.Get(ctx)
	if modelErr == nil {
		meta = &model.Metadata
	}
	features := ReconstructFeatures(req, loc, meta, s.now().Year())

	est := &domain.Estimate{
		InferredNeighborhood: loc.Neighborhood,
		District:             loc.District,
		Coordinates:          loc.Coordinates,
		InputFeatures:        features,
	}

	var prediction float64
	if modelErr == nil {
		prediction = model.Forest.Predict(FeatureVector(features, meta.FeatureColumns))
		est.ModelUsed = domain.ModelUsedModel
		est.ModelRunID = model.Pointer.RunID
	} else {
		if table.Len() == 0 {
			return nil, domain.ErrNoEstimator
		}
		log.WithError(modelErr).Debug("estimating with baseline fallback")
		base := table.MeanProjectedPrice()
		if b, ok := table.Lookup(loc.Neighborhood); ok {
			base = b.ProjectedPrice
		}
		prediction = base * req.Sqm
		est.ModelUsed = domain.ModelUsedFallback
	}

	est.EstimatedPrice = math.Round(prediction)
	est.PricePerSqm = math.Round(prediction / req.Sqm)

	s.audit(ctx, req, est)
	return est, nil
}

// ReconstructFeatures fills every processed feature column from the request,
// imputing what is missing. meta may be nil, in which case categorical codes are 0.
func ReconstructFeatures(req *domain.EstimateRequest, loc Location, meta *domain.Metadata, currentYear int) map[string]float64 {
	if meta == nil {
		meta = &domain.Metadata{}
	}
	scores := locational.ComputeScores(loc.DistanceKm, loc.District, locational.Noise{})

	renovationYearsAgo := float64(defaultRenovationYearsAgo)
	if req.YearRenovated != nil {
		renovationYearsAgo = math.Max(0, float64(currentYear)-*req.YearRenovated)
	}
	terrace := 0.0
	if req.HasTerrace {
		terrace = valueOr(req.TerraceSqm, defaultTerraceSqm)
	}

	return map[string]float64{
		domain.ColNeighborhoodCode: meta.NeighborhoodMap.Encode(loc.Neighborhood),
		domain.ColSqm:              req.Sqm,
		domain.ColBedrooms:         valueOr(req.Bedrooms, defaultBedrooms),
		domain.ColBathrooms:        valueOr(req.Bathrooms, defaultBathrooms),
		domain.ColFloor:            valueOr(req.Floor, defaultFloor),
		domain.ColYearBuilt:        valueOr(req.YearBuilt, defaultYearBuilt),
		domain.ColRenovationYrsAgo: renovationYearsAgo,
		domain.ColConditionCode:    meta.ConditionMap.Encode(labelOr(req.Condition, domain.DefaultCondition)),
		domain.ColMaterialCode:     meta.MaterialMap.Encode(labelOr(req.MaterialQuality, domain.DefaultMaterial)),
		domain.ColFloorPlanCode:    meta.FloorPlanMap.Encode(labelOr(req.FloorPlan, domain.DefaultFloorPlan)),
		domain.ColBuildingTypeCode: meta.BuildingTypeMap.Encode(labelOr(req.BuildingType, domain.DefaultBuildingType)),
		domain.ColHasElevator:      domain.Flag(req.HasElevator),
		domain.ColHasAC:            domain.Flag(req.HasAC),
		domain.ColHasFireplace:     domain.Flag(req.HasFireplace),
		domain.ColHasBalcony:       domain.Flag(req.HasBalcony),
		domain.ColHasTerrace:       domain.Flag(req.HasTerrace),
		domain.ColTerraceSqm:       terrace,
		domain.ColParkingSpots:     valueOr(req.ParkingSpots, 0),
		domain.ColHasPool:          domain.Flag(req.HasPool),
		domain.ColHasGym:           domain.Flag(req.HasGym),
		domain.ColHasDoorman:       domain.Flag(req.HasDoorman),
		domain.ColHOAMonthly:       defaultHOA,
		domain.ColPropertyTaxRate:  defaultTaxRate,
		domain.ColDistanceCBD:      locational.Round(loc.DistanceKm, 2),
		domain.ColDistanceMetro:    float64(scores.DistanceMetroMin),
		domain.ColWalkScore:        float64(scores.WalkScore),
		domain.ColSafetyScore:      float64(scores.SafetyScore),
		domain.ColAmenitiesScore:   float64(scores.AmenitiesScore),
	}
}

// FeatureVector orders features by columns; columns it does not know become 0.
func FeatureVector(features map[string]float64, columns []string) []float64 {
	out := make([]float64, len(columns))
	for i, c := range columns {
		out[i] = features[c]
	}
	return out
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func labelOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// resolveLocation prefers a geocoded address, then the declared neighbourhood,
// then the configured default.
func (s *EstimatorService) resolveLocation(ctx context.Context, req *domain.EstimateRequest, table *domain.BaselineTable) Location {
	var loc Location
	if req.Address != "" && s.geocoder != nil {
		gctx, cancel := context.WithTimeout(ctx, s.opts.GeocodeTimeout)
		coords, err := s.geocoder.Geocode(gctx, req.Address)
		cancel()
		switch {
		case err == nil:
			loc.Coordinates = coords
			if c, ok := s.locator.Nearest(locational.Coord{Lat: coords.Lat, Lon: coords.Lon}); ok {
				loc.Neighborhood = c.Neighborhood
				loc.District = c.District
			}
		case errors.Is(err, domain.ErrGeocodeMiss):
			log.WithField("address", req.Address).Debug("address not geocoded")
		default:
			log.WithError(err).Warn("geocoding failed, using declared neighbourhood")
		}
	}

	if loc.Neighborhood == "" {
		loc.Neighborhood = NormalizeName(req.Neighborhood)
	}
	if loc.Neighborhood == "" {
		loc.Neighborhood = s.opts.DefaultNeighborhood
	}

	centroid, hasCentroid := s.locator.Lookup(loc.Neighborhood)
	if b, ok := table.Lookup(loc.Neighborhood); ok && b.District != "" {
		loc.District = b.District
	} else if loc.District == "" && hasCentroid {
		loc.District = centroid.District
	}
	if loc.District == "" {
		loc.District = defaultDistrict
	}

	switch {
	case loc.Coordinates != nil:
		loc.DistanceKm = locational.DistanceToCenterKm(locational.Coord{Lat: loc.Coordinates.Lat, Lon: loc.Coordinates.Lon})
	case hasCentroid:
		loc.DistanceKm = locational.DistanceToCenterKm(centroid.Coord)
	default:
		loc.DistanceKm = locational.DistrictDistanceKm(loc.District)
	}
	return loc
}

// baselineTable lazily loads the baseline; a missing table yields nil.
func (s *EstimatorService) baselineTable(ctx context.Context) *domain.BaselineTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseline != nil {
		return s.baseline
	}
	records, err := LoadBaselines(ctx, s.store)
	if err != nil {
		if !errors.Is(err, domain.ErrNoBaseline) {
			log.WithError(err).Warn("failed to load baseline table")
		}
		return nil
	}
	s.baseline = domain.NewBaselineTable(records)
	return s.baseline
}

// ReloadBaseline drops the cached baseline table.
func (s *EstimatorService) ReloadBaseline() {
	s.mu.Lock()
	s.baseline = nil
	s.mu.Unlock()
}

func (s *EstimatorService) audit(ctx context.Context, req *domain.EstimateRequest, est *domain.Estimate) {
	if s.estimates == nil {
		return
	}
	snapshot := *req
	rec := &domain.EstimateRecord{
		ID:             uuid.New(),
		CreatedAt:      s.now().UTC(),
		Address:        req.Address,
		Neighborhood:   est.InferredNeighborhood,
		EstimatedPrice: est.EstimatedPrice,
		PricePerSqm:    est.PricePerSqm,
		ModelUsed:      est.ModelUsed,
		ModelRunID:     est.ModelRunID,
		Coordinates:    est.Coordinates,
		Features:       est.InputFeatures,
		Request:        &snapshot,
		RequestID:      domain.RequestIDFromContext(ctx),
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.AuditTimeout)
	s.audits.Add(1)
	go func() {
		defer s.audits.Done()
		defer cancel()
		if err := s.estimates.Create(actx, rec); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"estimate_id": rec.ID,
				"request_id":  rec.RequestID,
			}).Warn("failed to persist estimate")
		}
	}()
}

// Wait blocks until pending audit writes finish.
func (s *EstimatorService) Wait() {
	s.audits.Wait()
}

func (s *EstimatorService) ListEstimates(ctx context.Context, limit int) ([]*domain.EstimateRecord, error) {
	if s.estimates == nil {
		return []*domain.EstimateRecord{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	return s.estimates.ListRecent(ctx, limit)
}

func (s *EstimatorService) ListNeighborhoods(ctx context.Context) ([]domain.NeighborhoodBaseline, error) {
	table := s.baselineTable(ctx)
	if table.Len() == 0 {
		return nil, domain.ErrNoBaseline
	}
	return table.Records, nil
}
