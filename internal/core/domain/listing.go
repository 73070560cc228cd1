package domain

import (
	"strconv"
)

// ============================================================================
// Raw listing columns
// ============================================================================

const (
	ColNeighborhood     = "neighborhood"
	ColDistrict         = "district"
	ColBaselinePriceSqm = "baseline_price_sqm"
	ColPrice            = "price"
	ColSqm              = "sqm"
	ColBedrooms         = "bedrooms"
	ColBathrooms        = "bathrooms"
	ColFloor            = "floor"
	ColFloorPlan        = "floor_plan"
	ColBuildingType     = "building_type"
	ColYearBuilt        = "year_built"
	ColYearRenovated    = "year_renovated"
	ColCondition        = "condition"
	ColMaterialQuality  = "material_quality"
	ColHasElevator      = "has_elevator"
	ColHasAC            = "has_ac"
	ColHasFireplace     = "has_fireplace"
	ColHasBalcony       = "has_balcony"
	ColHasTerrace       = "has_terrace"
	ColTerraceSqm       = "terrace_sqm"
	ColParkingSpots     = "parking_spots"
	ColHasPool          = "has_pool"
	ColHasGym           = "has_gym"
	ColHasDoorman       = "has_doorman"
	ColHOAMonthly       = "hoa_monthly_eur"
	ColPropertyTaxRate  = "property_tax_rate_pct"
	ColDistanceCBD      = "distance_cbd_km"
	ColDistanceMetro    = "distance_metro_min"
	ColWalkScore        = "walk_score"
	ColSafetyScore      = "safety_score"
	ColAmenitiesScore   = "amenities_score"
	ColRenovationYrsAgo = "renovation_years_ago"
	ColNeighborhoodCode = "neighborhood_encoded"
	ColConditionCode    = "condition_encoded"
	ColMaterialCode     = "material_encoded"
	ColFloorPlanCode    = "floor_plan_encoded"
	ColBuildingTypeCode = "building_type_encoded"
)

// Category labels.
const (
	UnknownLabel        = "Unknown"
	DefaultFloorPlan    = "Traditional"
	DefaultBuildingType = "Condo"
	DefaultCondition    = "Good"
	DefaultMaterial     = "Standard"
)

// RawListingHeader is the CSV header written by the generator.
var RawListingHeader = []string{
	ColNeighborhood, ColDistrict, ColBaselinePriceSqm, ColPrice, ColSqm, ColBedrooms,
	ColBathrooms, ColFloor, ColFloorPlan, ColBuildingType, ColYearBuilt, ColYearRenovated,
	ColCondition, ColMaterialQuality, ColHasElevator, ColHasAC, ColHasFireplace, ColHasBalcony,
	ColHasTerrace, ColTerraceSqm, ColParkingSpots, ColHasPool, ColHasGym, ColHasDoorman,
	ColHOAMonthly, ColPropertyTaxRate, ColDistanceCBD, ColDistanceMetro, ColWalkScore,
	ColSafetyScore, ColAmenitiesScore,
}

// SyntheticListing is one generated sample. It has no identity beyond its row position.
type SyntheticListing struct {
	Neighborhood     string
	District         string
	BaselinePriceSqm int
	Price            int
	Sqm              int
	Bedrooms         int
	Bathrooms        int
	Floor            int
	FloorPlan        string
	BuildingType     string
	YearBuilt        int
	YearRenovated    int
	Condition        string
	MaterialQuality  string
	HasElevator      bool
	HasAC            bool
	HasFireplace     bool
	HasBalcony       bool
	HasTerrace       bool
	TerraceSqm       int
	ParkingSpots     int
	HasPool          bool
	HasGym           bool
	HasDoorman       bool
	HOAMonthly       float64
	PropertyTaxRate  float64
	DistanceCBDKm    float64
	DistanceMetroMin int
	WalkScore        int
	SafetyScore      int
	AmenitiesScore   int
}

// Record renders the listing in RawListingHeader order.
func (l *SyntheticListing) Record() []string {
	return []string{
		l.Neighborhood,
		l.District,
		strconv.Itoa(l.BaselinePriceSqm),
		strconv.Itoa(l.Price),
		strconv.Itoa(l.Sqm),
		strconv.Itoa(l.Bedrooms),
		strconv.Itoa(l.Bathrooms),
		strconv.Itoa(l.Floor),
		l.FloorPlan,
		l.BuildingType,
		strconv.Itoa(l.YearBuilt),
		strconv.Itoa(l.YearRenovated),
		l.Condition,
		l.MaterialQuality,
		flag(l.HasElevator),
		flag(l.HasAC),
		flag(l.HasFireplace),
		flag(l.HasBalcony),
		flag(l.HasTerrace),
		strconv.Itoa(l.TerraceSqm),
		strconv.Itoa(l.ParkingSpots),
		flag(l.HasPool),
		flag(l.HasGym),
		flag(l.HasDoorman),
		strconv.FormatFloat(l.HOAMonthly, 'f', -1, 64),
		strconv.FormatFloat(l.PropertyTaxRate, 'f', -1, 64),
		strconv.FormatFloat(l.DistanceCBDKm, 'f', -1, 64),
		strconv.Itoa(l.DistanceMetroMin),
		strconv.Itoa(l.WalkScore),
		strconv.Itoa(l.SafetyScore),
		strconv.Itoa(l.AmenitiesScore),
	}
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Flag converts a boolean amenity to its numeric feature value.
func Flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ProcessedFeatureColumns is the model input order produced by the processor.
// The target column ColPrice follows them in processed CSVs.
var ProcessedFeatureColumns = []string{
	ColNeighborhoodCode, ColSqm, ColBedrooms, ColBathrooms, ColFloor, ColYearBuilt,
	ColRenovationYrsAgo, ColConditionCode, ColMaterialCode, ColFloorPlanCode,
	ColBuildingTypeCode, ColHasElevator, ColHasAC, ColHasFireplace, ColHasBalcony,
	ColHasTerrace, ColTerraceSqm, ColParkingSpots, ColHasPool, ColHasGym, ColHasDoorman,
	ColHOAMonthly, ColPropertyTaxRate, ColDistanceCBD, ColDistanceMetro, ColWalkScore,
	ColSafetyScore, ColAmenitiesScore,
}
