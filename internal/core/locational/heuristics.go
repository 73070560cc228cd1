// Package locational holds the closed-form locational heuristics shared by the
// synthetic listing generator and the inference feature reconstructor. Both
// sides must call these functions.
package locational

import (
	"math"
)

const earthRadiusKm = 6371.0

// CityCenter is the central business district reference point.
var CityCenter = Coord{Lat: 41.387, Lon: 2.170}

// districtCenters are approximate district centroids keyed by district number.
var districtCenters = map[string]Coord{
	"1":  {Lat: 41.380, Lon: 2.174},
	"2":  {Lat: 41.391, Lon: 2.164},
	"3":  {Lat: 41.373, Lon: 2.149},
	"4":  {Lat: 41.385, Lon: 2.133},
	"5":  {Lat: 41.401, Lon: 2.139},
	"6":  {Lat: 41.407, Lon: 2.154},
	"7":  {Lat: 41.429, Lon: 2.153},
	"8":  {Lat: 41.447, Lon: 2.177},
	"9":  {Lat: 41.435, Lon: 2.197},
	"10": {Lat: 41.417, Lon: 2.216},
}

// districtSafetyBias is the baseline safety score per district.
var districtSafetyBias = map[string]float64{
	"1": 60, "2": 75, "3": 65, "4": 80, "5": 85,
	"6": 78, "7": 70, "8": 60, "9": 68, "10": 72,
}

const defaultSafetyBias = 70

type Coord struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// HaversineKm is the great-circle distance between two points.
func HaversineKm(a, b Coord) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistrictCenter returns the district centroid, or the city centre when unknown.
func DistrictCenter(district string) Coord {
	if c, ok := districtCenters[district]; ok {
		return c
	}
	return CityCenter
}

// DistrictDistanceKm is the district centroid's distance to the centre, rounded to 2 dp.
func DistrictDistanceKm(district string) float64 {
	return Round(HaversineKm(DistrictCenter(district), CityCenter), 2)
}

// DistanceToCenterKm measures a point against the city centre.
func DistanceToCenterKm(c Coord) float64 {
	return HaversineKm(c, CityCenter)
}

// ============================================================================
// Scores
// ============================================================================

// Scores are the derived locational features.
type Scores struct {
	WalkScore        int
	SafetyScore      int
	AmenitiesScore   int
	DistanceMetroMin int
}

// Noise perturbs each score's base before clamping. The generator samples it;
// the reconstructor passes the zero value.
type Noise struct {
	Walk      float64
	Safety    float64
	Amenities float64
	Metro     float64
}

func WalkBase(distKm float64) float64 {
	return math.Max(55, 95-distKm*4.5)
}

func SafetyBase(district string) float64 {
	if b, ok := districtSafetyBias[district]; ok {
		return b
	}
	return defaultSafetyBias
}

func AmenitiesBase(distKm float64) float64 {
	return 82 - distKm*4
}

func MetroBase(distKm float64) float64 {
	return 5 - distKm*0.3
}

// ComputeScores evaluates every heuristic for a district and distance to centre.
func ComputeScores(distKm float64, district string, n Noise) Scores {
	return Scores{
		WalkScore:        int(clamp(WalkBase(distKm)+n.Walk, 40, 100)),
		SafetyScore:      int(clamp(SafetyBase(district)+n.Safety, 35, 95)),
		AmenitiesScore:   int(clamp(AmenitiesBase(distKm)+n.Amenities, 45, 95)),
		DistanceMetroMin: max(1, int(MetroBase(distKm)+n.Metro)),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
