package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ModelUsed reports which estimator produced a price.
type ModelUsed string

const (
	ModelUsedModel    ModelUsed = "model"
	ModelUsedFallback ModelUsed = "fallback"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// EstimateRequest carries the declared features of an apartment.
// Nil fields are imputed.
type EstimateRequest struct {
	Address         string   `json:"address,omitempty"`
	Neighborhood    string   `json:"neighborhood,omitempty"`
	Sqm             float64  `json:"sqm"`
	Bedrooms        *float64 `json:"bedrooms,omitempty"`
	Bathrooms       *float64 `json:"bathrooms,omitempty"`
	Floor           *float64 `json:"floor,omitempty"`
	YearBuilt       *float64 `json:"year_built,omitempty"`
	YearRenovated   *float64 `json:"year_renovated,omitempty"`
	Condition       string   `json:"condition,omitempty"`
	MaterialQuality string   `json:"material_quality,omitempty"`
	FloorPlan       string   `json:"floor_plan,omitempty"`
	BuildingType    string   `json:"building_type,omitempty"`
	TerraceSqm      *float64 `json:"terrace_sqm,omitempty"`
	ParkingSpots    *float64 `json:"parking_spots,omitempty"`
	HasElevator     bool     `json:"has_elevator"`
	HasAC           bool     `json:"has_ac"`
	HasFireplace    bool     `json:"has_fireplace"`
	HasBalcony      bool     `json:"has_balcony"`
	HasTerrace      bool     `json:"has_terrace"`
	HasPool         bool     `json:"has_pool"`
	HasGym          bool     `json:"has_gym"`
	HasDoorman      bool     `json:"has_doorman"`
}

func (r *EstimateRequest) Validate() error {
	if r.Sqm <= 0 {
		return ErrInvalidSize
	}
	return nil
}

// Estimate is the reconstructor's answer.
type Estimate struct {
	EstimatedPrice       float64
	PricePerSqm          float64
	InferredNeighborhood string
	District             string
	Coordinates          *Coordinates
	ModelUsed            ModelUsed
	ModelRunID           string
	InputFeatures        map[string]float64
}

// EstimateRecord is the audit row persisted for every estimate.
type EstimateRecord struct {
	ID             uuid.UUID          `json:"id"`
	CreatedAt      time.Time          `json:"created_at"`
	Address        string             `json:"address,omitempty"`
	Neighborhood   string             `json:"neighborhood"`
	EstimatedPrice float64            `json:"estimated_price"`
	PricePerSqm    float64            `json:"price_per_sqm"`
	ModelUsed      ModelUsed          `json:"model_used"`
	ModelRunID     string             `json:"model_run_id,omitempty"`
	Coordinates    *Coordinates       `json:"coordinates,omitempty"`
	Features       map[string]float64 `json:"features"`
	Request        *EstimateRequest   `json:"request,omitempty"`
	RequestID      string             `json:"request_id,omitempty"`
}

type requestIDKey struct{}

// ContextWithRequestID tags ctx with the id of the inbound request.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns "" when ctx carries no request id.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
