package dto

import (
	"time"

	"github.com/google/uuid"

	"apartment-valuation-service/internal/core/domain"
)

// ============================================================================
// Request DTOs
// ============================================================================

// EstimateRequest is the body of POST /estimates. Omitted numbers are imputed.
type EstimateRequest struct {
	Address         string   `json:"address"`
	Neighborhood    string   `json:"neighborhood"`
	Sqm             float64  `json:"sqm"`
	Bedrooms        *float64 `json:"bedrooms"`
	Bathrooms       *float64 `json:"bathrooms"`
	Floor           *float64 `json:"floor"`
	YearBuilt       *float64 `json:"year_built"`
	YearRenovated   *float64 `json:"year_renovated"`
	Condition       string   `json:"condition"`
	MaterialQuality string   `json:"material_quality"`
	FloorPlan       string   `json:"floor_plan"`
	BuildingType    string   `json:"building_type"`
	TerraceSqm      *float64 `json:"terrace_sqm"`
	ParkingSpots    *float64 `json:"parking_spots"`
	HasElevator     bool     `json:"has_elevator"`
	HasAC           bool     `json:"has_ac"`
	HasFireplace    bool     `json:"has_fireplace"`
	HasBalcony      bool     `json:"has_balcony"`
	HasTerrace      bool     `json:"has_terrace"`
	HasPool         bool     `json:"has_pool"`
	HasGym          bool     `json:"has_gym"`
	HasDoorman      bool     `json:"has_doorman"`
}

func ToEstimateRequest(req *EstimateRequest) *domain.EstimateRequest {
	return &domain.EstimateRequest{
		Address:         req.Address,
		Neighborhood:    req.Neighborhood,
		Sqm:             req.Sqm,
		Bedrooms:        req.Bedrooms,
		Bathrooms:       req.Bathrooms,
		Floor:           req.Floor,
		YearBuilt:       req.YearBuilt,
		YearRenovated:   req.YearRenovated,
		Condition:       req.Condition,
		MaterialQuality: req.MaterialQuality,
		FloorPlan:       req.FloorPlan,
		BuildingType:    req.BuildingType,
		TerraceSqm:      req.TerraceSqm,
		ParkingSpots:    req.ParkingSpots,
		HasElevator:     req.HasElevator,
		HasAC:           req.HasAC,
		HasFireplace:    req.HasFireplace,
		HasBalcony:      req.HasBalcony,
		HasTerrace:      req.HasTerrace,
		HasPool:         req.HasPool,
		HasGym:          req.HasGym,
		HasDoorman:      req.HasDoorman,
	}
}

// ============================================================================
// Response DTOs
// ============================================================================

type EstimateResponse struct {
	EstimatedPrice float64         `json:"estimated_price"`
	PricePerSqm    float64         `json:"price_per_sqm"`
	Details        EstimateDetails `json:"details"`
}

type EstimateDetails struct {
	InferredNeighborhood string              `json:"inferred_neighborhood"`
	District             string              `json:"district"`
	Coordinates          *domain.Coordinates `json:"coordinates,omitempty"`
	ModelUsed            string              `json:"model_used"`
	ModelRunID           string              `json:"model_run_id,omitempty"`
	InputFeatures        map[string]float64  `json:"input_features"`
}

func ToEstimateResponse(e *domain.Estimate) EstimateResponse {
	return EstimateResponse{
		EstimatedPrice: e.EstimatedPrice,
		PricePerSqm:    e.PricePerSqm,
		Details: EstimateDetails{
			InferredNeighborhood: e.InferredNeighborhood,
			District:             e.District,
			Coordinates:          e.Coordinates,
			ModelUsed:            string(e.ModelUsed),
			ModelRunID:           e.ModelRunID,
			InputFeatures:        e.InputFeatures,
		},
	}
}

type EstimateRecordResponse struct {
	ID             uuid.UUID           `json:"id"`
	CreatedAt      time.Time           `json:"created_at"`
	Address        string              `json:"address,omitempty"`
	Neighborhood   string              `json:"neighborhood"`
	EstimatedPrice float64             `json:"estimated_price"`
	PricePerSqm    float64             `json:"price_per_sqm"`
	ModelUsed      string              `json:"model_used"`
	ModelRunID     string              `json:"model_run_id,omitempty"`
	Coordinates    *domain.Coordinates `json:"coordinates,omitempty"`
	RequestID      string              `json:"request_id,omitempty"`
}

type ListEstimatesResponse struct {
	Items []EstimateRecordResponse `json:"items"`
	Total int                      `json:"total"`
}

func ToListEstimatesResponse(recs []*domain.EstimateRecord) ListEstimatesResponse {
	items := make([]EstimateRecordResponse, 0, len(recs))
	for _, r := range recs {
		items = append(items, EstimateRecordResponse{
			ID:             r.ID,
			CreatedAt:      r.CreatedAt,
			Address:        r.Address,
			Neighborhood:   r.Neighborhood,
			EstimatedPrice: r.EstimatedPrice,
			PricePerSqm:    r.PricePerSqm,
			ModelUsed:      string(r.ModelUsed),
			ModelRunID:     r.ModelRunID,
			Coordinates:    r.Coordinates,
			RequestID:      r.RequestID,
		})
	}
	return ListEstimatesResponse{Items: items, Total: len(items)}
}

type NeighborhoodResponse struct {
	Neighborhood   string  `json:"neighborhood"`
	District       string  `json:"district"`
	PriceAnchor    float64 `json:"price_2015_eur_sqm"`
	ProjectedPrice float64 `json:"price_2025_eur_sqm"`
	SlopePerYear   float64 `json:"slope_per_year"`
}

type ListNeighborhoodsResponse struct {
	Items []NeighborhoodResponse `json:"items"`
	Total int                    `json:"total"`
}

func ToListNeighborhoodsResponse(records []domain.NeighborhoodBaseline) ListNeighborhoodsResponse {
	items := make([]NeighborhoodResponse, 0, len(records))
	for _, r := range records {
		items = append(items, NeighborhoodResponse{
			Neighborhood:   r.Neighborhood,
			District:       r.District,
			PriceAnchor:    r.PriceAnchor,
			ProjectedPrice: r.ProjectedPrice,
			SlopePerYear:   r.SlopePerYear,
		})
	}
	return ListNeighborhoodsResponse{Items: items, Total: len(items)}
}
