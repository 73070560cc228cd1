package dto

import (
	"time"

	"apartment-valuation-service/internal/core/domain"
)

// ============================================================================
// Request DTOs
// ============================================================================

type ProcessRequest struct {
	RawKey string `json:"raw_key"`
}

// RunRequest selects one training run.
type RunRequest struct {
	RunID string `json:"run_id" binding:"required"`
}

type PromoteRequest struct {
	RunID string `json:"run_id" binding:"required"`
	Force bool   `json:"force"`
}

// ============================================================================
// Response DTOs
// ============================================================================

type BaselineResponse struct {
	Key           string `json:"key"`
	Neighborhoods int    `json:"neighborhoods"`
}

type PointerResponse struct {
	RunID       string         `json:"run_id"`
	ModelKey    string         `json:"model_key"`
	MetadataKey string         `json:"metadata_key"`
	Metrics     domain.Metrics `json:"metrics"`
	Version     int64          `json:"version"`
	PromotedAt  time.Time      `json:"promoted_at"`
}

func ToPointerResponse(p *domain.ProductionPointer) *PointerResponse {
	if p == nil {
		return nil
	}
	return &PointerResponse{
		RunID:       p.RunID,
		ModelKey:    p.ModelKey,
		MetadataKey: p.MetadataKey,
		Metrics:     p.Metrics,
		Version:     p.Version,
		PromotedAt:  p.PromotedAt,
	}
}

type ComparisonResponse struct {
	RunID            string         `json:"run_id"`
	IsBetter         bool           `json:"is_better"`
	Metrics          domain.Metrics `json:"metrics"`
	Challenger       domain.Metrics `json:"challenger"`
	IncumbentVersion int64          `json:"incumbent_version"`
	IncumbentRunID   string         `json:"incumbent_run_id,omitempty"`
}

type PromoteResponse struct {
	Promoted   bool                `json:"promoted"`
	Comparison *ComparisonResponse `json:"comparison,omitempty"`
	Pointer    *PointerResponse    `json:"pointer,omitempty"`
}

type RunResponse struct {
	RunID       string         `json:"run_id"`
	ModelKey    string         `json:"model_key"`
	MetadataKey string         `json:"metadata_key"`
	Metrics     domain.Metrics `json:"metrics"`
	CreatedAt   time.Time      `json:"created_at"`
	Promoted    bool           `json:"promoted"`
}

type ListRunsResponse struct {
	Items []RunResponse `json:"items"`
	Total int           `json:"total"`
}

func ToRunResponse(r *domain.TrainingRun) RunResponse {
	return RunResponse{
		RunID:       r.RunID,
		ModelKey:    r.ModelKey,
		MetadataKey: r.MetadataKey,
		Metrics:     r.Metrics,
		CreatedAt:   r.CreatedAt,
		Promoted:    r.Promoted,
	}
}

func ToListRunsResponse(runs []*domain.TrainingRun) ListRunsResponse {
	items := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		items = append(items, ToRunResponse(r))
	}
	return ListRunsResponse{Items: items, Total: len(items)}
}
