package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// RunIDLayout formats generation timestamps; lexical order equals time order.
const RunIDLayout = "2006-01-02-15-04-05"

// ============================================================================
// Artifact keys
// ============================================================================

const (
	BaselineKey     = "baseline/neighborhood_prices.json"
	LocatorKey      = "reference/neighborhood_locator.json"
	RawPrefix       = "raw/"
	ProcessedPrefix = "processed/"
	ModelsPrefix    = "models/"
)

func NewRunID(t time.Time) string {
	return t.UTC().Format(RunIDLayout)
}

// ValidateRunID checks that id is a generation timestamp.
func ValidateRunID(id string) error {
	if _, err := time.Parse(RunIDLayout, id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return nil
}

// RunIDFromKey extracts the run id from keys shaped "<prefix>/<run>/<file>".
func RunIDFromKey(key string) (string, error) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: key %q", ErrInvalidRunID, key)
	}
	id := parts[len(parts)-2]
	return id, ValidateRunID(id)
}

func RawDatasetKey(runID string) string { return path.Join("raw", runID, "housing_data.csv") }
func TrainKey(runID string) string      { return path.Join("processed", runID, "train.csv") }
func TestKey(runID string) string       { return path.Join("processed", runID, "test.csv") }
func ProcessedMetadataKey(runID string) string {
	return path.Join("processed", runID, "metadata.json")
}
func ModelKey(runID string) string         { return path.Join("models", runID, "model.json") }
func ModelMetadataKey(runID string) string { return path.Join("models", runID, "metadata.json") }
func ModelMetricsKey(runID string) string  { return path.Join("models", runID, "metrics.json") }

// ============================================================================
// Metadata & Metrics
// ============================================================================

// Metadata is the feature contract of one trained model.
type Metadata struct {
	RunID           string      `json:"run_id"`
	FeatureColumns  []string    `json:"feature_columns"`
	NeighborhoodMap EncodingMap `json:"neighborhood_map"`
	FloorPlanMap    EncodingMap `json:"floor_plan_map"`
	BuildingTypeMap EncodingMap `json:"building_type_map"`
	ConditionMap    EncodingMap `json:"condition_map"`
	MaterialMap     EncodingMap `json:"material_map"`
}

// Metrics of one training run. The promotion gate compares RMSE only.
type Metrics struct {
	RMSE      float64 `json:"rmse"`
	MAE       float64 `json:"mae"`
	R2        float64 `json:"r2"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// BetterThan reports whether m strictly beats the incumbent. Ties keep the incumbent.
func (m Metrics) BetterThan(incumbent Metrics) bool {
	return m.RMSE < incumbent.RMSE
}

// ============================================================================
// Training runs & production pointer
// ============================================================================

type TrainingRun struct {
	RunID       string    `json:"run_id"`
	ModelKey    string    `json:"model_key"`
	MetadataKey string    `json:"metadata_key"`
	Metrics     Metrics   `json:"metrics"`
	CreatedAt   time.Time `json:"created_at"`
	Promoted    bool      `json:"promoted"`
}

// ProductionPointer references the (model, metadata) pair serving live traffic.
// It changes only through a compare-and-swap on Version.
type ProductionPointer struct {
	RunID       string    `json:"run_id"`
	ModelKey    string    `json:"model_key"`
	MetadataKey string    `json:"metadata_key"`
	Metrics     Metrics   `json:"metrics"`
	Version     int64     `json:"version"`
	PromotedAt  time.Time `json:"promoted_at"`
}

// PointerFor builds the pointer that would promote run.
func PointerFor(run *TrainingRun) *ProductionPointer {
	return &ProductionPointer{
		RunID:       run.RunID,
		ModelKey:    run.ModelKey,
		MetadataKey: run.MetadataKey,
		Metrics:     run.Metrics,
		PromotedAt:  time.Now().UTC(),
	}
}
