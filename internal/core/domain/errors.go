package domain

import "errors"

// ============================================================================
// Baseline Errors
// ============================================================================

var (
	ErrDataFetch     = errors.New("external dataset unreachable or malformed")
	ErrEmptySnapshot = errors.New("no snapshot rows parsed")
	ErrNoBaseline    = errors.New("baseline table not available")
)

// ============================================================================
// Dataset Errors
// ============================================================================

var (
	ErrEmptyDataset     = errors.New("dataset has no rows")
	ErrParseRow         = errors.New("row could not be parsed")
	ErrMetadataMismatch = errors.New("dataset columns do not match metadata feature columns")
)

// ============================================================================
// Model Lifecycle Errors
// ============================================================================

// Not found errors
var (
	ErrObjectNotFound      = errors.New("object not found")
	ErrArtifactNotFound    = errors.New("model artifact not found")
	ErrNoProductionPointer = errors.New("no production model promoted")
	ErrRunNotFound         = errors.New("training run not found")
)

// Conflict errors
var (
	ErrPromotionConflict = errors.New("production pointer changed concurrently")
)

// Validation errors
var (
	ErrInvalidRunID = errors.New("run id is required and must be a generation timestamp")
	ErrInvalidModel = errors.New("model artifact is malformed")
)

// ============================================================================
// Estimation Errors
// ============================================================================

var (
	ErrInvalidSize      = errors.New("sqm is required and must be positive")
	ErrGeocodeMiss      = errors.New("address could not be resolved")
	ErrModelUnavailable = errors.New("production model unavailable")
	ErrNoEstimator      = errors.New("no production model and no baseline data available")
)
