package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"apartment-valuation-service/internal/core/domain"
	"apartment-valuation-service/internal/core/forest"
	ports "apartment-valuation-service/internal/core/ports/output"
)

type TrainResult struct {
	RunID        string         `json:"run_id"`
	Metrics      domain.Metrics `json:"metrics"`
	ModelPath    string         `json:"model_path"`
	MetadataPath string         `json:"metadata_path"`
}

// TrainerService fits a forest on one processed run and evaluates it on the held-out split.
type TrainerService struct {
	store ports.ObjectStore
	runs  ports.RunRepository // optional
	cfg   forest.Config
	now   func() time.Time
}

func NewTrainerService(store ports.ObjectStore, runs ports.RunRepository, cfg forest.Config) *TrainerService {
	return &TrainerService{store: store, runs: runs, cfg: cfg, now: time.Now}
}

func (s *TrainerService) Train(ctx context.Context, runID string) (*TrainResult, error) {
	if err := domain.ValidateRunID(runID); err != nil {
		return nil, err
	}

	metaBody, err := s.store.Get(ctx, domain.ProcessedMetadataKey(runID))
	if err != nil {
		return nil, fmt.Errorf("read metadata for run %s: %w", runID, err)
	}
	var meta domain.Metadata
	if err := json.Unmarshal(metaBody, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata for run %s: %w", runID, err)
	}
	if len(meta.FeatureColumns) == 0 {
		return nil, fmt.Errorf("%w: run %s has no feature columns", domain.ErrMetadataMismatch, runID)
	}
	meta.RunID = runID

	Xtrain, ytrain, err := s.load(ctx, domain.TrainKey(runID), meta.FeatureColumns)
	if err != nil {
		return nil, err
	}
	Xtest, ytest, err := s.load(ctx, domain.TestKey(runID), meta.FeatureColumns)
	if err != nil {
		return nil, err
	}
	if len(Xtrain) == 0 || len(Xtest) == 0 {
		return nil, fmt.Errorf("%w: run %s has %d train and %d test rows", domain.ErrEmptyDataset, runID, len(Xtrain), len(Xtest))
	}

	started := time.Now()
	model, err := forest.Fit(ctx, Xtrain, ytrain, meta.FeatureColumns, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("fit run %s: %w", runID, err)
	}
	scores := forest.Evaluate(ytest, model.PredictBatch(Xtest))
	metrics := domain.Metrics{
		RMSE:      scores.RMSE,
		MAE:       scores.MAE,
		R2:        scores.R2,
		TrainRows: len(Xtrain),
		TestRows:  len(Xtest),
	}

	modelBody, err := model.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	metaOut, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	metricsOut, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}

	res := &TrainResult{
		RunID:        runID,
		Metrics:      metrics,
		ModelPath:    domain.ModelKey(runID),
		MetadataPath: domain.ModelMetadataKey(runID),
	}
	for _, obj := range []struct {
		key  string
		body []byte
	}{
		{res.ModelPath, modelBody},
		{res.MetadataPath, metaOut},
		{domain.ModelMetricsKey(runID), metricsOut},
	} {
		if err := s.store.Put(ctx, obj.key, obj.body); err != nil {
			return nil, fmt.Errorf("write %s: %w", obj.key, err)
		}
	}

	if s.runs != nil {
		run := &domain.TrainingRun{
			RunID:       runID,
			ModelKey:    res.ModelPath,
			MetadataKey: res.MetadataPath,
			Metrics:     metrics,
			CreatedAt:   s.now().UTC(),
		}
		if err := s.runs.Save(ctx, run); err != nil {
			log.WithError(err).WithField("run_id", runID).Warn("failed to record training run")
		}
	}

	log.WithFields(log.Fields{
		"run_id":   runID,
		"rmse":     metrics.RMSE,
		"mae":      metrics.MAE,
		"r2":       metrics.R2,
		"trees":    len(model.Trees),
		"duration": time.Since(started).String(),
	}).Info("model trained")
	return res, nil
}

func (s *TrainerService) load(ctx context.Context, key string, features []string) ([][]float64, []float64, error) {
	body, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", key, err)
	}
	X, y, err := DecodeRows(bytes.NewReader(body), features)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return X, y, nil
}

// ReadMetrics loads the metrics a run's training wrote.
func ReadMetrics(ctx context.Context, store ports.ObjectStore, runID string) (domain.Metrics, error) {
	var m domain.Metrics
	body, err := store.Get(ctx, domain.ModelMetricsKey(runID))
	if err != nil {
		return m, fmt.Errorf("read metrics for run %s: %w", runID, err)
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return m, fmt.Errorf("decode metrics for run %s: %w", runID, err)
	}
	return m, nil
}
