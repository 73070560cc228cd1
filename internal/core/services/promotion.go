package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

// Comparison is the promotion gate's verdict.
type Comparison struct {
	RunID      string         `json:"run_id"`
	IsBetter   bool           `json:"is_better"`
	Metrics    domain.Metrics `json:"metrics"` // challenger's if better, else incumbent's
	Challenger domain.Metrics `json:"challenger"`

	// IncumbentVersion is the pointer version the verdict was based on; 0 when
	// nothing was promoted yet.
	IncumbentVersion int64  `json:"incumbent_version"`
	IncumbentRunID   string `json:"incumbent_run_id,omitempty"`
}

type PromotionResult struct {
	Comparison *Comparison               `json:"comparison"`
	Promoted   bool                      `json:"promoted"`
	Pointer    *domain.ProductionPointer `json:"pointer,omitempty"`
}

// PromotionService gates and performs production pointer swaps.
type PromotionService struct {
	store    ports.ObjectStore
	pointers ports.PointerRepository
	runs     ports.RunRepository // optional
	bus      ports.PromotionBus  // optional
	now      func() time.Time
}

func NewPromotionService(store ports.ObjectStore, pointers ports.PointerRepository, runs ports.RunRepository, bus ports.PromotionBus) *PromotionService {
	return &PromotionService{store: store, pointers: pointers, runs: runs, bus: bus, now: time.Now}
}

// Compare decides whether runID should replace the production model. Without an
// incumbent the challenger wins; otherwise only a strictly lower RMSE wins.
func (s *PromotionService) Compare(ctx context.Context, runID string) (*Comparison, error) {
	if err := domain.ValidateRunID(runID); err != nil {
		return nil, err
	}
	challenger, err := ReadMetrics(ctx, s.store, runID)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: metrics for run %s", domain.ErrArtifactNotFound, runID)
		}
		return nil, err
	}

	cmp := &Comparison{RunID: runID, Challenger: challenger}
	incumbent, err := s.pointers.Get(ctx)
	switch {
	case errors.Is(err, domain.ErrNoProductionPointer):
		cmp.IsBetter = true
		cmp.Metrics = challenger
		return cmp, nil
	case err != nil:
		return nil, fmt.Errorf("read production pointer: %w", err)
	}

	cmp.IncumbentVersion = incumbent.Version
	cmp.IncumbentRunID = incumbent.RunID
	cmp.IsBetter = challenger.BetterThan(incumbent.Metrics)
	if cmp.IsBetter {
		cmp.Metrics = challenger
	} else {
		cmp.Metrics = incumbent.Metrics
	}

	log.WithFields(log.Fields{
		"run_id":         runID,
		"challenger":     challenger.RMSE,
		"incumbent":      incumbent.Metrics.RMSE,
		"incumbent_run":  incumbent.RunID,
		"challenger_won": cmp.IsBetter,
	}).Info("promotion gate evaluated")
	return cmp, nil
}

// Promote swaps the production pointer to runID if the pointer is still at
// expectedVersion. Model and metadata move together in one record.
func (s *PromotionService) Promote(ctx context.Context, runID string, expectedVersion int64) (*domain.ProductionPointer, error) {
	if err := domain.ValidateRunID(runID); err != nil {
		return nil, err
	}
	run := &domain.TrainingRun{
		RunID:       runID,
		ModelKey:    domain.ModelKey(runID),
		MetadataKey: domain.ModelMetadataKey(runID),
	}
	for _, key := range []string{run.ModelKey, run.MetadataKey} {
		ok, err := s.store.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", key, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, key)
		}
	}
	metrics, err := ReadMetrics(ctx, s.store, runID)
	if err != nil {
		return nil, err
	}
	run.Metrics = metrics

	next := domain.PointerFor(run)
	next.PromotedAt = s.now().UTC()
	stored, err := s.pointers.CompareAndSwap(ctx, expectedVersion, next)
	if err != nil {
		return nil, fmt.Errorf("promote run %s: %w", runID, err)
	}

	if s.runs != nil {
		if err := s.runs.MarkPromoted(ctx, runID); err != nil {
			log.WithError(err).WithField("run_id", runID).Warn("failed to mark run promoted")
		}
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, stored); err != nil {
			log.WithError(err).WithField("run_id", runID).Warn("failed to publish promotion event")
		}
	}

	log.WithFields(log.Fields{
		"run_id":  runID,
		"version": stored.Version,
		"rmse":    stored.Metrics.RMSE,
	}).Info("production model promoted")
	return stored, nil
}

// ForcePromote promotes runID over whatever is current, skipping the gate.
func (s *PromotionService) ForcePromote(ctx context.Context, runID string) (*domain.ProductionPointer, error) {
	var version int64
	current, err := s.pointers.Get(ctx)
	switch {
	case err == nil:
		version = current.Version
	case !errors.Is(err, domain.ErrNoProductionPointer):
		return nil, fmt.Errorf("read production pointer: %w", err)
	}
	return s.Promote(ctx, runID, version)
}

// CompareAndPromote runs the gate and, when the challenger wins, promotes it
// against the exact pointer version the gate saw.
func (s *PromotionService) CompareAndPromote(ctx context.Context, runID string) (*PromotionResult, error) {
	cmp, err := s.Compare(ctx, runID)
	if err != nil {
		return nil, err
	}
	res := &PromotionResult{Comparison: cmp}
	if !cmp.IsBetter {
		return res, nil
	}
	p, err := s.Promote(ctx, runID, cmp.IncumbentVersion)
	if err != nil {
		return nil, err
	}
	res.Promoted = true
	res.Pointer = p
	return res, nil
}

func (s *PromotionService) Production(ctx context.Context) (*domain.ProductionPointer, error) {
	return s.pointers.Get(ctx)
}

// ListRuns returns recent training runs, newest first. Without a run repository
// the history is rebuilt from the metrics objects in the store.
func (s *PromotionService) ListRuns(ctx context.Context, limit int) ([]*domain.TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.runs != nil {
		return s.runs.List(ctx, limit)
	}

	keys, err := s.store.List(ctx, domain.ModelsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	var ids []string
	for _, k := range keys {
		id, err := domain.RunIDFromKey(k)
		if err != nil || k != domain.ModelMetricsKey(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	if len(ids) > limit {
		ids = ids[:limit]
	}

	var promoted string
	if p, err := s.pointers.Get(ctx); err == nil {
		promoted = p.RunID
	}

	out := make([]*domain.TrainingRun, 0, len(ids))
	for _, id := range ids {
		m, err := ReadMetrics(ctx, s.store, id)
		if err != nil {
			log.WithError(err).WithField("run_id", id).Warn("skipping run with unreadable metrics")
			continue
		}
		out = append(out, runFromMetrics(id, m, id == promoted))
	}
	return out, nil
}

// GetRun returns one trained run. A run without a model is ErrRunNotFound.
func (s *PromotionService) GetRun(ctx context.Context, runID string) (*domain.TrainingRun, error) {
	if err := domain.ValidateRunID(runID); err != nil {
		return nil, err
	}
	if s.runs != nil {
		return s.runs.GetByID(ctx, runID)
	}

	m, err := ReadMetrics(ctx, s.store, runID)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, err
	}
	var promoted bool
	if p, err := s.pointers.Get(ctx); err == nil {
		promoted = p.RunID == runID
	}
	return runFromMetrics(runID, m, promoted), nil
}

func runFromMetrics(runID string, m domain.Metrics, promoted bool) *domain.TrainingRun {
	created, _ := time.Parse(domain.RunIDLayout, runID)
	return &domain.TrainingRun{
		RunID:       runID,
		ModelKey:    domain.ModelKey(runID),
		MetadataKey: domain.ModelMetadataKey(runID),
		Metrics:     m,
		CreatedAt:   created,
		Promoted:    promoted,
	}
}
