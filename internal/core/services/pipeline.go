package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type PipelineOptions struct {
	// SkipBaseline reuses the stored baseline table instead of refetching it.
	SkipBaseline bool
}

type PipelineResult struct {
	Baseline  int              `json:"baseline_neighborhoods,omitempty"`
	Generate  *GenerateResult  `json:"generate"`
	Process   *ProcessResult   `json:"process"`
	Train     *TrainResult     `json:"train"`
	Promotion *PromotionResult `json:"promotion"`
}

// PipelineService runs every stage once, in order, handing each stage's
// artifact key to the next.
type PipelineService struct {
	baseline  *BaselineService
	generator *GeneratorService
	processor *ProcessorService
	trainer   *TrainerService
	promotion *PromotionService
}

func NewPipelineService(
	baseline *BaselineService,
	generator *GeneratorService,
	processor *ProcessorService,
	trainer *TrainerService,
	promotion *PromotionService,
) *PipelineService {
	return &PipelineService{
		baseline:  baseline,
		generator: generator,
		processor: processor,
		trainer:   trainer,
		promotion: promotion,
	}
}

func (s *PipelineService) Run(ctx context.Context, opts PipelineOptions) (*PipelineResult, error) {
	res := &PipelineResult{}

	if !opts.SkipBaseline {
		records, err := s.baseline.Build(ctx)
		if err != nil {
			return res, fmt.Errorf("baseline: %w", err)
		}
		res.Baseline = len(records)
	}

	gen, err := s.generator.Generate(ctx)
	if err != nil {
		return res, fmt.Errorf("generate: %w", err)
	}
	res.Generate = gen

	proc, err := s.processor.Process(ctx, gen.Key)
	if err != nil {
		return res, fmt.Errorf("process: %w", err)
	}
	res.Process = proc

	trained, err := s.trainer.Train(ctx, proc.RunID)
	if err != nil {
		return res, fmt.Errorf("train: %w", err)
	}
	res.Train = trained

	promo, err := s.promotion.CompareAndPromote(ctx, trained.RunID)
	if err != nil {
		return res, fmt.Errorf("promote: %w", err)
	}
	res.Promotion = promo

	log.WithFields(log.Fields{
		"run_id":   trained.RunID,
		"rmse":     trained.Metrics.RMSE,
		"promoted": promo.Promoted,
	}).Info("pipeline finished")
	return res, nil
}
