package handlers

import (
	"apartment-valuation-service/internal/core/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	estimator *services.EstimatorService
	baseline  *services.BaselineService
	generator *services.GeneratorService
	processor *services.ProcessorService
	trainer   *services.TrainerService
	promotion *services.PromotionService
	models    *services.ModelCache
}

func New(
	estimator *services.EstimatorService,
	baseline *services.BaselineService,
	generator *services.GeneratorService,
	processor *services.ProcessorService,
	trainer *services.TrainerService,
	promotion *services.PromotionService,
	models *services.ModelCache,
) *Handler {
	return &Handler{
		estimator: estimator,
		baseline:  baseline,
		generator: generator,
		processor: processor,
		trainer:   trainer,
		promotion: promotion,
		models:    models,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Estimates
	r.POST("/estimates", h.CreateEstimate)
	r.GET("/estimates", h.ListEstimates)
	r.GET("/neighborhoods", h.ListNeighborhoods)

	// Pipeline stages
	r.POST("/pipeline/baseline", h.BuildBaseline)
	r.POST("/pipeline/generate", h.GenerateListings)
	r.POST("/pipeline/process", h.ProcessDataset)
	r.POST("/pipeline/train", h.TrainModel)
	r.POST("/pipeline/compare", h.CompareModel)
	r.POST("/pipeline/promote", h.PromoteModel)

	// Production model
	r.GET("/model/production", h.GetProductionModel)
	r.POST("/model/reload", h.ReloadModel)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:run_id", h.GetRun)
}
