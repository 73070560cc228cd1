package handlers

import (
	"errors"
	"io"
	"net/http"

	"apartment-valuation-service/internal/adapters/primary/http/dto"
	"apartment-valuation-service/internal/core/domain"
	"apartment-valuation-service/internal/core/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) BuildBaseline(c *gin.Context) {
	records, err := h.baseline.Build(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("build baseline failed")
		mapDomainError(c, err)
		return
	}
	h.estimator.ReloadBaseline()

	c.JSON(http.StatusOK, dto.BaselineResponse{Key: domain.BaselineKey, Neighborhoods: len(records)})
}

func (h *Handler) GenerateListings(c *gin.Context) {
	res, err := h.generator.Generate(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("generate listings failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) ProcessDataset(c *gin.Context) {
	var req dto.ProcessRequest
	// an empty body processes the latest raw dataset
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := h.processor.Process(c.Request.Context(), req.RawKey)
	if err != nil {
		log.WithError(err).Error("process dataset failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) TrainModel(c *gin.Context) {
	var req dto.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.trainer.Train(c.Request.Context(), req.RunID)
	if err != nil {
		log.WithError(err).WithField("run_id", req.RunID).Error("train model failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) CompareModel(c *gin.Context) {
	var req dto.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmp, err := h.promotion.Compare(c.Request.Context(), req.RunID)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toComparisonResponse(cmp))
}

func (h *Handler) PromoteModel(c *gin.Context) {
	var req dto.PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var resp dto.PromoteResponse
	if req.Force {
		p, err := h.promotion.ForcePromote(c.Request.Context(), req.RunID)
		if err != nil {
			log.WithError(err).WithField("run_id", req.RunID).Error("force promote failed")
			mapDomainError(c, err)
			return
		}
		resp = dto.PromoteResponse{Promoted: true, Pointer: dto.ToPointerResponse(p)}
	} else {
		res, err := h.promotion.CompareAndPromote(c.Request.Context(), req.RunID)
		if err != nil {
			log.WithError(err).WithField("run_id", req.RunID).Error("promote failed")
			mapDomainError(c, err)
			return
		}
		resp = dto.PromoteResponse{
			Promoted:   res.Promoted,
			Comparison: toComparisonResponse(res.Comparison),
			Pointer:    dto.ToPointerResponse(res.Pointer),
		}
	}

	if resp.Promoted {
		h.models.Invalidate()
	}
	c.JSON(http.StatusOK, resp)
}

func toComparisonResponse(cmp *services.Comparison) *dto.ComparisonResponse {
	if cmp == nil {
		return nil
	}
	return &dto.ComparisonResponse{
		RunID:            cmp.RunID,
		IsBetter:         cmp.IsBetter,
		Metrics:          cmp.Metrics,
		Challenger:       cmp.Challenger,
		IncumbentVersion: cmp.IncumbentVersion,
		IncumbentRunID:   cmp.IncumbentRunID,
	}
}
