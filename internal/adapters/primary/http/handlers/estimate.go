package handlers

import (
	"net/http"
	"strconv"

	"apartment-valuation-service/internal/adapters/primary/http/dto"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) CreateEstimate(c *gin.Context) {
	var req dto.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	est, err := h.estimator.Estimate(c.Request.Context(), dto.ToEstimateRequest(&req))
	if err != nil {
		log.WithError(err).Error("estimate failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToEstimateResponse(est))
}

func (h *Handler) ListEstimates(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	recs, err := h.estimator.ListEstimates(c.Request.Context(), limit)
	if err != nil {
		log.WithError(err).Error("list estimates failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListEstimatesResponse(recs))
}

func (h *Handler) ListNeighborhoods(c *gin.Context) {
	records, err := h.estimator.ListNeighborhoods(c.Request.Context())
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListNeighborhoodsResponse(records))
}
