package handlers

import (
	"net/http"
	"strconv"

	"apartment-valuation-service/internal/adapters/primary/http/dto"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) GetProductionModel(c *gin.Context) {
	p, err := h.promotion.Production(c.Request.Context())
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPointerResponse(p))
}

// ReloadModel drops the cached model and baseline and loads the current production pair.
func (h *Handler) ReloadModel(c *gin.Context) {
	h.models.Invalidate()
	h.estimator.ReloadBaseline()

	m, err := h.models.Get(c.Request.Context())
	if err != nil {
		log.WithError(err).Warn("model reload failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPointerResponse(m.Pointer))
}

func (h *Handler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.promotion.ListRuns(c.Request.Context(), limit)
	if err != nil {
		log.WithError(err).Error("list runs failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListRunsResponse(runs))
}

func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.promotion.GetRun(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRunResponse(run))
}
