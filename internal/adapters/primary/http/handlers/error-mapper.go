package handlers

import (
	"errors"
	"net/http"

	"apartment-valuation-service/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrArtifactNotFound),
		errors.Is(err, domain.ErrObjectNotFound),
		errors.Is(err, domain.ErrNoProductionPointer),
		errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrNoBaseline):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Conflict errors
	case errors.Is(err, domain.ErrPromotionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	// Bad request / validation errors
	case errors.Is(err, domain.ErrInvalidSize),
		errors.Is(err, domain.ErrInvalidRunID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	// Unusable data
	case errors.Is(err, domain.ErrEmptySnapshot),
		errors.Is(err, domain.ErrEmptyDataset),
		errors.Is(err, domain.ErrMetadataMismatch),
		errors.Is(err, domain.ErrInvalidModel):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	// Upstream errors
	case errors.Is(err, domain.ErrDataFetch):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	// Service unavailable errors
	case errors.Is(err, domain.ErrNoEstimator),
		errors.Is(err, domain.ErrModelUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
