package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/pkg/response"
)

type referenceCache interface {
	Invalidate(ctx context.Context) error
}

// ReferenceHandler manages the reference data cache.
type ReferenceHandler struct {
	cache referenceCache
}

// NewReferenceHandler constructs handler.
func NewReferenceHandler(cache referenceCache) *ReferenceHandler {
	return &ReferenceHandler{cache: cache}
}

// Refresh godoc
// @Summary Drop cached reference data
// @Tags Reference
// @Success 204
// @Router /reference/refresh [post]
func (h *ReferenceHandler) Refresh(c *gin.Context) {
	if err := h.cache.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
