package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/foi-request-api/internal/dto"
	"github.com/noah-isme/foi-request-api/internal/middleware"
	"github.com/noah-isme/foi-request-api/internal/models"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
	"github.com/noah-isme/foi-request-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, session models.Session) (*dto.RequestDashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Request dashboard
// @Description Counts by request type and status with completion percentage, scoped like the request list.
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ResponseMeta(c, start))
}
