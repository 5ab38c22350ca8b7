package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/middleware"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

type DashboardHandler struct {
	dashboard service.DashboardService
	errs      errorWriter
}

func NewDashboardHandler(dashboard service.DashboardService, production bool, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		errs:      errorWriter{logger: logger, production: production},
	}
}

// Metrics godoc
// @Summary Headline metrics: last 7 days against the previous 7
// @Tags dashboard
// @Produce json
// @Security Session
// @Success 200 {array} models.DashboardMetric
// @Router /dashboard/metrics [get]
func (h *DashboardHandler) Metrics(c *gin.Context) {
	metrics, err := h.dashboard.Metrics(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.errs.write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": metrics})
}

// Channels godoc
// @Summary Channel performance for the last 30 days
// @Tags dashboard
// @Produce json
// @Security Session
// @Success 200 {array} models.ChannelPerformanceRow
// @Router /dashboard/channels [get]
func (h *DashboardHandler) Channels(c *gin.Context) {
	rows, err := h.dashboard.ChannelPerformance(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.errs.write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}
