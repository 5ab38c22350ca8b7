package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

type RedirectHandler struct {
	tracker     service.ClickTracker
	fallbackURL string
	logger      *zap.Logger
}

func NewRedirectHandler(tracker service.ClickTracker, fallbackURL string, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		tracker:     tracker,
		fallbackURL: fallbackURL,
		logger:      logger,
	}
}

// Redirect godoc
// @Summary Track a click and redirect to the app store
// @Description Records a click for the tracking link and redirects to Google Play or the App Store.
// @Description Unknown slugs redirect to the fallback URL without recording a click.
// @Tags tracking
// @Param slug path string true "Link slug"
// @Param platform query string false "Platform override (ios, android)"
// @Success 302
// @Router /r/{slug} [get]
func (h *RedirectHandler) Redirect(c *gin.Context) {
	query := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	req := models.ClickRequest{
		UserAgent:        c.Request.UserAgent(),
		Referrer:         c.Request.Referer(),
		ForwardedFor:     c.GetHeader("X-Forwarded-For"),
		RemoteIP:         c.RemoteIP(),
		Locale:           c.GetHeader("Accept-Language"),
		PlatformOverride: c.Query("platform"),
		Query:            query,
	}

	redirect, err := h.tracker.Track(c.Request.Context(), c.Param("slug"), req)
	c.Header("Cache-Control", "no-store")
	if err != nil {
		// браузер всё равно должен куда-то уйти
		h.logger.Error("Failed to track click", zap.String("slug", c.Param("slug")), zap.Error(err))
		c.Redirect(http.StatusFound, h.fallbackURL)
		return
	}

	c.Redirect(http.StatusFound, redirect.Location)
}
