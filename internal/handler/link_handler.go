package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/middleware"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

// LinkHandler трекинговые ссылки и просмотр атрибуции установки
type LinkHandler struct {
	links    service.LinkService
	installs service.InstallService
	errs     errorWriter
	logger   *zap.Logger
}

func NewLinkHandler(links service.LinkService, installs service.InstallService, production bool, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		links:    links,
		installs: installs,
		errs:     errorWriter{logger: logger, production: production},
		logger:   logger,
	}
}

type CreateLinkRequest struct {
	AppID          string `json:"app_id"`
	Source         string `json:"source" example:"tiktok"`
	Channel        string `json:"channel" example:"paid_social"`
	Campaign       string `json:"campaign" example:"spring launch"`
	Adset          string `json:"adset,omitempty"`
	Creative       string `json:"creative,omitempty"`
	InfluencerID   string `json:"influencer_id,omitempty"`
	DestinationURL string `json:"destination_url,omitempty"`
}

type CreateLinkResponse struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type LinkListItem struct {
	models.LinkSummary
	URL string `json:"url"`
}

// CreateLink godoc
// @Summary Create a tracking link
// @Description Creates a link with a generated slug ({source}-{campaign}-{6 hex}).
// @Tags links
// @Accept json
// @Produce json
// @Security Session
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} CreateLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		badRequest(c, err)
		return
	}

	link, err := h.links.CreateLink(c.Request.Context(), middleware.ActorFrom(c), &models.CreateLinkInput{
		AppID:          req.AppID,
		Source:         req.Source,
		Channel:        req.Channel,
		Campaign:       req.Campaign,
		Adset:          req.Adset,
		Creative:       req.Creative,
		InfluencerID:   req.InfluencerID,
		DestinationURL: req.DestinationURL,
	})
	if err != nil {
		h.errs.write(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": CreateLinkResponse{
		ID:        link.ID,
		Slug:      link.Slug,
		URL:       h.links.TrackingURL(link.Slug),
		CreatedAt: link.CreatedAt,
	}})
}

// ListLinks godoc
// @Summary Tracking links of the workspace with click and install counts
// @Tags links
// @Produce json
// @Security Session
// @Success 200 {array} LinkListItem
// @Failure 401 {object} ErrorResponse
// @Router /links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	links, err := h.links.ListLinks(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.errs.write(c, err)
		return
	}

	items := make([]LinkListItem, 0, len(links))
	for _, l := range links {
		l.App = nil
		items = append(items, LinkListItem{LinkSummary: l, URL: h.links.TrackingURL(l.Slug)})
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

type AttributionRequest struct {
	InstallID string `json:"install_id"`
}

type AttributionDetails struct {
	models.AttributionView
	LinkID    *string    `json:"link_id"`
	LinkSlug  *string    `json:"link_slug"`
	ClickID   *string    `json:"click_id"`
	ClickTime *time.Time `json:"click_time"`
}

type AttributionResponse struct {
	InstallID   string             `json:"install_id"`
	Attribution AttributionDetails `json:"attribution"`
}

// GetAttribution godoc
// @Summary Attribution of an install
// @Tags attribution
// @Accept json
// @Produce json
// @Security Session
// @Param request body AttributionRequest true "Install id"
// @Success 200 {object} AttributionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attribution [post]
func (h *LinkHandler) GetAttribution(c *gin.Context) {
	var req AttributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	a, err := h.installs.GetAttribution(c.Request.Context(), middleware.ActorFrom(c), req.InstallID)
	if err != nil {
		h.errs.write(c, err)
		return
	}

	c.JSON(http.StatusOK, AttributionResponse{
		InstallID: a.InstallID,
		Attribution: AttributionDetails{
			AttributionView: a.Attribution.View(),
			LinkID:          a.LinkID,
			LinkSlug:        a.LinkSlug,
			ClickID:         a.ClickID,
			ClickTime:       a.ClickTime,
		},
	})
}
