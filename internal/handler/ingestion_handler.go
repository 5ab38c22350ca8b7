package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/middleware"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

// IngestionHandler server-to-server приём установок, событий и постбэков SKAN
type IngestionHandler struct {
	installs service.InstallService
	events   service.EventService
	skan     service.SkanService
	errs     errorWriter
	logger   *zap.Logger
}

func NewIngestionHandler(
	installs service.InstallService,
	events service.EventService,
	skan service.SkanService,
	production bool,
	logger *zap.Logger,
) *IngestionHandler {
	return &IngestionHandler{
		installs: installs,
		events:   events,
		skan:     skan,
		errs:     errorWriter{logger: logger, production: production},
		logger:   logger,
	}
}

type InstallRequest struct {
	AppID                 string `json:"app_id"`
	Platform              string `json:"platform"`
	DeviceID              string `json:"device_id"`
	ExternalUserID        string `json:"external_user_id"`
	InstallReferrer       string `json:"install_referrer"`
	AppStoreCampaignToken string `json:"app_store_campaign_token"`
	ClickID               string `json:"click_id"`
	LinkSlug              string `json:"link_slug"`
	SkanCampaignID        string `json:"skan_campaign_id"`
	InstalledAt           string `json:"installed_at"`
}

type InstallAttributionResponse struct {
	models.AttributionView
	MatchedClickID *string `json:"matched_click_id"`
	MatchedLinkID  *string `json:"matched_link_id"`
}

type InstallResponse struct {
	InstallID   string                     `json:"install_id"`
	Attribution InstallAttributionResponse `json:"attribution"`
}

// ReportInstall godoc
// @Summary Report an app install
// @Description Matches the install to a click or link (click id, install referrer, App Store campaign token, link slug) or records it as organic.
// @Tags ingestion
// @Accept json
// @Produce json
// @Security IngestionKey
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body InstallRequest true "Install report"
// @Success 201 {object} InstallResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /mobile/install [post]
func (h *IngestionHandler) ReportInstall(c *gin.Context) {
	var req InstallRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		badRequest(c, err)
		return
	}

	platform, _ := models.ParsePlatform(req.Platform)
	result, err := h.installs.ReportInstall(c.Request.Context(), middleware.ActorFrom(c), &models.InstallReport{
		AppID:                 req.AppID,
		Platform:              platform,
		DeviceID:              req.DeviceID,
		ExternalUserID:        req.ExternalUserID,
		InstallReferrer:       req.InstallReferrer,
		AppStoreCampaignToken: req.AppStoreCampaignToken,
		ClickID:               req.ClickID,
		LinkSlug:              req.LinkSlug,
		SkanCampaignID:        req.SkanCampaignID,
		InstalledAt:           req.InstalledAt,
	})
	if err != nil {
		h.errs.write(c, err)
		return
	}

	c.JSON(http.StatusCreated, InstallResponse{
		InstallID: result.InstallID,
		Attribution: InstallAttributionResponse{
			AttributionView: result.Attribution.View(),
			MatchedClickID:  result.MatchedClickID,
			MatchedLinkID:   result.MatchedLinkID,
		},
	})
}

type EventRequest struct {
	EventName      string          `json:"event_name"`
	EventTimestamp string          `json:"event_timestamp"`
	AppID          string          `json:"app_id"`
	Platform       string          `json:"platform"`
	InstallID      string          `json:"install_id"`
	DeviceID       string          `json:"device_id"`
	UserID         string          `json:"user_id"`
	EventValue     json.RawMessage `json:"event_value" swaggertype:"number"`
	Currency       string          `json:"currency"`
	Metadata       json.RawMessage `json:"metadata" swaggertype:"object"`
}

type EventAcceptedData struct {
	EventID     string                 `json:"event_id"`
	EventName   models.EventName       `json:"event_name"`
	InstallID   *string                `json:"install_id"`
	Attribution models.AttributionView `json:"attribution"`
}

type EventAcceptedResponse struct {
	Accepted bool              `json:"accepted"`
	Data     EventAcceptedData `json:"data"`
}

// TrackEvent godoc
// @Summary Track an in-app event
// @Description Stores the event with the attribution of its install (by install_id, otherwise latest install of the device).
// @Tags ingestion
// @Accept json
// @Produce json
// @Security IngestionKey
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body EventRequest true "Event"
// @Success 202 {object} EventAcceptedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /events [post]
func (h *IngestionHandler) TrackEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		badRequest(c, err)
		return
	}

	platform, _ := models.ParsePlatform(req.Platform)
	event, err := h.events.Track(c.Request.Context(), middleware.ActorFrom(c), &models.EventInput{
		EventName:      req.EventName,
		EventTimestamp: req.EventTimestamp,
		AppID:          req.AppID,
		Platform:       platform,
		InstallID:      req.InstallID,
		DeviceID:       req.DeviceID,
		UserID:         req.UserID,
		EventValue:     jsonNumber(req.EventValue),
		Currency:       req.Currency,
		Metadata:       jsonObject(req.Metadata),
	})
	if err != nil {
		h.errs.write(c, err)
		return
	}

	c.JSON(http.StatusAccepted, EventAcceptedResponse{
		Accepted: true,
		Data: EventAcceptedData{
			EventID:     event.ID,
			EventName:   event.EventName,
			InstallID:   event.InstallID,
			Attribution: event.Attribution.View(),
		},
	})
}

type EventListItem struct {
	ID          string                 `json:"id"`
	EventName   models.EventName       `json:"event_name"`
	OccurredAt  time.Time              `json:"occurred_at"`
	AppID       string                 `json:"app_id"`
	InstallID   *string                `json:"install_id"`
	EventValue  *float64               `json:"event_value"`
	Attribution models.AttributionView `json:"attribution"`
}

// ListEvents godoc
// @Summary Recent events of the workspace
// @Tags events
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Router /events [get]
func (h *IngestionHandler) ListEvents(c *gin.Context) {
	events, err := h.events.ListRecent(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.errs.write(c, err)
		return
	}

	items := make([]EventListItem, 0, len(events))
	for _, e := range events {
		items = append(items, EventListItem{
			ID:          e.ID,
			EventName:   e.EventName,
			OccurredAt:  e.OccurredAt,
			AppID:       e.AppID,
			InstallID:   e.InstallID,
			EventValue:  e.EventValue,
			Attribution: e.Attribution.View(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"count": len(items), "data": items})
}

type SkanRequest struct {
	AppID           string          `json:"app_id"`
	RawPayload      json.RawMessage `json:"raw_payload" swaggertype:"object"`
	CampaignID      string          `json:"campaign_id"`
	ConversionValue json.RawMessage `json:"conversion_value" swaggertype:"number"`
	SourceAppID     string          `json:"source_app_id"`
	FidelityType    string          `json:"fidelity_type"`
	IsRedownload    *bool           `json:"is_redownload"`
	PostbackAt      string          `json:"postback_at"`
}

// CaptureSkan godoc
// @Summary Store a SKAdNetwork postback
// @Description The postback is stored verbatim; it is not linked to clicks or installs.
// @Tags ingestion
// @Accept json
// @Produce json
// @Security IngestionKey
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body SkanRequest true "Postback"
// @Success 201 {object} models.SkanPostback
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /mobile/skan [post]
func (h *IngestionHandler) CaptureSkan(c *gin.Context) {
	var req SkanRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		badRequest(c, err)
		return
	}

	postback, err := h.skan.Capture(c.Request.Context(), middleware.ActorFrom(c), &models.SkanInput{
		AppID:           req.AppID,
		RawPayload:      jsonObject(req.RawPayload),
		CampaignID:      req.CampaignID,
		ConversionValue: jsonNumber(req.ConversionValue),
		SourceAppID:     req.SourceAppID,
		FidelityType:    req.FidelityType,
		IsRedownload:    req.IsRedownload,
		PostbackAt:      req.PostbackAt,
	})
	if err != nil {
		h.errs.write(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": postback})
}
