package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/middleware"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

type CostHandler struct {
	costs  service.CostService
	errs   errorWriter
	logger *zap.Logger
}

func NewCostHandler(costs service.CostService, production bool, logger *zap.Logger) *CostHandler {
	return &CostHandler{
		costs:  costs,
		errs:   errorWriter{logger: logger, production: production},
		logger: logger,
	}
}

// CostRowRequest строка расходов; числовые поля принимаются только как JSON-числа
type CostRowRequest struct {
	AppID       string          `json:"app_id"`
	Source      string          `json:"source"`
	Channel     string          `json:"channel"`
	Campaign    string          `json:"campaign"`
	Adset       string          `json:"adset"`
	Creative    string          `json:"creative"`
	Date        string          `json:"date"`
	CostUSD     json.RawMessage `json:"cost_usd" swaggertype:"number"`
	Clicks      json.RawMessage `json:"clicks" swaggertype:"integer"`
	Impressions json.RawMessage `json:"impressions" swaggertype:"integer"`
	Installs    json.RawMessage `json:"installs" swaggertype:"integer"`
	Metadata    json.RawMessage `json:"metadata" swaggertype:"object"`
}

func (r CostRowRequest) toInput() models.CostRowInput {
	return models.CostRowInput{
		AppID:       r.AppID,
		Source:      r.Source,
		Channel:     r.Channel,
		Campaign:    r.Campaign,
		Adset:       r.Adset,
		Creative:    r.Creative,
		Date:        r.Date,
		CostUSD:     jsonNumber(r.CostUSD),
		Clicks:      jsonNumber(r.Clicks),
		Impressions: jsonNumber(r.Impressions),
		Installs:    jsonNumber(r.Installs),
		Metadata:    jsonObject(r.Metadata),
	}
}

// rowDecodeError описывает строку, которую не удалось разобрать как CostRowRequest
func rowDecodeError(err error) *service.ValidationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &service.ValidationError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be %s, got %s", typeErr.Field, jsonKind(typeErr.Type.Kind()), typeErr.Value),
		}
	}
	return &service.ValidationError{Field: "row", Message: "row must be a JSON object"}
}

func jsonKind(kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return "a string"
	case reflect.Struct, reflect.Map:
		return "an object"
	default:
		return kind.String()
	}
}

// RowErrorResponse отказ пакетного импорта; строки до Row уже записаны
type RowErrorResponse struct {
	ErrorResponse
	Row           int `json:"row"`
	ImportedCount int `json:"imported_count"`
}

// CreateCosts godoc
// @Summary Add ad spend
// @Description Accepts a single row or an array of rows. An array is imported in order and stops at the first invalid row;
// @Description rows before it stay imported.
// @Tags costs
// @Accept json
// @Produce json
// @Security IngestionKey
// @Security Session
// @Param request body CostRowRequest true "Cost row or array of rows"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} RowErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /costs [post]
func (h *CostHandler) CreateCosts(c *gin.Context) {
	var raw json.RawMessage
	if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
		badRequest(c, err)
		return
	}
	actor := middleware.ActorFrom(c)

	if !isJSONArray(raw) {
		var req CostRowRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			badRequest(c, err)
			return
		}
		input := req.toInput()
		entry, err := h.costs.CreateEntry(c.Request.Context(), actor, &input)
		if err != nil {
			h.errs.write(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": entry})
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		badRequest(c, err)
		return
	}

	// строки до неразборчивой импортируются, она сама становится ошибкой строки
	rows := make([]models.CostRowInput, 0, len(items))
	var decodeErr error
	for i, item := range items {
		var req CostRowRequest
		if err := json.Unmarshal(item, &req); err != nil {
			decodeErr = &service.RowError{Row: i + 1, Err: rowDecodeError(err)}
			break
		}
		rows = append(rows, req.toInput())
	}

	imported, err := h.costs.ImportRows(c.Request.Context(), actor, rows)
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		var (
			rowErr     *service.RowError
			validation *service.ValidationError
		)
		// ошибки доступа и хранилища идут по общему маппингу
		if !errors.As(err, &rowErr) || !errors.As(rowErr.Err, &validation) {
			h.errs.write(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, RowErrorResponse{
			ErrorResponse: ErrorResponse{
				Error:   "invalid_row",
				Message: rowErr.Error(),
				Field:   validation.Field,
			},
			Row:           rowErr.Row,
			ImportedCount: imported,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"imported_count": imported})
}

// ListCosts godoc
// @Summary Recent ad spend rows of the workspace
// @Tags costs
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Router /costs [get]
func (h *CostHandler) ListCosts(c *gin.Context) {
	entries, err := h.costs.List(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.errs.write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

type SyncRequest struct {
	Provider  string `json:"provider" example:"meta"`
	StartDate string `json:"start_date" example:"2025-03-01"`
	EndDate   string `json:"end_date" example:"2025-03-07"`
	AppID     string `json:"app_id"`
}

// SyncCosts godoc
// @Summary Pull ad spend from Meta or TikTok
// @Description Fetches daily spend for the date range and imports it through the bulk path.
// @Description Provider errors are returned as 400 with the provider's status and message.
// @Tags costs
// @Accept json
// @Produce json
// @Security Session
// @Param request body SyncRequest true "Sync request"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /costs/sync [post]
func (h *CostHandler) SyncCosts(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	imported, err := h.costs.Sync(c.Request.Context(), middleware.ActorFrom(c), &models.SyncRequest{
		Provider:  req.Provider,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		AppID:     req.AppID,
	})
	if err != nil {
		h.errs.write(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"provider": req.Provider, "imported_count": imported})
}
