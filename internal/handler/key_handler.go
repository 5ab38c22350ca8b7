package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/middleware"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

type KeyHandler struct {
	keys   service.IngestionKeyService
	errs   errorWriter
	logger *zap.Logger
}

func NewKeyHandler(keys service.IngestionKeyService, production bool, logger *zap.Logger) *KeyHandler {
	return &KeyHandler{
		keys:   keys,
		errs:   errorWriter{logger: logger, production: production},
		logger: logger,
	}
}

type CreateKeyRequest struct {
	Name   string   `json:"name" example:"ios sdk"`
	AppID  string   `json:"app_id,omitempty"`
	Scopes []string `json:"scopes" example:"mobile:install:write,mobile:event:write"`
}

// CreatedKeyResponse открытый ключ виден только в этом ответе
type CreatedKeyResponse struct {
	models.IngestionAPIKey
	KeyPlaintext string `json:"key_plaintext"`
}

// CreateKey godoc
// @Summary Issue an ingestion key
// @Description The plaintext key is returned once; only its hash is stored.
// @Tags ingestion-keys
// @Accept json
// @Produce json
// @Security Session
// @Param request body CreateKeyRequest true "Key parameters"
// @Success 201 {object} CreatedKeyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /ingestion-keys [post]
func (h *KeyHandler) CreateKey(c *gin.Context) {
	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	created, err := h.keys.Create(c.Request.Context(), middleware.ActorFrom(c), &models.CreateKeyInput{
		Name:   req.Name,
		AppID:  req.AppID,
		Scopes: req.Scopes,
	})
	if err != nil {
		h.errs.write(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": CreatedKeyResponse{
		IngestionAPIKey: created.Key,
		KeyPlaintext:    created.Plaintext,
	}})
}

// ListKeys godoc
// @Summary Ingestion keys of the workspace
// @Tags ingestion-keys
// @Produce json
// @Security Session
// @Success 200 {object} map[string]interface{}
// @Router /ingestion-keys [get]
func (h *KeyHandler) ListKeys(c *gin.Context) {
	keys, err := h.keys.List(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.errs.write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": keys, "allowed_scopes": models.AllScopes})
}

// RevokeKey godoc
// @Summary Revoke an ingestion key
// @Tags ingestion-keys
// @Produce json
// @Security Session
// @Param id path string true "Key id"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} ErrorResponse
// @Router /ingestion-keys/{id} [delete]
func (h *KeyHandler) RevokeKey(c *gin.Context) {
	if err := h.keys.Revoke(c.Request.Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
		h.errs.write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
