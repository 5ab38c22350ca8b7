package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/provider"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// errorWriter переводит ошибки сервисов в HTTP-ответы.
// В production текст внутренних ошибок не отдаётся клиенту.
type errorWriter struct {
	logger     *zap.Logger
	production bool
}

func (w errorWriter) write(c *gin.Context, err error) {
	var (
		validation *service.ValidationError
		upstream   *provider.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: validation.Message,
			Field:   validation.Field,
		})
	case errors.As(err, &upstream):
		w.logger.Warn("Ошибка API провайдера",
			zap.String("provider", upstream.Provider),
			zap.Int("status", upstream.Status),
			zap.String("message", upstream.Message),
		)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "provider_error",
			Message: upstream.Error(),
		})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Unauthorized",
		})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Forbidden",
		})
	case errors.Is(err, service.ErrAppWorkspaceMismatch):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "workspace_mismatch",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrAppNotFound),
		errors.Is(err, service.ErrInstallNotFound),
		errors.Is(err, service.ErrKeyNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	default:
		w.logger.Error("Внутренняя ошибка",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		message := "Internal server error"
		if !w.production {
			message = err.Error()
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: message,
		})
	}
}

// badRequest невалидный JSON в теле
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
	})
}
