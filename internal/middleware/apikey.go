package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

// Ключи контекста gin
const (
	ctxIngestionAuth = "ingestion_auth"
	ctxMembership    = "membership"
)

// appIDProbe вытаскивает app_id из тела до аутентификации, для проверки привязки ключа
type appIDProbe struct {
	AppID string `json:"app_id"`
}

// IngestionKey middleware для server-to-server ингест-эндпоинтов
type IngestionKey struct {
	auth   service.IngestionAuthenticator
	logger *zap.Logger
}

// NewIngestionKey создаёт новый middleware ингест-ключей
func NewIngestionKey(auth service.IngestionAuthenticator, logger *zap.Logger) *IngestionKey {
	return &IngestionKey{auth: auth, logger: logger}
}

// Require проверяет ключ и scope. Тело читается через ShouldBindBodyWith,
// поэтому handler может привязать его повторно тем же способом.
func (ik *IngestionKey) Require(scope models.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := service.ExtractCredential(c.Request.Header)
		if credential == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Ingestion key required: X-ST-API-Key, X-API-Key or Authorization: Bearer",
			})
			return
		}

		var probe appIDProbe
		if c.Request.Body != nil && c.Request.ContentLength != 0 {
			// массив строк расходов не разбирается в объект: app_id тогда проверяет сервис
			_ = c.ShouldBindBodyWith(&probe, binding.JSON)
		}

		auth, err := ik.auth.Authenticate(c.Request.Context(), credential, scope, strings.TrimSpace(probe.AppID))
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "invalid_api_key",
					"message": "Invalid ingestion key",
				})
				return
			}
			ik.logger.Error("Ошибка проверки ингест-ключа", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Internal server error",
			})
			return
		}

		c.Set(ctxIngestionAuth, auth)
		c.Next()
	}
}

// KeyOrSession ключ при наличии заголовка с ключом, иначе сессия с ролью не ниже role
func KeyOrSession(ik *IngestionKey, s *Session, scope models.Scope, role models.Role) gin.HandlerFunc {
	byKey := ik.Require(scope)
	bySession := s.Require(role)
	return func(c *gin.Context) {
		if service.ExtractCredential(c.Request.Header) != "" {
			byKey(c)
			return
		}
		bySession(c)
	}
}

// IngestionAuthFrom извлекает результат проверки ключа из контекста
func IngestionAuthFrom(c *gin.Context) (*models.IngestionAuth, bool) {
	v, exists := c.Get(ctxIngestionAuth)
	if !exists {
		return nil, false
	}
	auth, ok := v.(*models.IngestionAuth)
	return auth, ok
}

// MembershipFrom извлекает членство сессии из контекста
func MembershipFrom(c *gin.Context) (*models.Membership, bool) {
	v, exists := c.Get(ctxMembership)
	if !exists {
		return nil, false
	}
	m, ok := v.(*models.Membership)
	return m, ok
}

// ActorFrom вызывающая сторона для сервисов. Роль и scope уже проверены middleware,
// поэтому Authorized выставляется только при наличии ключа или сессии.
func ActorFrom(c *gin.Context) models.Actor {
	if auth, ok := IngestionAuthFrom(c); ok {
		return models.Actor{
			WorkspaceID: auth.WorkspaceID,
			AppID:       auth.AppID,
			Authorized:  true,
		}
	}
	if m, ok := MembershipFrom(c); ok {
		return models.Actor{
			WorkspaceID: m.WorkspaceID,
			UserID:      m.UserID,
			Authorized:  true,
		}
	}
	return models.Actor{}
}
