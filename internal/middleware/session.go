package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

const (
	SessionCookie = "sourcetrace_session"
	SessionHeader = "X-Session-Token"
)

// Session middleware кабинета: токен сессии → членство с проверкой роли
type Session struct {
	resolver service.SessionResolver
	logger   *zap.Logger
}

func NewSession(resolver service.SessionResolver, logger *zap.Logger) *Session {
	return &Session{resolver: resolver, logger: logger}
}

// Require пропускает только роли не ниже role
func (s *Session) Require(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		membership, err := s.resolver.Resolve(c.Request.Context(), sessionToken(c))
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "unauthorized",
					"message": "Session required",
				})
				return
			}
			s.logger.Error("Ошибка проверки сессии", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Internal server error",
			})
			return
		}

		if !membership.Role.AtLeast(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Insufficient role",
			})
			return
		}

		c.Set(ctxMembership, membership)
		c.Next()
	}
}

// sessionToken cookie, затем заголовок
func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	return strings.TrimSpace(c.GetHeader(SessionHeader))
}
