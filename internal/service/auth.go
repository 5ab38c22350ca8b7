package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/codec"
	"github.com/SergeiKhy/sourcetrace/internal/metrics"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

// Заголовки с ингест-ключом в порядке приоритета
const (
	HeaderSourceTraceKey = "X-ST-API-Key"
	HeaderAPIKey         = "X-API-Key"
)

// ExtractCredential X-ST-API-Key, затем X-API-Key, затем Authorization: Bearer
func ExtractCredential(header http.Header) string {
	if v := strings.TrimSpace(header.Get(HeaderSourceTraceKey)); v != "" {
		return v
	}
	if v := strings.TrimSpace(header.Get(HeaderAPIKey)); v != "" {
		return v
	}
	auth := header.Get("Authorization")
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

// IngestionAuthenticator проверяет ингест-ключ до любых запросов к данным воркспейса.
// Все отказы выглядят одинаково (ErrUnauthorized), причина видна только в логах и метриках.
type IngestionAuthenticator interface {
	Authenticate(ctx context.Context, credential string, scope models.Scope, targetAppID string) (*models.IngestionAuth, error)
}

type ingestionAuthenticator struct {
	keys    repository.APIKeyRepository
	usage   KeyUsageRecorder
	now     Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewIngestionAuthenticator(
	keys repository.APIKeyRepository,
	usage KeyUsageRecorder,
	now Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) IngestionAuthenticator {
	return &ingestionAuthenticator{
		keys:    keys,
		usage:   usage,
		now:     orSystemClock(now),
		logger:  logger,
		metrics: m,
	}
}

func (a *ingestionAuthenticator) Authenticate(ctx context.Context, credential string, scope models.Scope, targetAppID string) (*models.IngestionAuth, error) {
	if credential == "" {
		return nil, a.reject("missing", "")
	}

	key, err := a.keys.GetByHash(ctx, codec.HashAPIKey(credential))
	if err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			return nil, a.reject("unknown", "")
		}
		return nil, err
	}

	now := a.now()
	switch {
	case !key.IsActive:
		return nil, a.reject("inactive", key.ID)
	case key.RevokedAt != nil && !key.RevokedAt.After(now):
		return nil, a.reject("revoked", key.ID)
	case !key.HasScope(scope):
		return nil, a.reject("scope", key.ID)
	case targetAppID != "" && key.AppID != nil && *key.AppID != targetAppID:
		return nil, a.reject("app_binding", key.ID)
	}

	a.usage.Record(key.ID, now)

	return &models.IngestionAuth{
		KeyID:       key.ID,
		WorkspaceID: key.WorkspaceID,
		AppID:       key.AppID,
		Scopes:      key.Scopes,
	}, nil
}

func (a *ingestionAuthenticator) reject(reason, keyID string) error {
	a.metrics.RecordAuthFailure(reason)
	a.logger.Info("Ингест-ключ отклонён",
		zap.String("reason", reason),
		zap.String("key_id", keyID),
	)
	return ErrUnauthorized
}
