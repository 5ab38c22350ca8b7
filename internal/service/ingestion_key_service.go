package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/codec"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

const maxKeyAttempts = 3

// IngestionKeyService выпуск и отзыв ингест-ключей. Открытый ключ возвращается один раз.
type IngestionKeyService interface {
	Create(ctx context.Context, actor models.Actor, input *models.CreateKeyInput) (*models.CreatedKey, error)
	List(ctx context.Context, actor models.Actor) ([]models.IngestionAPIKey, error)
	Revoke(ctx context.Context, actor models.Actor, keyID string) error
}

type ingestionKeyService struct {
	apps   repository.AppRepository
	keys   repository.APIKeyRepository
	now    Clock
	logger *zap.Logger
}

func NewIngestionKeyService(
	apps repository.AppRepository,
	keys repository.APIKeyRepository,
	now Clock,
	logger *zap.Logger,
) IngestionKeyService {
	return &ingestionKeyService{
		apps:   apps,
		keys:   keys,
		now:    orSystemClock(now),
		logger: logger,
	}
}

func (s *ingestionKeyService) Create(ctx context.Context, actor models.Actor, input *models.CreateKeyInput) (*models.CreatedKey, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, newValidationError("name", "name is required")
	}
	scopes, err := normalizeScopes(input.Scopes)
	if err != nil {
		return nil, err
	}

	key := &models.IngestionAPIKey{
		WorkspaceID:     actor.WorkspaceID,
		CreatedByUserID: nullableString(actor.UserID),
		Name:            name,
		Scopes:          scopes,
		IsActive:        true,
		CreatedAt:       s.now(),
	}
	if appID := strings.TrimSpace(input.AppID); appID != "" {
		app, err := resolveApp(ctx, s.apps, appID, actor.WorkspaceID)
		if err != nil {
			return nil, err
		}
		key.AppID = &app.ID
		key.AppName = &app.Name
	}

	var material *codec.APIKeyMaterial
	for attempt := 1; ; attempt++ {
		material, err = codec.NewAPIKeyMaterial()
		if err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
		key.ID = ""
		key.KeyPrefix = material.Prefix
		key.KeyHash = material.Hash

		err = s.keys.Create(ctx, key)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) || attempt == maxKeyAttempts {
			return nil, fmt.Errorf("failed to create key: %w", err)
		}
	}

	s.logger.Info("Выпущен ингест-ключ",
		zap.String("key_id", key.ID),
		zap.String("workspace_id", key.WorkspaceID),
		zap.Strings("scopes", key.Scopes),
	)

	return &models.CreatedKey{Key: *key, Plaintext: material.Plaintext}, nil
}

func (s *ingestionKeyService) List(ctx context.Context, actor models.Actor) ([]models.IngestionAPIKey, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}
	return s.keys.ListByWorkspace(ctx, actor.WorkspaceID)
}

// Revoke мгновенный: is_active=false и revoked_at=now
func (s *ingestionKeyService) Revoke(ctx context.Context, actor models.Actor, keyID string) error {
	if !actor.Authorized {
		return ErrForbidden
	}
	if keyID == "" {
		return newValidationError("id", "key id is required")
	}

	if err := s.keys.Revoke(ctx, actor.WorkspaceID, keyID, s.now()); err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		return err
	}

	s.logger.Info("Ингест-ключ отозван",
		zap.String("key_id", keyID),
		zap.String("workspace_id", actor.WorkspaceID),
	)
	return nil
}

// normalizeScopes убирает дубликаты с сохранением порядка; неизвестный scope даёт ошибку
func normalizeScopes(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	scopes := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if !models.IsKnownScope(s) {
			return nil, newValidationError("scopes", "unsupported scope: %s", s)
		}
		if !seen[s] {
			seen[s] = true
			scopes = append(scopes, s)
		}
	}
	if len(scopes) == 0 {
		return nil, newValidationError("scopes", "at least one scope is required")
	}
	return scopes, nil
}
