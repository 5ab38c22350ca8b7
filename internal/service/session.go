package service

import (
	"context"
	"errors"

	"github.com/SergeiKhy/sourcetrace/internal/codec"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

// SessionResolver токен сессии кабинета → членство (воркспейс и роль).
// Сами сессии выдаёт внешний сервис аутентификации.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Membership, error)
}

type sessionResolver struct {
	sessions repository.SessionRepository
	now      Clock
}

func NewSessionResolver(sessions repository.SessionRepository, now Clock) SessionResolver {
	return &sessionResolver{sessions: sessions, now: orSystemClock(now)}
}

func (r *sessionResolver) Resolve(ctx context.Context, token string) (*models.Membership, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	// хэш тот же sha256-hex, что и у ингест-ключей
	membership, err := r.sessions.GetMembership(ctx, codec.HashAPIKey(token), r.now())
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return membership, nil
}
