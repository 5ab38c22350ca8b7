package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

// SessionRepository читает сессии и членства, которые создаёт сервис аутентификации
type SessionRepository interface {
	// GetMembership по хэшу токена сессии возвращает самое раннее членство пользователя
	GetMembership(ctx context.Context, tokenHash string, now time.Time) (*models.Membership, error)
}

type sessionRepository struct {
	db *PostgresDB
}

func NewSessionRepository(db *PostgresDB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) GetMembership(ctx context.Context, tokenHash string, now time.Time) (*models.Membership, error) {
	query := `
		SELECT m.user_id, m.workspace_id, m.role
		FROM sessions s
		JOIN memberships m ON m.user_id = s.user_id
		WHERE s.token_hash = $1 AND s.expires_at > $2
		ORDER BY m.created_at ASC
		LIMIT 1
	`

	var (
		membership models.Membership
		role       string
	)
	err := r.db.Pool.QueryRow(ctx, query, tokenHash, now).Scan(
		&membership.UserID,
		&membership.WorkspaceID,
		&role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	parsed, ok := models.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q for user %s", role, membership.UserID)
	}
	membership.Role = parsed
	return &membership, nil
}
