package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

// APIKeyRepository ключи ищутся только по хэшу, открытый текст в БД не попадает
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.IngestionAPIKey) error
	GetByHash(ctx context.Context, keyHash string) (*models.IngestionAPIKey, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]models.IngestionAPIKey, error)
	Revoke(ctx context.Context, workspaceID, keyID string, at time.Time) error
	TouchLastUsed(ctx context.Context, keyID string, at time.Time) error
}

type apiKeyRepository struct {
	db *PostgresDB
}

func NewAPIKeyRepository(db *PostgresDB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) Create(ctx context.Context, key *models.IngestionAPIKey) error {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}

	query := `
		INSERT INTO ingestion_api_keys (id, workspace_id, app_id, created_by_user_id, name,
			key_prefix, key_hash, scopes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING is_active, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		key.ID,
		key.WorkspaceID,
		key.AppID,
		key.CreatedByUserID,
		key.Name,
		key.KeyPrefix,
		key.KeyHash,
		key.Scopes,
	).Scan(&key.IsActive, &key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create ingestion key: %w", err)
	}

	return nil
}

func (r *apiKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.IngestionAPIKey, error) {
	query := `
		SELECT id, workspace_id, app_id, name, key_prefix, key_hash, scopes, is_active,
			last_used_at, revoked_at, created_at
		FROM ingestion_api_keys
		WHERE key_hash = $1
	`

	key := &models.IngestionAPIKey{}
	err := r.db.Pool.QueryRow(ctx, query, keyHash).Scan(
		&key.ID,
		&key.WorkspaceID,
		&key.AppID,
		&key.Name,
		&key.KeyPrefix,
		&key.KeyHash,
		&key.Scopes,
		&key.IsActive,
		&key.LastUsedAt,
		&key.RevokedAt,
		&key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get ingestion key: %w", err)
	}

	return key, nil
}

func (r *apiKeyRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.IngestionAPIKey, error) {
	query := `
		SELECT k.id, k.workspace_id, k.app_id, k.name, k.key_prefix, k.scopes, k.is_active,
			k.last_used_at, k.revoked_at, k.created_at, a.name
		FROM ingestion_api_keys k
		LEFT JOIN mobile_apps a ON a.id = k.app_id
		WHERE k.workspace_id = $1
		ORDER BY k.created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion keys: %w", err)
	}
	defer rows.Close()

	keys := []models.IngestionAPIKey{}
	for rows.Next() {
		var k models.IngestionAPIKey
		if err := rows.Scan(
			&k.ID,
			&k.WorkspaceID,
			&k.AppID,
			&k.Name,
			&k.KeyPrefix,
			&k.Scopes,
			&k.IsActive,
			&k.LastUsedAt,
			&k.RevokedAt,
			&k.CreatedAt,
			&k.AppName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion key: %w", err)
		}
		keys = append(keys, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingestion keys: %w", err)
	}

	return keys, nil
}

func (r *apiKeyRepository) Revoke(ctx context.Context, workspaceID, keyID string, at time.Time) error {
	query := `
		UPDATE ingestion_api_keys
		SET is_active = FALSE, revoked_at = COALESCE(revoked_at, $3)
		WHERE id = $1 AND workspace_id = $2
	`

	result, err := r.db.Pool.Exec(ctx, query, keyID, workspaceID, at)
	if err != nil {
		return fmt.Errorf("failed to revoke ingestion key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrKeyNotFound
	}

	return nil
}

func (r *apiKeyRepository) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	query := `UPDATE ingestion_api_keys SET last_used_at = $2 WHERE id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, keyID, at); err != nil {
		return fmt.Errorf("failed to touch ingestion key: %w", err)
	}
	return nil
}
