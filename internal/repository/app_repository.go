package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

// AppRepository приложения только читаются: их создаёт онбординг
type AppRepository interface {
	GetByID(ctx context.Context, id string) (*models.MobileApp, error)
}

type appRepository struct {
	db *PostgresDB
}

func NewAppRepository(db *PostgresDB) AppRepository {
	return &appRepository{db: db}
}

func (r *appRepository) GetByID(ctx context.Context, id string) (*models.MobileApp, error) {
	query := `
		SELECT id, workspace_id, name, ios_bundle_id, app_store_id,
			android_package_name, play_store_id, created_at
		FROM mobile_apps
		WHERE id = $1
	`

	app := &models.MobileApp{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&app.ID,
		&app.WorkspaceID,
		&app.Name,
		&app.IOSBundleID,
		&app.AppStoreID,
		&app.AndroidPackageName,
		&app.PlayStoreID,
		&app.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppNotFound
		}
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	return app, nil
}
