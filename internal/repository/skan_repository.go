package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

type SkanRepository interface {
	Create(ctx context.Context, postback *models.SkanPostback) error
}

type skanRepository struct {
	db *PostgresDB
}

func NewSkanRepository(db *PostgresDB) SkanRepository {
	return &skanRepository{db: db}
}

func (r *skanRepository) Create(ctx context.Context, postback *models.SkanPostback) error {
	if postback.ID == "" {
		postback.ID = uuid.NewString()
	}

	query := `
		INSERT INTO skan_postbacks (id, workspace_id, app_id, campaign_id, conversion_value,
			source_app_id, fidelity_type, is_redownload, postback_at, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		postback.ID,
		postback.WorkspaceID,
		postback.AppID,
		postback.CampaignID,
		postback.ConversionValue,
		postback.SourceAppID,
		postback.FidelityType,
		postback.IsRedownload,
		postback.PostbackAt,
		postback.RawPayload,
	).Scan(&postback.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create skan postback: %w", err)
	}

	return nil
}
