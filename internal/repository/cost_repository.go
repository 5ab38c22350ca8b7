package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

// CostRepository строки расходов пишутся по одной, без общей транзакции на пачку
type CostRepository interface {
	Create(ctx context.Context, entry *models.AdCostEntry) error
	ListRecent(ctx context.Context, workspaceID string, limit int) ([]models.AdCostEntry, error)
}

type costRepository struct {
	db *PostgresDB
}

func NewCostRepository(db *PostgresDB) CostRepository {
	return &costRepository{db: db}
}

func (r *costRepository) Create(ctx context.Context, entry *models.AdCostEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO ad_cost_entries (id, workspace_id, app_id, source, channel, campaign, adset,
			creative, date, cost_usd, clicks, impressions, installs, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		entry.ID,
		entry.WorkspaceID,
		entry.AppID,
		entry.Source,
		entry.Channel,
		entry.Campaign,
		entry.Adset,
		entry.Creative,
		entry.Date,
		entry.CostUSD,
		entry.Clicks,
		entry.Impressions,
		entry.Installs,
		entry.Metadata,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cost entry: %w", err)
	}

	return nil
}

func (r *costRepository) ListRecent(ctx context.Context, workspaceID string, limit int) ([]models.AdCostEntry, error) {
	query := `
		SELECT id, workspace_id, app_id, source, channel, campaign, adset, creative, date,
			cost_usd::float8, clicks, impressions, installs, created_at
		FROM ad_cost_entries
		WHERE workspace_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cost entries: %w", err)
	}
	defer rows.Close()

	entries := []models.AdCostEntry{}
	for rows.Next() {
		var e models.AdCostEntry
		if err := rows.Scan(
			&e.ID,
			&e.WorkspaceID,
			&e.AppID,
			&e.Source,
			&e.Channel,
			&e.Campaign,
			&e.Adset,
			&e.Creative,
			&e.Date,
			&e.CostUSD,
			&e.Clicks,
			&e.Impressions,
			&e.Installs,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cost entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cost entries: %w", err)
	}

	return entries, nil
}
