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

type InstallRepository interface {
	// CreateWithEvent пишет установку и синтетическое событие INSTALL одной транзакцией
	CreateWithEvent(ctx context.Context, install *models.Install, event *models.Event) error
	// GetForApp ищет установку по id в пределах воркспейса и приложения
	GetForApp(ctx context.Context, id, workspaceID, appID string) (*models.Install, error)
	// GetLatestByDevice последняя по installed_at установка устройства
	GetLatestByDevice(ctx context.Context, workspaceID, appID, deviceID string) (*models.Install, error)
	GetAttribution(ctx context.Context, id, workspaceID string) (*models.InstallAttribution, error)
}

type installRepository struct {
	db *PostgresDB
}

func NewInstallRepository(db *PostgresDB) InstallRepository {
	return &installRepository{db: db}
}

const installColumns = `id, workspace_id, app_id, link_id, click_internal_id, platform, device_id,
	external_user_id, install_referrer, skan_campaign_id, installed_at, attribution_status,
	attributed_source, attributed_channel, attributed_campaign, created_at`

func scanInstall(row pgx.Row) (*models.Install, error) {
	var (
		install          models.Install
		platform, status string
	)
	err := row.Scan(
		&install.ID,
		&install.WorkspaceID,
		&install.AppID,
		&install.LinkID,
		&install.ClickInternalID,
		&platform,
		&install.DeviceID,
		&install.ExternalUserID,
		&install.InstallReferrer,
		&install.SkanCampaignID,
		&install.InstalledAt,
		&status,
		&install.Attribution.Source,
		&install.Attribution.Channel,
		&install.Attribution.Campaign,
		&install.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	install.Platform = models.Platform(platform)
	install.Attribution.Status = models.AttributionStatus(status)
	return &install, nil
}

func (r *installRepository) CreateWithEvent(ctx context.Context, install *models.Install, event *models.Event) error {
	if install.ID == "" {
		install.ID = uuid.NewString()
	}

	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO installs (id, workspace_id, app_id, link_id, click_internal_id, platform,
				device_id, external_user_id, install_referrer, skan_campaign_id, installed_at,
				attribution_status, attributed_source, attributed_channel, attributed_campaign)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING created_at
		`

		err := tx.QueryRow(ctx, query,
			install.ID,
			install.WorkspaceID,
			install.AppID,
			install.LinkID,
			install.ClickInternalID,
			string(install.Platform),
			install.DeviceID,
			install.ExternalUserID,
			install.InstallReferrer,
			install.SkanCampaignID,
			install.InstalledAt,
			string(install.Attribution.Status),
			install.Attribution.Source,
			install.Attribution.Channel,
			install.Attribution.Campaign,
		).Scan(&install.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("failed to create install: %w", err)
		}

		event.InstallID = &install.ID
		return insertEvent(ctx, tx, event)
	})
}

func (r *installRepository) GetForApp(ctx context.Context, id, workspaceID, appID string) (*models.Install, error) {
	query := `SELECT ` + installColumns + ` FROM installs WHERE id = $1 AND workspace_id = $2 AND app_id = $3`

	install, err := scanInstall(r.db.Pool.QueryRow(ctx, query, id, workspaceID, appID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstallNotFound
		}
		return nil, fmt.Errorf("failed to get install: %w", err)
	}
	return install, nil
}

func (r *installRepository) GetLatestByDevice(ctx context.Context, workspaceID, appID, deviceID string) (*models.Install, error) {
	query := `
		SELECT ` + installColumns + `
		FROM installs
		WHERE workspace_id = $1 AND app_id = $2 AND device_id = $3
		ORDER BY installed_at DESC
		LIMIT 1
	`

	install, err := scanInstall(r.db.Pool.QueryRow(ctx, query, workspaceID, appID, deviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstallNotFound
		}
		return nil, fmt.Errorf("failed to get install by device: %w", err)
	}
	return install, nil
}

func (r *installRepository) GetAttribution(ctx context.Context, id, workspaceID string) (*models.InstallAttribution, error) {
	query := `
		SELECT i.id, i.attribution_status, i.attributed_source, i.attributed_channel,
			i.attributed_campaign, l.id, l.slug, c.click_id, c.clicked_at
		FROM installs i
		LEFT JOIN tracking_links l ON l.id = i.link_id
		LEFT JOIN clicks c ON c.id = i.click_internal_id
		WHERE i.id = $1 AND i.workspace_id = $2
	`

	var (
		result    models.InstallAttribution
		status    string
		clickTime *time.Time
	)
	err := r.db.Pool.QueryRow(ctx, query, id, workspaceID).Scan(
		&result.InstallID,
		&status,
		&result.Attribution.Source,
		&result.Attribution.Channel,
		&result.Attribution.Campaign,
		&result.LinkID,
		&result.LinkSlug,
		&result.ClickID,
		&clickTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstallNotFound
		}
		return nil, fmt.Errorf("failed to get install attribution: %w", err)
	}

	result.Attribution.Status = models.AttributionStatus(status)
	result.ClickTime = clickTime
	return &result, nil
}
