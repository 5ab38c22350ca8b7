package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

type LinkRepository interface {
	Create(ctx context.Context, link *models.TrackingLink) error
	// GetBySlug ищет ссылку глобально, вместе с приложением (для редиректа)
	GetBySlug(ctx context.Context, slug string) (*models.TrackingLink, error)
	// GetBySlugForApp ищет ссылку только среди ссылок приложения (для матчинга)
	GetBySlugForApp(ctx context.Context, slug, appID string) (*models.TrackingLink, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]models.LinkSummary, error)
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

const linkColumns = `l.id, l.workspace_id, l.app_id, l.created_by_user_id, l.slug, l.source,
	l.channel, l.campaign, l.adset, l.creative, l.influencer_id, l.destination_url, l.created_at`

func scanLink(row pgx.Row, extra ...any) (*models.TrackingLink, error) {
	link := &models.TrackingLink{}
	dest := []any{
		&link.ID,
		&link.WorkspaceID,
		&link.AppID,
		&link.CreatedByUserID,
		&link.Slug,
		&link.Source,
		&link.Channel,
		&link.Campaign,
		&link.Adset,
		&link.Creative,
		&link.InfluencerID,
		&link.DestinationURL,
		&link.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return link, nil
}

func (r *linkRepository) Create(ctx context.Context, link *models.TrackingLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}

	query := `
		INSERT INTO tracking_links (id, workspace_id, app_id, created_by_user_id, slug, source,
			channel, campaign, adset, creative, influencer_id, destination_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		link.ID,
		link.WorkspaceID,
		link.AppID,
		link.CreatedByUserID,
		link.Slug,
		link.Source,
		link.Channel,
		link.Campaign,
		link.Adset,
		link.Creative,
		link.InfluencerID,
		link.DestinationURL,
	).Scan(&link.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetBySlug(ctx context.Context, slug string) (*models.TrackingLink, error) {
	query := `
		SELECT ` + linkColumns + `,
			a.id, a.workspace_id, a.name, a.ios_bundle_id, a.app_store_id,
			a.android_package_name, a.play_store_id, a.created_at
		FROM tracking_links l
		JOIN mobile_apps a ON a.id = l.app_id
		WHERE l.slug = $1
	`

	app := &models.MobileApp{}
	link, err := scanLink(r.db.Pool.QueryRow(ctx, query, slug),
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
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	link.App = app
	return link, nil
}

func (r *linkRepository) GetBySlugForApp(ctx context.Context, slug, appID string) (*models.TrackingLink, error) {
	query := `SELECT ` + linkColumns + ` FROM tracking_links l WHERE l.slug = $1 AND l.app_id = $2`

	link, err := scanLink(r.db.Pool.QueryRow(ctx, query, slug, appID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.LinkSummary, error) {
	query := `
		SELECT ` + linkColumns + `, a.name,
			(SELECT COUNT(*) FROM clicks c WHERE c.link_id = l.id),
			(SELECT COUNT(*) FROM installs i WHERE i.link_id = l.id)
		FROM tracking_links l
		JOIN mobile_apps a ON a.id = l.app_id
		WHERE l.workspace_id = $1
		ORDER BY l.created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	summaries := []models.LinkSummary{}
	for rows.Next() {
		var s models.LinkSummary
		link, err := scanLink(rows, &s.AppName, &s.Clicks, &s.Installs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		s.TrackingLink = *link
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return summaries, nil
}
