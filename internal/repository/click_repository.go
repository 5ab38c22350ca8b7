package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

type ClickRepository interface {
	// Create пишет клик; ErrConflict при коллизии click_id
	Create(ctx context.Context, click *models.Click) error
	// GetByClickID возвращает клик вместе со ссылкой-владельцем
	GetByClickID(ctx context.Context, clickID string) (*models.Click, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

func (r *clickRepository) Create(ctx context.Context, click *models.Click) error {
	if click.ID == "" {
		click.ID = uuid.NewString()
	}

	var query []byte
	if click.Query != nil {
		data, err := json.Marshal(click.Query)
		if err != nil {
			return fmt.Errorf("failed to marshal click query: %w", err)
		}
		query = data
	}

	sql := `
		INSERT INTO clicks (id, click_id, link_id, ip_address, user_agent, referrer, locale,
			country, platform_hint, query)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING clicked_at
	`

	err := r.db.Pool.QueryRow(ctx, sql,
		click.ID,
		click.ClickID,
		click.LinkID,
		nullable(click.IPAddress),
		nullable(click.UserAgent),
		nullable(click.Referrer),
		nullable(click.Locale),
		nullable(click.Country),
		click.PlatformHint,
		query,
	).Scan(&click.ClickedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (r *clickRepository) GetByClickID(ctx context.Context, clickID string) (*models.Click, error) {
	sql := `
		SELECT c.id, c.click_id, c.link_id, c.ip_address, c.user_agent, c.referrer, c.locale,
			c.country, c.platform_hint, c.clicked_at, ` + linkColumns + `
		FROM clicks c
		JOIN tracking_links l ON l.id = c.link_id
		WHERE c.click_id = $1
	`

	var (
		click                                    models.Click
		ip, userAgent, referrer, locale, country *string
	)
	link, err := scanClickRow(r.db.Pool.QueryRow(ctx, sql, clickID),
		&click.ID,
		&click.ClickID,
		&click.LinkID,
		&ip,
		&userAgent,
		&referrer,
		&locale,
		&country,
		&click.PlatformHint,
		&click.ClickedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClickNotFound
		}
		return nil, fmt.Errorf("failed to get click: %w", err)
	}

	click.IPAddress = deref(ip)
	click.UserAgent = deref(userAgent)
	click.Referrer = deref(referrer)
	click.Locale = deref(locale)
	click.Country = deref(country)
	click.Link = link
	return &click, nil
}

// scanClickRow сканирует колонки клика, за которыми следуют linkColumns
func scanClickRow(row pgx.Row, clickDest ...any) (*models.TrackingLink, error) {
	link := &models.TrackingLink{}
	dest := append(clickDest,
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
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return link, nil
}
