package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

type EventRepository interface {
	// Create пишет событие и, если передан backfill, в той же транзакции
	// проставляет external_user_id установке, у которой его ещё нет
	Create(ctx context.Context, event *models.Event, backfill *models.ExternalUserBackfill) error
	ListRecent(ctx context.Context, workspaceID string, limit int) ([]models.Event, error)
}

// querier общее у pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type eventRepository struct {
	db *PostgresDB
}

func NewEventRepository(db *PostgresDB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event, backfill *models.ExternalUserBackfill) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
		if backfill == nil {
			return nil
		}

		_, err := tx.Exec(ctx,
			`UPDATE installs SET external_user_id = $1 WHERE id = $2 AND external_user_id IS NULL`,
			backfill.ExternalUserID,
			backfill.InstallID,
		)
		if err != nil {
			return fmt.Errorf("failed to backfill external user id: %w", err)
		}
		return nil
	})
}

func insertEvent(ctx context.Context, q querier, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	query := `
		INSERT INTO events (id, workspace_id, app_id, install_id, event_name, event_name_raw,
			occurred_at, platform, device_id, external_user_id, event_value, currency, metadata,
			attribution_status, attribution_source, attribution_channel, attribution_campaign)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query,
		event.ID,
		event.WorkspaceID,
		event.AppID,
		event.InstallID,
		string(event.EventName),
		event.EventNameRaw,
		event.OccurredAt,
		string(event.Platform),
		event.DeviceID,
		event.ExternalUserID,
		event.EventValue,
		event.Currency,
		event.Metadata,
		string(event.Attribution.Status),
		event.Attribution.Source,
		event.Attribution.Channel,
		event.Attribution.Campaign,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *eventRepository) ListRecent(ctx context.Context, workspaceID string, limit int) ([]models.Event, error) {
	query := `
		SELECT id, workspace_id, app_id, install_id, event_name, event_name_raw, occurred_at,
			platform, event_value, attribution_status, attribution_source, attribution_channel,
			attribution_campaign, created_at
		FROM events
		WHERE workspace_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			e                     models.Event
			name, platform, state string
		)
		if err := rows.Scan(
			&e.ID,
			&e.WorkspaceID,
			&e.AppID,
			&e.InstallID,
			&name,
			&e.EventNameRaw,
			&e.OccurredAt,
			&platform,
			&e.EventValue,
			&state,
			&e.Attribution.Source,
			&e.Attribution.Channel,
			&e.Attribution.Campaign,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.EventName = models.EventName(name)
		e.Platform = models.Platform(platform)
		e.Attribution.Status = models.AttributionStatus(state)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
