package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

// StatsRepository агрегаты для дашборда. Суммы денег приходят из БД текстом
// и парсятся в decimal, чтобы не накапливать ошибку float.
type StatsRepository interface {
	CountInstalls(ctx context.Context, workspaceID string, tr models.TimeRange) (int64, error)
	CountEvents(ctx context.Context, workspaceID string, name models.EventName, tr models.TimeRange) (int64, error)
	SumEventValue(ctx context.Context, workspaceID string, names []models.EventName, tr models.TimeRange) (decimal.Decimal, error)
	SumSpend(ctx context.Context, workspaceID string, tr models.TimeRange) (decimal.Decimal, error)

	InstallsByChannel(ctx context.Context, workspaceID string, since time.Time) ([]models.ChannelAggregate, error)
	EventsByChannel(ctx context.Context, workspaceID string, name models.EventName, since time.Time) ([]models.ChannelAggregate, error)
	EventValueByChannel(ctx context.Context, workspaceID string, names []models.EventName, since time.Time) ([]models.ChannelAggregate, error)
	SpendByChannel(ctx context.Context, workspaceID string, since time.Time) ([]models.ChannelAggregate, error)
}

type statsRepository struct {
	db *PostgresDB
}

func NewStatsRepository(db *PostgresDB) StatsRepository {
	return &statsRepository{db: db}
}

func eventNames(names []models.EventName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

func (r *statsRepository) CountInstalls(ctx context.Context, workspaceID string, tr models.TimeRange) (int64, error) {
	query := `
		SELECT COUNT(*) FROM installs
		WHERE workspace_id = $1 AND installed_at >= $2 AND installed_at < $3
	`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, workspaceID, tr.Start, tr.End).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count installs: %w", err)
	}
	return count, nil
}

func (r *statsRepository) CountEvents(ctx context.Context, workspaceID string, name models.EventName, tr models.TimeRange) (int64, error) {
	query := `
		SELECT COUNT(*) FROM events
		WHERE workspace_id = $1 AND event_name = $2 AND occurred_at >= $3 AND occurred_at < $4
	`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, workspaceID, string(name), tr.Start, tr.End).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (r *statsRepository) SumEventValue(ctx context.Context, workspaceID string, names []models.EventName, tr models.TimeRange) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(event_value::numeric), 0)::text FROM events
		WHERE workspace_id = $1 AND event_name = ANY($2) AND occurred_at >= $3 AND occurred_at < $4
	`

	var sum string
	if err := r.db.Pool.QueryRow(ctx, query, workspaceID, eventNames(names), tr.Start, tr.End).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum event value: %w", err)
	}
	return parseSum(sum)
}

func (r *statsRepository) SumSpend(ctx context.Context, workspaceID string, tr models.TimeRange) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(cost_usd), 0)::text FROM ad_cost_entries
		WHERE workspace_id = $1 AND date >= $2 AND date < $3
	`

	var sum string
	if err := r.db.Pool.QueryRow(ctx, query, workspaceID, tr.Start, tr.End).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum spend: %w", err)
	}
	return parseSum(sum)
}

func (r *statsRepository) InstallsByChannel(ctx context.Context, workspaceID string, since time.Time) ([]models.ChannelAggregate, error) {
	query := `
		SELECT attributed_source, attributed_channel, COUNT(*), '0'
		FROM installs
		WHERE workspace_id = $1 AND installed_at >= $2
		GROUP BY attributed_source, attributed_channel
	`
	return r.groupBy(ctx, "installs", query, workspaceID, since)
}

func (r *statsRepository) EventsByChannel(ctx context.Context, workspaceID string, name models.EventName, since time.Time) ([]models.ChannelAggregate, error) {
	query := `
		SELECT attribution_source, attribution_channel, COUNT(*), '0'
		FROM events
		WHERE workspace_id = $1 AND occurred_at >= $2 AND event_name = $3
		GROUP BY attribution_source, attribution_channel
	`
	return r.groupBy(ctx, "events", query, workspaceID, since, string(name))
}

func (r *statsRepository) EventValueByChannel(ctx context.Context, workspaceID string, names []models.EventName, since time.Time) ([]models.ChannelAggregate, error) {
	query := `
		SELECT attribution_source, attribution_channel, COUNT(*),
			COALESCE(SUM(event_value::numeric), 0)::text
		FROM events
		WHERE workspace_id = $1 AND occurred_at >= $2 AND event_name = ANY($3)
		GROUP BY attribution_source, attribution_channel
	`
	return r.groupBy(ctx, "event value", query, workspaceID, since, eventNames(names))
}

func (r *statsRepository) SpendByChannel(ctx context.Context, workspaceID string, since time.Time) ([]models.ChannelAggregate, error) {
	query := `
		SELECT source, channel, COUNT(*), COALESCE(SUM(cost_usd), 0)::text
		FROM ad_cost_entries
		WHERE workspace_id = $1 AND date >= $2
		GROUP BY source, channel
	`
	return r.groupBy(ctx, "spend", query, workspaceID, since)
}

// groupBy общий разбор строк (source, channel, count, sum::text)
func (r *statsRepository) groupBy(ctx context.Context, what, query string, args ...any) ([]models.ChannelAggregate, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group %s by channel: %w", what, err)
	}
	defer rows.Close()

	var out []models.ChannelAggregate
	for rows.Next() {
		var (
			agg models.ChannelAggregate
			sum string
		)
		if err := rows.Scan(&agg.Source, &agg.Channel, &agg.Count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan %s group: %w", what, err)
		}
		if agg.Sum, err = parseSum(sum); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s groups: %w", what, err)
	}
	return out, nil
}

func parseSum(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse sum %q: %w", value, err)
	}
	return d, nil
}
