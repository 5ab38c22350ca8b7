package service

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/metrics"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/provider"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

const costListLimit = 200

// CostService импорт расходов: одиночная строка, пакет, синхронизация с провайдером
type CostService interface {
	CreateEntry(ctx context.Context, actor models.Actor, row *models.CostRowInput) (*models.AdCostEntry, error)
	// ImportRows пишет строки по одной; первая ошибка (RowError) останавливает импорт,
	// уже записанные строки остаются
	ImportRows(ctx context.Context, actor models.Actor, rows []models.CostRowInput) (int, error)
	Sync(ctx context.Context, actor models.Actor, req *models.SyncRequest) (int, error)
	List(ctx context.Context, actor models.Actor) ([]models.AdCostEntry, error)
}

type costService struct {
	apps      repository.AppRepository
	costs     repository.CostRepository
	providers provider.Registry
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewCostService(
	apps repository.AppRepository,
	costs repository.CostRepository,
	providers provider.Registry,
	logger *zap.Logger,
	m *metrics.Metrics,
) CostService {
	return &costService{
		apps:      apps,
		costs:     costs,
		providers: providers,
		logger:    logger,
		metrics:   m,
	}
}

func (s *costService) CreateEntry(ctx context.Context, actor models.Actor, row *models.CostRowInput) (*models.AdCostEntry, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}
	return s.insertRow(ctx, actor, row)
}

func (s *costService) ImportRows(ctx context.Context, actor models.Actor, rows []models.CostRowInput) (int, error) {
	if !actor.Authorized {
		return 0, ErrForbidden
	}

	imported := 0
	for i := range rows {
		if _, err := s.insertRow(ctx, actor, &rows[i]); err != nil {
			s.logger.Warn("Импорт расходов остановлен",
				zap.Int("row", i+1),
				zap.Int("imported", imported),
				zap.Error(err),
			)
			return imported, &RowError{Row: i + 1, Err: err}
		}
		imported++
	}
	return imported, nil
}

func (s *costService) Sync(ctx context.Context, actor models.Actor, req *models.SyncRequest) (int, error) {
	if !actor.Authorized {
		return 0, ErrForbidden
	}

	fetcher, ok := s.providers.Get(strings.ToLower(strings.TrimSpace(req.Provider)))
	if !ok {
		return 0, &ValidationError{Field: "provider", Message: ErrUnknownProvider.Error()}
	}
	if !isISODate(req.StartDate) || !isISODate(req.EndDate) {
		return 0, newValidationError("start_date", "start_date and end_date must be YYYY-MM-DD")
	}
	if req.StartDate > req.EndDate {
		return 0, newValidationError("start_date", "start_date must not be after end_date")
	}

	external, err := fetcher.FetchCostRows(ctx, req.StartDate, req.EndDate)
	if err != nil {
		return 0, err
	}

	rows := make([]models.CostRowInput, 0, len(external))
	for _, r := range external {
		cost := r.CostUSD
		rows = append(rows, models.CostRowInput{
			AppID:       req.AppID,
			Source:      r.Source,
			Channel:     r.Channel,
			Campaign:    r.Campaign,
			Adset:       r.Adset,
			Creative:    r.Creative,
			Date:        r.Date,
			CostUSD:     &cost,
			Clicks:      r.Clicks,
			Impressions: r.Impressions,
			Installs:    r.Installs,
			Metadata:    r.Metadata,
		})
	}

	imported, err := s.ImportRows(ctx, actor, rows)
	if err != nil {
		return imported, err
	}

	s.logger.Info("Синхронизация расходов завершена",
		zap.String("provider", fetcher.Name()),
		zap.String("workspace_id", actor.WorkspaceID),
		zap.Int("imported", imported),
	)
	return imported, nil
}

func (s *costService) List(ctx context.Context, actor models.Actor) ([]models.AdCostEntry, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}
	return s.costs.ListRecent(ctx, actor.WorkspaceID, costListLimit)
}

// insertRow валидация строки, проверка приложения, затем запись
func (s *costService) insertRow(ctx context.Context, actor models.Actor, row *models.CostRowInput) (*models.AdCostEntry, error) {
	entry, err := normalizeCostRow(row)
	if err != nil {
		return nil, err
	}

	appID := strings.TrimSpace(row.AppID)
	if actor.AppID != nil {
		// ключ, привязанный к приложению, пишет только в него
		if appID != "" && appID != *actor.AppID {
			return nil, ErrUnauthorized
		}
		appID = *actor.AppID
	}
	if appID != "" {
		app, err := resolveApp(ctx, s.apps, appID, actor.WorkspaceID)
		if err != nil {
			return nil, err
		}
		entry.AppID = &app.ID
	}

	entry.WorkspaceID = actor.WorkspaceID
	if err := s.costs.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.metrics.RecordCostRow(entry.Source)
	return entry, nil
}

func normalizeCostRow(row *models.CostRowInput) (*models.AdCostEntry, error) {
	source := strings.ToLower(strings.TrimSpace(row.Source))
	channel := strings.ToLower(strings.TrimSpace(row.Channel))
	switch {
	case source == "":
		return nil, newValidationError("source", "source is required")
	case channel == "":
		return nil, newValidationError("channel", "channel is required")
	case strings.TrimSpace(row.Date) == "":
		return nil, newValidationError("date", "date is required")
	case row.CostUSD == nil || math.IsNaN(*row.CostUSD) || math.IsInf(*row.CostUSD, 0):
		return nil, newValidationError("cost_usd", "cost_usd must be a number")
	}

	date, ok := parseCostDate(row.Date)
	if !ok {
		return nil, newValidationError("date", "invalid date value: %s", row.Date)
	}

	return &models.AdCostEntry{
		Source:      source,
		Channel:     channel,
		Campaign:    nullableString(row.Campaign),
		Adset:       nullableString(row.Adset),
		Creative:    nullableString(row.Creative),
		Date:        date,
		CostUSD:     *row.CostUSD,
		Clicks:      roundedInt(row.Clicks),
		Impressions: roundedInt(row.Impressions),
		Installs:    roundedInt(row.Installs),
		Metadata:    verbatimMetadata(row.Metadata),
	}, nil
}
