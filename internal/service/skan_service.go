package service

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/metrics"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

// SkanService журнал постбэков SKAdNetwork. Матчинга и атрибуции нет.
type SkanService interface {
	Capture(ctx context.Context, actor models.Actor, input *models.SkanInput) (*models.SkanPostback, error)
}

type skanService struct {
	apps      repository.AppRepository
	postbacks repository.SkanRepository
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewSkanService(
	apps repository.AppRepository,
	postbacks repository.SkanRepository,
	logger *zap.Logger,
	m *metrics.Metrics,
) SkanService {
	return &skanService{
		apps:      apps,
		postbacks: postbacks,
		logger:    logger,
		metrics:   m,
	}
}

func (s *skanService) Capture(ctx context.Context, actor models.Actor, input *models.SkanInput) (*models.SkanPostback, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}
	if input.AppID == "" {
		return nil, newValidationError("app_id", "app_id is required")
	}
	if verbatimMetadata(input.RawPayload) == nil {
		return nil, newValidationError("raw_payload", "raw_payload is required")
	}

	app, err := resolveApp(ctx, s.apps, input.AppID, actor.WorkspaceID)
	if err != nil {
		return nil, err
	}

	postback := &models.SkanPostback{
		WorkspaceID:     actor.WorkspaceID,
		AppID:           app.ID,
		CampaignID:      nullableString(input.CampaignID),
		ConversionValue: roundedInt(input.ConversionValue),
		SourceAppID:     nullableString(input.SourceAppID),
		FidelityType:    nullableString(input.FidelityType),
		IsRedownload:    input.IsRedownload,
		RawPayload:      input.RawPayload,
	}
	if t, ok := parseTimestamp(input.PostbackAt); ok {
		postback.PostbackAt = &t
	}

	if err := s.postbacks.Create(ctx, postback); err != nil {
		return nil, fmt.Errorf("failed to persist skan postback: %w", err)
	}

	s.metrics.RecordSkanPostback()
	s.logger.Info("SKAN постбэк сохранён",
		zap.String("id", postback.ID),
		zap.String("app_id", postback.AppID),
	)
	return postback, nil
}

// roundedInt округление половины от нуля; nil и не-числа остаются nil
func roundedInt(value *float64) *int64 {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return nil
	}
	n := int64(math.Round(*value))
	return &n
}
