package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/metrics"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

const eventListLimit = 100

// EventService приём событий с наследованием атрибуции от установки
type EventService interface {
	Track(ctx context.Context, actor models.Actor, input *models.EventInput) (*models.Event, error)
	ListRecent(ctx context.Context, actor models.Actor) ([]models.Event, error)
}

type eventService struct {
	apps     repository.AppRepository
	installs repository.InstallRepository
	events   repository.EventRepository
	now      Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewEventService(
	apps repository.AppRepository,
	installs repository.InstallRepository,
	events repository.EventRepository,
	now Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) EventService {
	return &eventService{
		apps:     apps,
		installs: installs,
		events:   events,
		now:      orSystemClock(now),
		logger:   logger,
		metrics:  m,
	}
}

// Track пишет событие только после того, как снапшот атрибуции скопирован с установки;
// дашборд читает атрибуцию события и не джойнит установки
func (s *eventService) Track(ctx context.Context, actor models.Actor, input *models.EventInput) (*models.Event, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}
	if err := validateEventInput(input); err != nil {
		return nil, err
	}

	app, err := resolveApp(ctx, s.apps, input.AppID, actor.WorkspaceID)
	if err != nil {
		return nil, err
	}

	install, err := s.resolveInstall(ctx, actor.WorkspaceID, app.ID, input)
	if err != nil {
		return nil, err
	}

	name := models.CanonicalEventName(strings.TrimSpace(input.EventName))
	event := &models.Event{
		WorkspaceID:    actor.WorkspaceID,
		AppID:          app.ID,
		EventName:      name,
		OccurredAt:     timestampOrNow(input.EventTimestamp, s.now),
		Platform:       input.Platform,
		DeviceID:       nullableString(input.DeviceID),
		ExternalUserID: nullableString(input.UserID),
		EventValue:     input.EventValue,
		Currency:       nullableString(input.Currency),
		Metadata:       verbatimMetadata(input.Metadata),
		Attribution:    models.OrganicSnapshot(),
	}
	if name == models.EventCustom {
		raw := input.EventName
		event.EventNameRaw = &raw
	}

	var backfill *models.ExternalUserBackfill
	if install != nil {
		event.InstallID = &install.ID
		event.Attribution = install.Attribution
		if event.ExternalUserID != nil && install.ExternalUserID == nil {
			backfill = &models.ExternalUserBackfill{
				InstallID:      install.ID,
				ExternalUserID: *event.ExternalUserID,
			}
		}
	}

	if err := s.events.Create(ctx, event, backfill); err != nil {
		return nil, fmt.Errorf("failed to persist event: %w", err)
	}

	s.metrics.RecordEvent(string(event.EventName), string(event.Attribution.Status))
	s.logger.Info("Событие принято",
		zap.String("event_id", event.ID),
		zap.String("event_name", string(event.EventName)),
		zap.String("status", string(event.Attribution.Status)),
		zap.Bool("backfill", backfill != nil),
	)

	return event, nil
}

// resolveInstall явный install_id (в пределах воркспейса и приложения), иначе последняя
// установка устройства. nil без ошибки означает органическое событие.
func (s *eventService) resolveInstall(ctx context.Context, workspaceID, appID string, input *models.EventInput) (*models.Install, error) {
	var (
		install *models.Install
		err     error
	)
	switch {
	case input.InstallID != "":
		install, err = s.installs.GetForApp(ctx, input.InstallID, workspaceID, appID)
	case input.DeviceID != "":
		install, err = s.installs.GetLatestByDevice(ctx, workspaceID, appID, input.DeviceID)
	default:
		return nil, nil
	}

	if errors.Is(err, repository.ErrInstallNotFound) {
		return nil, nil
	}
	return install, err
}

func (s *eventService) ListRecent(ctx context.Context, actor models.Actor) ([]models.Event, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}
	return s.events.ListRecent(ctx, actor.WorkspaceID, eventListLimit)
}

func validateEventInput(input *models.EventInput) error {
	switch {
	case strings.TrimSpace(input.EventName) == "":
		return newValidationError("event_name", "event_name is required")
	case input.EventTimestamp == "":
		return newValidationError("event_timestamp", "event_timestamp is required")
	case input.AppID == "":
		return newValidationError("app_id", "app_id is required")
	case input.Platform == "":
		return newValidationError("platform", "platform must be ios or android")
	}
	return nil
}

// verbatimMetadata JSON null и пустое тело хранятся как NULL
func verbatimMetadata(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return raw
}
