package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/codec"
	"github.com/SergeiKhy/sourcetrace/internal/metrics"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

// Match результат матчинга установки: AttributedMatch или OrganicMatch
type Match interface {
	isMatch()
}

// AttributedMatch установка привязана к ссылке; Click nil, если матч по слагу
type AttributedMatch struct {
	Link  *models.TrackingLink
	Click *models.Click
}

// OrganicMatch источник не определён
type OrganicMatch struct{}

func (AttributedMatch) isMatch() {}
func (OrganicMatch) isMatch()    {}

// installAudit метаданные синтетического события INSTALL: какие токены пришли от клиента
type installAudit struct {
	ReferrerClickID       *string `json:"referrer_click_id"`
	ReferrerLinkSlug      *string `json:"referrer_link_slug"`
	AppStoreCampaignToken *string `json:"app_store_campaign_token"`
}

// InstallService матчинг установок и чтение их атрибуции
type InstallService interface {
	ReportInstall(ctx context.Context, actor models.Actor, report *models.InstallReport) (*models.InstallResult, error)
	// Match ищет клик или ссылку для установки приложения appID; ничего не пишет
	Match(ctx context.Context, appID string, report *models.InstallReport) (Match, error)
	GetAttribution(ctx context.Context, actor models.Actor, installID string) (*models.InstallAttribution, error)
}

type installService struct {
	apps     repository.AppRepository
	links    repository.LinkRepository
	clicks   repository.ClickRepository
	installs repository.InstallRepository
	now      Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewInstallService(
	apps repository.AppRepository,
	links repository.LinkRepository,
	clicks repository.ClickRepository,
	installs repository.InstallRepository,
	now Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) InstallService {
	return &installService{
		apps:     apps,
		links:    links,
		clicks:   clicks,
		installs: installs,
		now:      orSystemClock(now),
		logger:   logger,
		metrics:  m,
	}
}

func (s *installService) ReportInstall(ctx context.Context, actor models.Actor, report *models.InstallReport) (*models.InstallResult, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}
	if report.AppID == "" {
		return nil, newValidationError("app_id", "app_id is required")
	}
	if report.Platform == "" {
		return nil, newValidationError("platform", "platform must be ios or android")
	}

	app, err := resolveApp(ctx, s.apps, report.AppID, actor.WorkspaceID)
	if err != nil {
		return nil, err
	}

	match, err := s.Match(ctx, app.ID, report)
	if err != nil {
		return nil, err
	}

	install := &models.Install{
		WorkspaceID:     actor.WorkspaceID,
		AppID:           app.ID,
		Platform:        report.Platform,
		DeviceID:        nullableString(report.DeviceID),
		ExternalUserID:  nullableString(report.ExternalUserID),
		InstallReferrer: nullableString(report.InstallReferrer),
		SkanCampaignID:  nullableString(report.SkanCampaignID),
		InstalledAt:     timestampOrNow(report.InstalledAt, s.now),
		Attribution:     models.OrganicSnapshot(),
	}

	result := &models.InstallResult{}
	if m, ok := match.(AttributedMatch); ok {
		install.Attribution = models.SnapshotFromLink(m.Link)
		install.LinkID = &m.Link.ID
		result.MatchedLinkID = &m.Link.ID
		if m.Click != nil {
			install.ClickInternalID = &m.Click.ID
			result.MatchedClickID = &m.Click.ClickID
		}
	}

	event, err := s.installEvent(install, report)
	if err != nil {
		return nil, err
	}

	err = s.installs.CreateWithEvent(ctx, install, event)
	if errors.Is(err, repository.ErrConflict) && install.ClickInternalID != nil {
		// Клик уже привязан к другой установке (переустановка): атрибуция по ссылке сохраняется
		s.logger.Warn("Клик уже использован другой установкой",
			zap.String("click_id", *result.MatchedClickID),
		)
		install.ID = ""
		install.ClickInternalID = nil
		result.MatchedClickID = nil
		event.ID = ""
		err = s.installs.CreateWithEvent(ctx, install, event)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist install: %w", err)
	}

	s.metrics.RecordInstall(string(install.Attribution.Status), string(install.Platform))
	s.logger.Info("Установка атрибуцирована",
		zap.String("install_id", install.ID),
		zap.String("app_id", install.AppID),
		zap.String("status", string(install.Attribution.Status)),
		zap.String("source", models.OrOrganic(install.Attribution.Source)),
	)

	result.InstallID = install.ID
	result.Attribution = install.Attribution
	return result, nil
}

// Match: клик по click_id (только если его ссылка принадлежит приложению), затем ссылка
// по слагу в пределах приложения, иначе органика. Ненайденный кандидат не ошибка.
func (s *installService) Match(ctx context.Context, appID string, report *models.InstallReport) (Match, error) {
	clickID, slug := matchCandidates(report)

	if clickID != "" {
		click, err := s.clicks.GetByClickID(ctx, clickID)
		switch {
		case err == nil:
			if click.Link != nil && click.Link.AppID == appID {
				return AttributedMatch{Link: click.Link, Click: click}, nil
			}
			s.logger.Info("Клик принадлежит другому приложению",
				zap.String("click_id", clickID),
				zap.String("app_id", appID),
			)
		case !errors.Is(err, repository.ErrClickNotFound):
			return nil, err
		}
	}

	if slug != "" {
		link, err := s.links.GetBySlugForApp(ctx, slug, appID)
		switch {
		case err == nil:
			return AttributedMatch{Link: link}, nil
		case !errors.Is(err, repository.ErrLinkNotFound):
			return nil, err
		}
	}

	return OrganicMatch{}, nil
}

// matchCandidates click_id и слаг по приоритету: явные поля, install referrer, campaign token
func matchCandidates(report *models.InstallReport) (clickID, slug string) {
	referrer := codec.ParseInstallReferrer(report.InstallReferrer)
	token := codec.DecodeCampaignToken(report.AppStoreCampaignToken)

	clickID = firstNonEmpty(report.ClickID, referrer.ClickID, token.ClickID)
	slug = firstNonEmpty(report.LinkSlug, referrer.LinkSlug, token.LinkSlug)
	return clickID, slug
}

func (s *installService) installEvent(install *models.Install, report *models.InstallReport) (*models.Event, error) {
	clickID, slug := matchCandidates(report)
	metadata, err := json.Marshal(installAudit{
		ReferrerClickID:       nullableString(clickID),
		ReferrerLinkSlug:      nullableString(slug),
		AppStoreCampaignToken: nullableString(report.AppStoreCampaignToken),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode install metadata: %w", err)
	}

	return &models.Event{
		WorkspaceID:    install.WorkspaceID,
		AppID:          install.AppID,
		EventName:      models.EventInstall,
		OccurredAt:     install.InstalledAt,
		Platform:       install.Platform,
		DeviceID:       install.DeviceID,
		ExternalUserID: install.ExternalUserID,
		Metadata:       metadata,
		Attribution:    install.Attribution,
	}, nil
}

func (s *installService) GetAttribution(ctx context.Context, actor models.Actor, installID string) (*models.InstallAttribution, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}
	if installID == "" {
		return nil, newValidationError("install_id", "install_id is required")
	}

	attribution, err := s.installs.GetAttribution(ctx, installID, actor.WorkspaceID)
	if err != nil {
		if errors.Is(err, repository.ErrInstallNotFound) {
			return nil, ErrInstallNotFound
		}
		return nil, err
	}
	return attribution, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
