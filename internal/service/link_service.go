package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/codec"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

// Константы сервиса
const (
	defaultLinkCacheTTL = 24 * time.Hour
	maxSlugAttempts     = 3
	linkListLimit       = 100
)

var destinationPattern = regexp.MustCompile(`^https?://[^\s]+$`)

// Чёрный список доменов для destination_url
var blacklistedDomains = []string{
	"malware.com",
	"phishing.com",
	"spam.com",
}

// LinkService трекинговые ссылки кабинета
type LinkService interface {
	CreateLink(ctx context.Context, actor models.Actor, input *models.CreateLinkInput) (*models.TrackingLink, error)
	ListLinks(ctx context.Context, actor models.Actor) ([]models.LinkSummary, error)
	// TrackingURL публичный адрес редиректа {base}/r/{slug}
	TrackingURL(slug string) string
}

type linkService struct {
	apps     repository.AppRepository
	links    repository.LinkRepository
	cache    repository.LinkCache
	baseURL  string
	cacheTTL time.Duration
	now      Clock
	logger   *zap.Logger
}

func NewLinkService(
	apps repository.AppRepository,
	links repository.LinkRepository,
	cache repository.LinkCache,
	baseURL string,
	cacheTTL time.Duration,
	now Clock,
	logger *zap.Logger,
) LinkService {
	if cacheTTL <= 0 {
		cacheTTL = defaultLinkCacheTTL
	}
	return &linkService{
		apps:     apps,
		links:    links,
		cache:    cache,
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheTTL: cacheTTL,
		now:      orSystemClock(now),
		logger:   logger,
	}
}

// CreateLink создаёт ссылку со сгенерированным слагом {source}-{campaign}-{hex}
func (s *linkService) CreateLink(ctx context.Context, actor models.Actor, input *models.CreateLinkInput) (*models.TrackingLink, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}
	if err := validateLinkInput(input); err != nil {
		return nil, err
	}

	app, err := resolveApp(ctx, s.apps, input.AppID, actor.WorkspaceID)
	if err != nil {
		return nil, err
	}

	link := &models.TrackingLink{
		WorkspaceID:     actor.WorkspaceID,
		AppID:           app.ID,
		CreatedByUserID: nullableString(actor.UserID),
		Source:          strings.TrimSpace(input.Source),
		Channel:         strings.TrimSpace(input.Channel),
		Campaign:        strings.TrimSpace(input.Campaign),
		Adset:           nullableString(input.Adset),
		Creative:        nullableString(input.Creative),
		InfluencerID:    nullableString(input.InfluencerID),
		DestinationURL:  nullableString(input.DestinationURL),
		CreatedAt:       s.now(),
	}

	// Retry с новым слагом при коллизии
	for attempt := 1; ; attempt++ {
		link.Slug = codec.BuildLinkSlug(link.Source, link.Campaign)
		err = s.links.Create(ctx, link)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) || attempt == maxSlugAttempts {
			return nil, fmt.Errorf("failed to create link: %w", err)
		}
		s.logger.Warn("Коллизия слага, повтор", zap.String("slug", link.Slug), zap.Int("attempt", attempt))
	}

	// Прогреваем кэш для редиректа; ошибка кэша не прерывает создание
	link.App = app
	if err := s.cache.Set(ctx, link, s.cacheTTL); err != nil {
		s.logger.Warn("Не удалось закэшировать ссылку", zap.String("slug", link.Slug), zap.Error(err))
	}

	s.logger.Info("Создана трекинговая ссылка",
		zap.String("slug", link.Slug),
		zap.String("workspace_id", link.WorkspaceID),
		zap.String("app_id", link.AppID),
	)

	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, actor models.Actor) ([]models.LinkSummary, error) {
	if !actor.Authorized {
		return nil, ErrForbidden
	}
	links, err := s.links.ListByWorkspace(ctx, actor.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if len(links) > linkListLimit {
		links = links[:linkListLimit]
	}
	return links, nil
}

func (s *linkService) TrackingURL(slug string) string {
	return s.baseURL + "/r/" + url.PathEscape(slug)
}

func validateLinkInput(input *models.CreateLinkInput) error {
	required := []struct{ field, value string }{
		{"app_id", input.AppID},
		{"source", input.Source},
		{"channel", input.Channel},
		{"campaign", input.Campaign},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return newValidationError(r.field, "%s is required", r.field)
		}
	}

	if input.DestinationURL != "" {
		if !destinationPattern.MatchString(input.DestinationURL) {
			return newValidationError("destination_url", "destination_url must be an http(s) URL")
		}
		if isBlacklisted(input.DestinationURL) {
			return newValidationError("destination_url", "destination_url domain is not allowed")
		}
	}
	return nil
}

// isBlacklisted сравнивает хост и его родительские домены со списком
func isBlacklisted(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range blacklistedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// nullableString пустая строка после trim превращается в nil
func nullableString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
