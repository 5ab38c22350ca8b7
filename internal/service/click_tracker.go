package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/codec"
	"github.com/SergeiKhy/sourcetrace/internal/geo"
	"github.com/SergeiKhy/sourcetrace/internal/metrics"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

const (
	maxClickIDAttempts = 3

	playStoreURL = "https://play.google.com/store/apps/details"
	appStoreURL  = "https://apps.apple.com/app/id"
)

// ClickTracker обрабатывает публичный редирект /r/{slug}
type ClickTracker interface {
	// Track пишет клик и возвращает адрес магазина. Неизвестный слаг даёт редирект
	// на fallback без записи клика. Ошибка только при сбое поиска ссылки.
	Track(ctx context.Context, slug string, req models.ClickRequest) (*models.Redirect, error)
}

type clickTracker struct {
	links       repository.LinkRepository
	cache       repository.LinkCache
	clicks      repository.ClickRepository
	geo         geo.Locator
	fallbackURL string
	cacheTTL    time.Duration
	now         Clock
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewClickTracker(
	links repository.LinkRepository,
	cache repository.LinkCache,
	clicks repository.ClickRepository,
	locator geo.Locator,
	fallbackURL string,
	cacheTTL time.Duration,
	now Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) ClickTracker {
	if locator == nil {
		locator = geo.Nop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultLinkCacheTTL
	}
	return &clickTracker{
		links:       links,
		cache:       cache,
		clicks:      clicks,
		geo:         locator,
		fallbackURL: fallbackURL,
		cacheTTL:    cacheTTL,
		now:         orSystemClock(now),
		logger:      logger,
		metrics:     m,
	}
}

func (t *clickTracker) Track(ctx context.Context, slug string, req models.ClickRequest) (*models.Redirect, error) {
	link, err := t.lookup(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			t.metrics.RecordRedirectFallback()
			return &models.Redirect{Location: t.fallbackURL}, nil
		}
		return nil, err
	}

	hint, hinted := DetectPlatformFromUserAgent(req.UserAgent)
	platform := choosePlatform(req.PlatformOverride, hint, hinted, link.App)

	ip := clientIP(req.ForwardedFor, req.RemoteIP)
	click := &models.Click{
		LinkID:    link.ID,
		IPAddress: ip,
		UserAgent: req.UserAgent,
		Referrer:  req.Referrer,
		Locale:    req.Locale,
		Country:   t.geo.Country(ip),
		Query:     req.Query,
		ClickedAt: t.now(),
	}
	if hinted {
		click.PlatformHint = &hint
	}

	t.writeClick(ctx, click)
	t.metrics.RecordClick(string(platform))

	return &models.Redirect{
		Location: t.destination(link, click.ClickID, platform),
		ClickID:  click.ClickID,
		Platform: platform,
	}, nil
}

// lookup сначала Redis, затем Postgres с прогревом кэша
func (t *clickTracker) lookup(ctx context.Context, slug string) (*models.TrackingLink, error) {
	link, err := t.cache.Get(ctx, slug)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		t.logger.Warn("Ошибка чтения кэша ссылок", zap.String("slug", slug), zap.Error(err))
	}

	link, err = t.links.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if err := t.cache.Set(ctx, link, t.cacheTTL); err != nil {
		t.logger.Warn("Не удалось закэшировать ссылку", zap.String("slug", slug), zap.Error(err))
	}
	return link, nil
}

// writeClick при коллизии click_id генерирует новый; если запись так и не удалась,
// редирект всё равно выполняется, матчинг останется возможен по слагу
func (t *clickTracker) writeClick(ctx context.Context, click *models.Click) {
	var err error
	for attempt := 1; attempt <= maxClickIDAttempts; attempt++ {
		click.ClickID = codec.NewClickID()
		if err = t.clicks.Create(ctx, click); err == nil {
			return
		}
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
	}

	t.logger.Error("Не удалось записать клик",
		zap.String("link_id", click.LinkID),
		zap.String("click_id", click.ClickID),
		zap.Error(err),
	)
}

func (t *clickTracker) destination(link *models.TrackingLink, clickID string, platform models.Platform) string {
	app := link.App
	if app == nil {
		app = &models.MobileApp{}
	}

	switch {
	case platform == models.PlatformAndroid && app.PlayPackage() != "":
		referrer := codec.BuildInstallReferrer(clickID, link.Slug, link.Source, link.Channel, link.Campaign)
		return playStoreURL + "?id=" + url.QueryEscape(app.PlayPackage()) +
			"&referrer=" + codec.EscapeComponent(referrer)

	case platform == models.PlatformIOS && app.AppStoreNumericID() != "":
		token := codec.EncodeCampaignToken(link.Slug, clickID)
		return appStoreURL + url.PathEscape(app.AppStoreNumericID()) + "?ct=" + codec.EscapeComponent(token)

	case link.DestinationURL != nil && *link.DestinationURL != "":
		return *link.DestinationURL
	}
	return t.fallbackURL
}

// DetectPlatformFromUserAgent android / iphone|ipad|ios; иначе платформа не определена
func DetectPlatformFromUserAgent(userAgent string) (models.Platform, bool) {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "android"):
		return models.PlatformAndroid, true
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return models.PlatformIOS, true
	}
	return "", false
}

// choosePlatform: явный ?platform=, затем User-Agent, затем Android при наличии пакета, иначе iOS
func choosePlatform(override string, hint models.Platform, hinted bool, app *models.MobileApp) models.Platform {
	if p, ok := models.ParsePlatform(override); ok {
		return p
	}
	if hinted {
		return hint
	}
	if app != nil && app.HasAndroid() {
		return models.PlatformAndroid
	}
	return models.PlatformIOS
}

// clientIP первый адрес из X-Forwarded-For, иначе адрес соединения
func clientIP(forwardedFor, remoteIP string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return remoteIP
}
