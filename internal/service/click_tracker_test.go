package service_test

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SergeiKhy/sourcetrace/internal/codec"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

const fallbackURL = "https://sourcetrace.test"

const (
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15"
	androidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36"
	desktopUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
)

// stubLocator страна по фиксированной таблице
type stubLocator map[string]string

func (s stubLocator) Country(ip string) string { return s[ip] }
func (s stubLocator) Close() error             { return nil }

func setupClickTracker(f *fixture) service.ClickTracker {
	return service.NewClickTracker(
		f.links, f.cache, f.clicks,
		stubLocator{"203.0.113.7": "DE"},
		fallbackURL, 0, fixedClock(testNow), f.logger, nil,
	)
}

// TestClickTracker_UnknownSlug неизвестный слаг: fallback без записи клика
func TestClickTracker_UnknownSlug(t *testing.T) {
	f := newFixture()
	tracker := setupClickTracker(f)

	redirect, err := tracker.Track(f.ctx, "nope", models.ClickRequest{UserAgent: iphoneUA})

	require.NoError(t, err)
	assert.Equal(t, fallbackURL, redirect.Location)
	assert.Empty(t, redirect.ClickID)
	assert.Equal(t, 0, f.clicks.Count())
}

func TestClickTracker_IOSRedirect(t *testing.T) {
	f := newFixture()
	link := f.addLink(f.iosApp, "tiktok-spring-abc123", "tiktok")
	tracker := setupClickTracker(f)

	redirect, err := tracker.Track(f.ctx, link.Slug, models.ClickRequest{
		UserAgent:    iphoneUA,
		ForwardedFor: "203.0.113.7, 10.0.0.1",
		RemoteIP:     "10.0.0.1",
		Locale:       "de-DE",
		Query:        map[string]string{"utm_source": "tt"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.PlatformIOS, redirect.Platform)
	assert.Regexp(t, `^clk_[0-9a-f]{16}$`, redirect.ClickID)
	assert.Equal(t,
		"https://apps.apple.com/app/id1234567890?ct="+url.QueryEscape(link.Slug+"."+redirect.ClickID),
		redirect.Location,
	)

	click, err := f.clicks.GetByClickID(f.ctx, redirect.ClickID)
	require.NoError(t, err)
	assert.Equal(t, link.ID, click.LinkID)
	assert.Equal(t, "203.0.113.7", click.IPAddress, "берётся первый адрес X-Forwarded-For")
	assert.Equal(t, "DE", click.Country)
	assert.Equal(t, "de-DE", click.Locale)
	assert.Equal(t, "tt", click.Query["utm_source"])
	require.NotNil(t, click.PlatformHint)
	assert.Equal(t, models.PlatformIOS, *click.PlatformHint)
}

// TestClickTracker_AndroidRedirect реферер Play Store раскодируется обратно в click_id и слаг
func TestClickTracker_AndroidRedirect(t *testing.T) {
	f := newFixture()
	link := f.addLink(f.androidApp, "meta-sale-def456", "meta")
	tracker := setupClickTracker(f)

	redirect, err := tracker.Track(f.ctx, link.Slug, models.ClickRequest{UserAgent: androidUA, RemoteIP: "198.51.100.1"})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(redirect.Location, "https://play.google.com/store/apps/details?id=com.example.habit&referrer="))

	u, err := url.Parse(redirect.Location)
	require.NoError(t, err)
	values := codec.ParseInstallReferrer(u.Query().Get("referrer"))
	assert.Equal(t, redirect.ClickID, values.ClickID)
	assert.Equal(t, link.Slug, values.LinkSlug)

	click, err := f.clicks.GetByClickID(f.ctx, redirect.ClickID)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.1", click.IPAddress)
	assert.Empty(t, click.Country)
}

// TestClickTracker_PlatformPrecedence ?platform= важнее User-Agent, UA важнее настроек приложения
func TestClickTracker_PlatformPrecedence(t *testing.T) {
	f := newFixture()
	both := &models.MobileApp{
		ID:                 "app_both",
		WorkspaceID:        testWorkspace,
		AppStoreID:         strPtr("42"),
		AndroidPackageName: strPtr("com.example.both"),
	}
	f.apps.Add(both)
	link := f.addLink(both, "both-x-000001", "meta")
	tracker := setupClickTracker(f)

	tests := []struct {
		name     string
		req      models.ClickRequest
		platform models.Platform
	}{
		{"override beats UA", models.ClickRequest{UserAgent: androidUA, PlatformOverride: "ios"}, models.PlatformIOS},
		{"UA", models.ClickRequest{UserAgent: iphoneUA}, models.PlatformIOS},
		{"app has android", models.ClickRequest{UserAgent: desktopUA}, models.PlatformAndroid},
		{"invalid override ignored", models.ClickRequest{UserAgent: iphoneUA, PlatformOverride: "web"}, models.PlatformIOS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redirect, err := tracker.Track(f.ctx, link.Slug, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.platform, redirect.Platform)
		})
	}
}

// TestClickTracker_DestinationFallbacks без идентификатора магазина: destination_url, затем fallback
func TestClickTracker_DestinationFallbacks(t *testing.T) {
	f := newFixture()
	bare := &models.MobileApp{ID: "app_bare", WorkspaceID: testWorkspace}
	f.apps.Add(bare)

	withDest := &models.TrackingLink{
		WorkspaceID:    testWorkspace,
		AppID:          bare.ID,
		Slug:           "web-x-000001",
		Source:         "web",
		Channel:        "owned",
		Campaign:       "landing",
		DestinationURL: strPtr("https://example.com/landing"),
		App:            bare,
	}
	require.NoError(t, f.links.Create(f.ctx, withDest))
	withoutDest := f.addLink(bare, "web-x-000002", "web")
	tracker := setupClickTracker(f)

	redirect, err := tracker.Track(f.ctx, withDest.Slug, models.ClickRequest{UserAgent: iphoneUA})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/landing", redirect.Location)

	redirect, err = tracker.Track(f.ctx, withoutDest.Slug, models.ClickRequest{UserAgent: androidUA})
	require.NoError(t, err)
	assert.Equal(t, fallbackURL, redirect.Location)
	assert.NotEmpty(t, redirect.ClickID, "клик пишется даже при редиректе на fallback")
}

func TestClickTracker_RetriesClickIDCollision(t *testing.T) {
	f := newFixture()
	link := f.addLink(f.iosApp, "tiktok-x-000001", "tiktok")
	f.clicks.Conflicts = 2
	tracker := setupClickTracker(f)

	redirect, err := tracker.Track(f.ctx, link.Slug, models.ClickRequest{UserAgent: iphoneUA})
	require.NoError(t, err)
	assert.Equal(t, 1, f.clicks.Count())

	_, err = f.clicks.GetByClickID(f.ctx, redirect.ClickID)
	assert.NoError(t, err)
}

// TestClickTracker_ClickWriteFailure ошибка записи клика не ломает редирект
func TestClickTracker_ClickWriteFailure(t *testing.T) {
	f := newFixture()
	link := f.addLink(f.iosApp, "tiktok-x-000002", "tiktok")
	f.clicks.Err = errors.New("db down")
	tracker := setupClickTracker(f)

	redirect, err := tracker.Track(f.ctx, link.Slug, models.ClickRequest{UserAgent: iphoneUA})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(redirect.Location, "https://apps.apple.com/app/id1234567890?ct="))
}

// TestClickTracker_UsesCache второй редирект не ходит в репозиторий
func TestClickTracker_UsesCache(t *testing.T) {
	f := newFixture()
	link := f.addLink(f.iosApp, "tiktok-x-000003", "tiktok")
	tracker := setupClickTracker(f)

	_, err := tracker.Track(f.ctx, link.Slug, models.ClickRequest{UserAgent: iphoneUA})
	require.NoError(t, err)
	assert.True(t, f.cache.Has(link.Slug))

	f.links.Err = errors.New("db down")
	redirect, err := tracker.Track(f.ctx, link.Slug, models.ClickRequest{UserAgent: iphoneUA})
	require.NoError(t, err)
	assert.NotEmpty(t, redirect.ClickID)
}

func TestClickTracker_LookupFailure(t *testing.T) {
	f := newFixture()
	f.links.Err = errors.New("db down")
	tracker := setupClickTracker(f)

	_, err := tracker.Track(f.ctx, "any", models.ClickRequest{})
	assert.Error(t, err)
}

func TestDetectPlatformFromUserAgent(t *testing.T) {
	tests := []struct {
		ua       string
		platform models.Platform
		ok       bool
	}{
		{androidUA, models.PlatformAndroid, true},
		{iphoneUA, models.PlatformIOS, true},
		{"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)", models.PlatformIOS, true},
		{desktopUA, "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		p, ok := service.DetectPlatformFromUserAgent(tt.ua)
		assert.Equal(t, tt.ok, ok, tt.ua)
		assert.Equal(t, tt.platform, p, tt.ua)
	}
}
