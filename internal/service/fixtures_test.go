package service_test

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
	"github.com/SergeiKhy/sourcetrace/internal/service/mocks"
)

const (
	testWorkspace  = "ws_1"
	otherWorkspace = "ws_2"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) service.Clock {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

// fixture общие моки: два приложения в тестовом воркспейсе и одно в чужом
type fixture struct {
	ctx      context.Context
	logger   *zap.Logger
	apps     *mocks.MockAppRepository
	links    *mocks.MockLinkRepository
	cache    *mocks.MockLinkCache
	clicks   *mocks.MockClickRepository
	events   *mocks.MockEventRepository
	installs *mocks.MockInstallRepository

	iosApp     *models.MobileApp
	androidApp *models.MobileApp
	foreignApp *models.MobileApp
}

func newFixture() *fixture {
	f := &fixture{
		ctx:    context.Background(),
		logger: zap.NewNop(),
		iosApp: &models.MobileApp{
			ID:          "app_ios",
			WorkspaceID: testWorkspace,
			Name:        "Habit iOS",
			IOSBundleID: strPtr("com.example.habit"),
			AppStoreID:  strPtr("1234567890"),
		},
		androidApp: &models.MobileApp{
			ID:                 "app_android",
			WorkspaceID:        testWorkspace,
			Name:               "Habit Android",
			AndroidPackageName: strPtr("com.example.habit"),
		},
		foreignApp: &models.MobileApp{
			ID:          "app_foreign",
			WorkspaceID: otherWorkspace,
			Name:        "Other",
		},
	}
	f.apps = mocks.NewMockAppRepository(f.iosApp, f.androidApp, f.foreignApp)
	f.links = mocks.NewMockLinkRepository()
	f.cache = mocks.NewMockLinkCache()
	f.clicks = mocks.NewMockClickRepository(f.links)
	f.events = mocks.NewMockEventRepository()
	f.installs = mocks.NewMockInstallRepository(f.events)
	return f
}

func (f *fixture) actor() models.Actor {
	return models.Actor{WorkspaceID: testWorkspace, UserID: "user_1", Authorized: true}
}

// addLink создаёт ссылку приложения напрямую в репозитории
func (f *fixture) addLink(app *models.MobileApp, slug, source string) *models.TrackingLink {
	link := &models.TrackingLink{
		WorkspaceID: app.WorkspaceID,
		AppID:       app.ID,
		Slug:        slug,
		Source:      source,
		Channel:     "paid_social",
		Campaign:    "spring",
		App:         app,
		CreatedAt:   testNow,
	}
	if err := f.links.Create(f.ctx, link); err != nil {
		panic(err)
	}
	return link
}

// addClick пишет клик по ссылке с заданным click_id
func (f *fixture) addClick(link *models.TrackingLink, clickID string) *models.Click {
	click := &models.Click{ClickID: clickID, LinkID: link.ID, ClickedAt: testNow}
	if err := f.clicks.Create(f.ctx, click); err != nil {
		panic(err)
	}
	return click
}

func (f *fixture) installService() service.InstallService {
	return service.NewInstallService(f.apps, f.links, f.clicks, f.installs, fixedClock(testNow), f.logger, nil)
}

func (f *fixture) eventService() service.EventService {
	return service.NewEventService(f.apps, f.installs, f.events, fixedClock(testNow), f.logger, nil)
}
