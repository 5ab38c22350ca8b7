package service_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

// attributedInstall установка, атрибуцированная ссылке source
func (f *fixture) attributedInstall(app *models.MobileApp, source, deviceID string, installedAt time.Time) *models.Install {
	link := f.addLink(app, source+"-"+deviceID+"-"+installedAt.Format("150405"), source)
	install := &models.Install{
		WorkspaceID: app.WorkspaceID,
		AppID:       app.ID,
		LinkID:      &link.ID,
		Platform:    models.PlatformIOS,
		DeviceID:    strPtr(deviceID),
		InstalledAt: installedAt,
		Attribution: models.SnapshotFromLink(link),
	}
	f.installs.Add(install)
	return install
}

// TestEventService_InheritsFromInstallID событие с install_id наследует атрибуцию установки
func TestEventService_InheritsFromInstallID(t *testing.T) {
	f := newFixture()
	install := f.attributedInstall(f.iosApp, "tiktok", "dev-1", testNow.Add(-time.Hour))
	svc := f.eventService()

	event, err := svc.Track(f.ctx, f.actor(), &models.EventInput{
		EventName:      "purchase",
		EventTimestamp: "2025-03-15T11:30:00Z",
		AppID:          f.iosApp.ID,
		Platform:       models.PlatformIOS,
		InstallID:      install.ID,
		EventValue:     floatPtr(9.99),
		Currency:       "USD",
		Metadata:       json.RawMessage(`{"sku":"pro_yearly","z":1,"a":2}`),
	})
	require.NoError(t, err)

	assert.Equal(t, models.EventPurchase, event.EventName)
	assert.Nil(t, event.EventNameRaw)
	assert.Equal(t, models.StatusAttributed, event.Attribution.Status)
	assert.Equal(t, "tiktok", *event.Attribution.Source)
	assert.Equal(t, install.ID, *event.InstallID)
	assert.Equal(t, 9.99, *event.EventValue)
	assert.Equal(t, `{"sku":"pro_yearly","z":1,"a":2}`, string(event.Metadata), "метаданные хранятся как есть")
}

// TestEventService_LatestInstallByDevice без install_id берётся последняя установка устройства
func TestEventService_LatestInstallByDevice(t *testing.T) {
	f := newFixture()
	f.attributedInstall(f.iosApp, "meta", "dev-1", testNow.Add(-48*time.Hour))
	latest := f.attributedInstall(f.iosApp, "tiktok", "dev-1", testNow.Add(-time.Hour))
	svc := f.eventService()

	event, err := svc.Track(f.ctx, f.actor(), &models.EventInput{
		EventName:      "signup",
		EventTimestamp: "2025-03-15T11:30:00Z",
		AppID:          f.iosApp.ID,
		Platform:       models.PlatformIOS,
		DeviceID:       "dev-1",
	})
	require.NoError(t, err)
	assert.Equal(t, latest.ID, *event.InstallID)
	assert.Equal(t, "tiktok", *event.Attribution.Source)
}

// TestEventService_Organic без установки и без совпадения по устройству: органика
func TestEventService_Organic(t *testing.T) {
	f := newFixture()
	f.attributedInstall(f.iosApp, "tiktok", "dev-1", testNow.Add(-time.Hour))
	svc := f.eventService()

	for _, input := range []*models.EventInput{
		{EventName: "signup", EventTimestamp: "2025-03-15", AppID: f.iosApp.ID, Platform: models.PlatformIOS},
		{EventName: "signup", EventTimestamp: "2025-03-15", AppID: f.iosApp.ID, Platform: models.PlatformIOS, DeviceID: "dev-404"},
		{EventName: "signup", EventTimestamp: "2025-03-15", AppID: f.iosApp.ID, Platform: models.PlatformIOS, InstallID: "missing"},
	} {
		event, err := svc.Track(f.ctx, f.actor(), input)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOrganic, event.Attribution.Status)
		assert.Nil(t, event.Attribution.Source)
		assert.Nil(t, event.InstallID)
	}
}

// TestEventService_InstallIDScopedToApp install_id другого приложения не используется,
// и поиск по устройству в этом случае не выполняется
func TestEventService_InstallIDScopedToApp(t *testing.T) {
	f := newFixture()
	androidInstall := f.attributedInstall(f.androidApp, "meta", "dev-1", testNow.Add(-time.Hour))
	f.attributedInstall(f.iosApp, "tiktok", "dev-1", testNow.Add(-time.Hour))
	svc := f.eventService()

	event, err := svc.Track(f.ctx, f.actor(), &models.EventInput{
		EventName:      "signup",
		EventTimestamp: "2025-03-15",
		AppID:          f.iosApp.ID,
		Platform:       models.PlatformIOS,
		InstallID:      androidInstall.ID,
		DeviceID:       "dev-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOrganic, event.Attribution.Status)
}

func TestEventService_CustomName(t *testing.T) {
	f := newFixture()
	svc := f.eventService()

	event, err := svc.Track(f.ctx, f.actor(), &models.EventInput{
		EventName:      "Level_Complete",
		EventTimestamp: "not a date",
		AppID:          f.iosApp.ID,
		Platform:       models.PlatformAndroid,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventCustom, event.EventName)
	assert.Equal(t, "Level_Complete", *event.EventNameRaw)
	assert.Equal(t, testNow, event.OccurredAt, "непарсящаяся дата заменяется текущим временем")
}

// TestEventService_BackfillExternalUser user_id проставляется установке только один раз
func TestEventService_BackfillExternalUser(t *testing.T) {
	f := newFixture()
	install := f.attributedInstall(f.iosApp, "tiktok", "dev-1", testNow.Add(-time.Hour))
	svc := f.eventService()

	track := func(userID string) {
		_, err := svc.Track(f.ctx, f.actor(), &models.EventInput{
			EventName:      "signup",
			EventTimestamp: "2025-03-15",
			AppID:          f.iosApp.ID,
			Platform:       models.PlatformIOS,
			InstallID:      install.ID,
			UserID:         userID,
		})
		require.NoError(t, err)
	}

	track("user-a")
	assert.Equal(t, "user-a", *f.installs.Get(install.ID).ExternalUserID)

	track("user-b")
	assert.Equal(t, "user-a", *f.installs.Get(install.ID).ExternalUserID, "существующий external_user_id не перезаписывается")

	// атрибуция установки не меняется
	assert.Equal(t, "tiktok", *f.installs.Get(install.ID).Attribution.Source)
}

func TestEventService_Validation(t *testing.T) {
	f := newFixture()
	svc := f.eventService()

	valid := models.EventInput{EventName: "signup", EventTimestamp: "2025-03-15", AppID: f.iosApp.ID, Platform: models.PlatformIOS}
	tests := []struct {
		field  string
		mutate func(*models.EventInput)
	}{
		{"event_name", func(in *models.EventInput) { in.EventName = " " }},
		{"event_timestamp", func(in *models.EventInput) { in.EventTimestamp = "" }},
		{"app_id", func(in *models.EventInput) { in.AppID = "" }},
		{"platform", func(in *models.EventInput) { in.Platform = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			input := valid
			tt.mutate(&input)
			_, err := svc.Track(f.ctx, f.actor(), &input)

			var vErr *service.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	input := valid
	input.AppID = f.foreignApp.ID
	_, err := svc.Track(f.ctx, f.actor(), &input)
	assert.ErrorIs(t, err, service.ErrAppWorkspaceMismatch)
}

func TestEventService_ListRecent(t *testing.T) {
	f := newFixture()
	svc := f.eventService()

	for _, name := range []string{"signup", "purchase"} {
		_, err := svc.Track(f.ctx, f.actor(), &models.EventInput{
			EventName: name, EventTimestamp: "2025-03-15", AppID: f.iosApp.ID, Platform: models.PlatformIOS,
		})
		require.NoError(t, err)
	}

	events, err := svc.ListRecent(f.ctx, f.actor())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventPurchase, events[0].EventName, "новые события первыми")

	events, err = svc.ListRecent(f.ctx, models.Actor{WorkspaceID: otherWorkspace, Authorized: true})
	require.NoError(t, err)
	assert.Empty(t, events)
}
