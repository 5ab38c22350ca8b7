package handler_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SergeiKhy/sourcetrace/internal/middleware"
	"github.com/SergeiKhy/sourcetrace/internal/models"
)

const androidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36"

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = s.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_request")
}

func TestRedirect_UnknownSlugGoesToFallback(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodGet, "/r/missing-slug", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fallbackURL, w.Header().Get("Location"))
	assert.Equal(t, 0, s.clicks.Count())
}

// TestClickToInstall_Attributed клик по ссылке, затем установка с тем же click_id
func TestClickToInstall_Attributed(t *testing.T) {
	s := newTestServer(t, false)
	link := s.addLink(s.androidApp, "tiktok-spring-abc123", "tiktok")

	w := s.do(http.MethodGet, "/r/"+link.Slug, nil, map[string]string{"User-Agent": androidUA})
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"),
		"https://play.google.com/store/apps/details?id=com.example.habit&referrer="))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	require.Equal(t, 1, s.clicks.Count())
	clickID := s.clicks.All()[0].ClickID

	key := s.apiKey(nil, models.ScopeInstallWrite)
	w = s.do(http.MethodPost, "/mobile/install", map[string]any{
		"app_id":    s.androidApp.ID,
		"platform":  "android",
		"click_id":  clickID,
		"device_id": "dev-1",
	}, keyHeader(key))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.NotEmpty(t, body["install_id"])
	attribution := body["attribution"].(map[string]any)
	assert.Equal(t, "ATTRIBUTED", attribution["status"])
	assert.Equal(t, "tiktok", attribution["source"])
	assert.Equal(t, clickID, attribution["matched_click_id"])
	assert.Equal(t, link.ID, attribution["matched_link_id"])
}

func TestInstall_OrganicWithUnknownClick(t *testing.T) {
	s := newTestServer(t, false)
	key := s.apiKey(nil, models.ScopeInstallWrite)

	w := s.do(http.MethodPost, "/mobile/install", map[string]any{
		"app_id":   s.iosApp.ID,
		"platform": "ios",
		"click_id": "clk_unknown",
	}, keyHeader(key))
	require.Equal(t, http.StatusCreated, w.Code)

	attribution := decode(t, w)["attribution"].(map[string]any)
	assert.Equal(t, "ORGANIC", attribution["status"])
	assert.Equal(t, "organic", attribution["source"])
	assert.Nil(t, attribution["matched_click_id"])
	assert.Nil(t, attribution["matched_link_id"])
}

func TestInstall_ErrorClasses(t *testing.T) {
	s := newTestServer(t, false)
	key := s.apiKey(nil, models.ScopeInstallWrite)

	tests := []struct {
		name    string
		body    map[string]any
		headers map[string]string
		status  int
		field   string
	}{
		{
			name:   "missing key",
			body:   map[string]any{"app_id": s.iosApp.ID, "platform": "ios"},
			status: http.StatusUnauthorized,
		},
		{
			name:    "bad platform",
			body:    map[string]any{"app_id": s.iosApp.ID, "platform": "web"},
			headers: keyHeader(key),
			status:  http.StatusBadRequest,
			field:   "platform",
		},
		{
			name:    "unknown app",
			body:    map[string]any{"app_id": "app_nope", "platform": "ios"},
			headers: keyHeader(key),
			status:  http.StatusNotFound,
		},
		{
			name:    "app of another workspace",
			body:    map[string]any{"app_id": s.foreignApp.ID, "platform": "ios"},
			headers: keyHeader(key),
			status:  http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/mobile/install", tt.body, tt.headers)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.field != "" {
				assert.Equal(t, tt.field, decode(t, w)["field"])
			}
		})
	}
}

func TestInstall_ScopeMismatchIsUnauthorized(t *testing.T) {
	s := newTestServer(t, false)
	key := s.apiKey(nil, models.ScopeEventWrite)

	w := s.do(http.MethodPost, "/mobile/install",
		map[string]any{"app_id": s.iosApp.ID, "platform": "ios"}, keyHeader(key))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestInstall_AppBoundKey ключ приложения не пишет в другое приложение
func TestInstall_AppBoundKey(t *testing.T) {
	s := newTestServer(t, false)
	key := s.apiKey(&s.iosApp.ID, models.ScopeInstallWrite)

	w := s.do(http.MethodPost, "/mobile/install",
		map[string]any{"app_id": s.androidApp.ID, "platform": "android"}, keyHeader(key))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/mobile/install",
		map[string]any{"app_id": s.iosApp.ID, "platform": "ios"}, keyHeader(key))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestInstall_IdempotentReplay(t *testing.T) {
	s := newTestServer(t, false)
	key := s.apiKey(nil, models.ScopeInstallWrite)
	headers := keyHeader(key)
	headers[middleware.IdempotencyHeader] = "install-1"
	body := map[string]any{"app_id": s.iosApp.ID, "platform": "ios", "device_id": "dev-9"}

	first := s.do(http.MethodPost, "/mobile/install", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	second := s.do(http.MethodPost, "/mobile/install", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, decode(t, first)["install_id"], decode(t, second)["install_id"])
	assert.Equal(t, "true", second.Header().Get(middleware.ReplayedHeader))
	assert.Len(t, s.events.All(), 1, "одна установка, одно событие INSTALL")
}

// TestEvent_InheritsInstallAttribution событие наследует атрибуцию установки;
// event_value учитывается только как число
func TestEvent_InheritsInstallAttribution(t *testing.T) {
	s := newTestServer(t, false)
	s.installs.Add(&models.Install{
		ID:          "inst_1",
		WorkspaceID: testWorkspace,
		AppID:       s.iosApp.ID,
		Platform:    models.PlatformIOS,
		Attribution: models.SnapshotFromLink(&models.TrackingLink{Source: "tiktok", Channel: "paid_social", Campaign: "spring"}),
	})
	key := s.apiKey(nil, models.ScopeEventWrite)

	w := s.do(http.MethodPost, "/events", `{
		"event_name": "purchase",
		"event_timestamp": "2025-03-15T10:00:00Z",
		"app_id": "app_ios",
		"platform": "ios",
		"install_id": "inst_1",
		"event_value": 9.99,
		"currency": "USD",
		"metadata": {"sku": "annual"}
	}`, keyHeader(key))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["accepted"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "PURCHASE", data["event_name"])
	assert.Equal(t, "inst_1", data["install_id"])
	assert.Equal(t, "tiktok", data["attribution"].(map[string]any)["source"])

	w = s.do(http.MethodPost, "/events", `{
		"event_name": "level_up",
		"event_timestamp": "2025-03-15T10:00:00Z",
		"app_id": "app_ios",
		"platform": "ios",
		"event_value": "12"
	}`, keyHeader(key))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "ORGANIC", decode(t, w)["data"].(map[string]any)["attribution"].(map[string]any)["status"])

	events := s.events.All()
	require.Len(t, events, 2)
	var purchase, custom models.Event
	for _, e := range events {
		if e.EventName == models.EventPurchase {
			purchase = e
		} else {
			custom = e
		}
	}
	require.NotNil(t, purchase.EventValue)
	assert.InDelta(t, 9.99, *purchase.EventValue, 1e-9)
	assert.JSONEq(t, `{"sku":"annual"}`, string(purchase.Metadata))
	assert.Equal(t, models.EventCustom, custom.EventName)
	assert.Nil(t, custom.EventValue)
}

func TestEvent_MissingFields(t *testing.T) {
	s := newTestServer(t, false)
	key := s.apiKey(nil, models.ScopeEventWrite)

	w := s.do(http.MethodPost, "/events", map[string]any{"app_id": "app_ios", "platform": "ios"}, keyHeader(key))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "event_name", decode(t, w)["field"])
}

func TestListEvents_RequiresSession(t *testing.T) {
	s := newTestServer(t, false)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/events", nil, nil).Code)

	w := s.do(http.MethodGet, "/events", nil, sessionHeader(s.session(models.RoleViewer)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["count"])
}

// TestCosts_BulkStopsAtFirstBadRow строка 2 с нечисловым cost_usd: строка 1 записана, строка 3 не пробовалась
func TestCosts_BulkStopsAtFirstBadRow(t *testing.T) {
	s := newTestServer(t, false)
	token := s.session(models.RoleAnalyst)

	w := s.do(http.MethodPost, "/costs", `[
		{"source":"Meta","channel":"paid_social","date":"2025-03-10","cost_usd":120.5},
		{"source":"meta","channel":"paid_social","date":"2025-03-11","cost_usd":"abc"},
		{"source":"meta","channel":"paid_social","date":"2025-03-12","cost_usd":80}
	]`, sessionHeader(token))
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	body := decode(t, w)
	assert.EqualValues(t, 2, body["row"])
	assert.EqualValues(t, 1, body["imported_count"])
	assert.Equal(t, "cost_usd", body["field"])
	assert.Contains(t, body["message"], "row 2")

	require.Len(t, s.costs.Entries, 1)
	assert.Equal(t, "meta", s.costs.Entries[0].Source)
	assert.Equal(t, 1, s.costs.Attempts)
}

// TestCosts_BulkMistypedRow строка с полем не того типа тоже называется по номеру,
// а строки до неё остаются записанными
func TestCosts_BulkMistypedRow(t *testing.T) {
	s := newTestServer(t, false)
	token := s.session(models.RoleAnalyst)

	w := s.do(http.MethodPost, "/costs", `[
		{"source":"meta","channel":"paid_social","date":"2025-03-10","cost_usd":120.5},
		{"source":42,"channel":"paid_social","date":"2025-03-11","cost_usd":10},
		{"source":"meta","channel":"paid_social","date":"2025-03-12","cost_usd":80}
	]`, sessionHeader(token))
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "invalid_row", body["error"])
	assert.EqualValues(t, 2, body["row"])
	assert.EqualValues(t, 1, body["imported_count"])
	assert.Equal(t, "source", body["field"])
	assert.Contains(t, body["message"], "row 2")

	require.Len(t, s.costs.Entries, 1)
	assert.Equal(t, 1, s.costs.Attempts)

	// строка, которая не является объектом
	w = s.do(http.MethodPost, "/costs", `[
		{"source":"tiktok","channel":"paid_social","date":"2025-03-10","cost_usd":5},
		"oops"
	]`, sessionHeader(token))
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	body = decode(t, w)
	assert.EqualValues(t, 2, body["row"])
	assert.EqualValues(t, 1, body["imported_count"])
	assert.Equal(t, "row", body["field"])
	assert.Len(t, s.costs.Entries, 2)
}

func TestCosts_SingleRowWithKey(t *testing.T) {
	s := newTestServer(t, false)
	key := s.apiKey(nil, models.ScopeCostWrite)

	w := s.do(http.MethodPost, "/costs",
		map[string]any{"source": "tiktok", "channel": "paid_social", "date": "2025-03-10", "cost_usd": 50, "app_id": "app_ios"},
		keyHeader(key))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "app_ios", data["app_id"])
	assert.EqualValues(t, 50, data["cost_usd"])

	w = s.do(http.MethodGet, "/costs", nil, sessionHeader(s.session(models.RoleViewer)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)
}

func TestCosts_ViewerCannotWrite(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(http.MethodPost, "/costs", `[]`, sessionHeader(s.session(models.RoleViewer)))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCostSync_UnknownProvider(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(http.MethodPost, "/costs/sync",
		map[string]any{"provider": "snap", "start_date": "2025-03-01", "end_date": "2025-03-07"},
		sessionHeader(s.session(models.RoleAnalyst)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "provider", decode(t, w)["field"])
}

func TestLinks_CreateAndList(t *testing.T) {
	s := newTestServer(t, false)

	body := map[string]any{"app_id": "app_ios", "source": "TikTok", "channel": "paid_social", "campaign": "Spring Launch"}
	assert.Equal(t, http.StatusForbidden,
		s.do(http.MethodPost, "/links", body, sessionHeader(s.session(models.RoleViewer))).Code)

	w := s.do(http.MethodPost, "/links", body, sessionHeader(s.session(models.RoleAnalyst)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	slug := data["slug"].(string)
	assert.Regexp(t, `^tiktok-spring-launch-[0-9a-f]{6}$`, slug)
	assert.Equal(t, trackingBase+"/r/"+slug, data["url"])

	w = s.do(http.MethodGet, "/links", nil, sessionHeader(s.session(models.RoleViewer)))
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, trackingBase+"/r/"+slug, items[0].(map[string]any)["url"])
}

func TestLinks_InternalErrorHiddenInProduction(t *testing.T) {
	s := newTestServer(t, true)
	s.links.Err = errors.New("pg: connection reset")

	w := s.do(http.MethodGet, "/links", nil, sessionHeader(s.session(models.RoleViewer)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	assert.Equal(t, "internal_error", decode(t, w)["error"])
}

func TestAttribution_Lookup(t *testing.T) {
	s := newTestServer(t, false)
	viewer := sessionHeader(s.session(models.RoleViewer))

	w := s.do(http.MethodPost, "/attribution", map[string]any{}, viewer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/attribution", map[string]any{"install_id": "nope"}, viewer)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestIngestionKeys_Lifecycle выпуск ключа, запись постбэка, отзыв, отказ
func TestIngestionKeys_Lifecycle(t *testing.T) {
	s := newTestServer(t, false)
	admin := sessionHeader(s.session(models.RoleAdmin))

	assert.Equal(t, http.StatusForbidden,
		s.do(http.MethodGet, "/ingestion-keys", nil, sessionHeader(s.session(models.RoleAnalyst))).Code)

	w := s.do(http.MethodPost, "/ingestion-keys",
		map[string]any{"name": "skan relay", "scopes": []string{"mobile:skan:write"}}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	plaintext := data["key_plaintext"].(string)
	keyID := data["id"].(string)
	assert.True(t, strings.HasPrefix(plaintext, "st_live_"))
	assert.NotContains(t, w.Body.String(), "key_hash")

	skan := map[string]any{
		"app_id":           "app_ios",
		"raw_payload":      map[string]any{"version": "4.0", "conversion-value": 12},
		"conversion_value": 12.4,
	}
	w = s.do(http.MethodPost, "/mobile/skan", skan, keyHeader(plaintext))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, s.skan.Postbacks, 1)
	require.NotNil(t, s.skan.Postbacks[0].ConversionValue)
	assert.EqualValues(t, 12, *s.skan.Postbacks[0].ConversionValue)

	w = s.do(http.MethodGet, "/ingestion-keys", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.Len(t, list["data"], 1)
	assert.Len(t, list["allowed_scopes"], len(models.AllScopes))

	w = s.do(http.MethodDelete, "/ingestion-keys/"+keyID, nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = s.do(http.MethodPost, "/mobile/skan", skan, keyHeader(plaintext))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodDelete, "/ingestion-keys/missing", nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSkan_RequiresRawPayload(t *testing.T) {
	s := newTestServer(t, false)
	key := s.apiKey(nil, models.ScopeSkanWrite)

	w := s.do(http.MethodPost, "/mobile/skan", map[string]any{"app_id": "app_ios", "raw_payload": nil}, keyHeader(key))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "raw_payload", decode(t, w)["field"])
}
