package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/codec"
	"github.com/SergeiKhy/sourcetrace/internal/handler"
	"github.com/SergeiKhy/sourcetrace/internal/metrics"
	"github.com/SergeiKhy/sourcetrace/internal/middleware"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/provider"
	"github.com/SergeiKhy/sourcetrace/internal/service"
	"github.com/SergeiKhy/sourcetrace/internal/service/mocks"
)

const (
	testWorkspace = "ws_1"
	fallbackURL   = "https://sourcetrace.app"
	trackingBase  = "https://go.sourcetrace.app"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func strPtr(s string) *string { return &s }

type noopUsage struct{}

func (noopUsage) Start()                   {}
func (noopUsage) Stop()                    {}
func (noopUsage) Record(string, time.Time) {}

// testServer полный роутер поверх in-memory репозиториев
type testServer struct {
	t       *testing.T
	router  *gin.Engine
	metrics *metrics.Metrics

	apps        *mocks.MockAppRepository
	links       *mocks.MockLinkRepository
	clicks      *mocks.MockClickRepository
	events      *mocks.MockEventRepository
	installs    *mocks.MockInstallRepository
	skan        *mocks.MockSkanRepository
	costs       *mocks.MockCostRepository
	keys        *mocks.MockAPIKeyRepository
	sessions    *mocks.MockSessionRepository
	idempotency *mocks.MockIdempotencyStore

	iosApp     *models.MobileApp
	androidApp *models.MobileApp
	foreignApp *models.MobileApp
}

func newTestServer(t *testing.T, production bool) *testServer {
	t.Helper()
	logger := zap.NewNop()

	s := &testServer{
		t:       t,
		metrics: metrics.New("test"),
		iosApp: &models.MobileApp{
			ID: "app_ios", WorkspaceID: testWorkspace, Name: "Habit iOS",
			AppStoreID: strPtr("1234567890"),
		},
		androidApp: &models.MobileApp{
			ID: "app_android", WorkspaceID: testWorkspace, Name: "Habit Android",
			AndroidPackageName: strPtr("com.example.habit"),
		},
		foreignApp: &models.MobileApp{ID: "app_foreign", WorkspaceID: "ws_2", Name: "Other"},
	}
	s.apps = mocks.NewMockAppRepository(s.iosApp, s.androidApp, s.foreignApp)
	s.links = mocks.NewMockLinkRepository()
	cache := mocks.NewMockLinkCache()
	s.clicks = mocks.NewMockClickRepository(s.links)
	s.events = mocks.NewMockEventRepository()
	s.installs = mocks.NewMockInstallRepository(s.events)
	s.skan = mocks.NewMockSkanRepository()
	s.costs = mocks.NewMockCostRepository()
	s.keys = mocks.NewMockAPIKeyRepository()
	s.sessions = mocks.NewMockSessionRepository()
	s.idempotency = mocks.NewMockIdempotencyStore()

	svc := handler.Services{
		Tracker:   service.NewClickTracker(s.links, cache, s.clicks, nil, fallbackURL, time.Hour, nil, logger, s.metrics),
		Links:     service.NewLinkService(s.apps, s.links, cache, trackingBase, time.Hour, nil, logger),
		Installs:  service.NewInstallService(s.apps, s.links, s.clicks, s.installs, nil, logger, s.metrics),
		Events:    service.NewEventService(s.apps, s.installs, s.events, nil, logger, s.metrics),
		Skan:      service.NewSkanService(s.apps, s.skan, logger, s.metrics),
		Costs:     service.NewCostService(s.apps, s.costs, provider.NewRegistry(), logger, s.metrics),
		Dashboard: service.NewDashboardService(&mocks.MockStatsRepository{}, nil),
		Keys:      service.NewIngestionKeyService(s.apps, s.keys, nil, logger),
	}
	auth := handler.Auth{
		Ingestion:   service.NewIngestionAuthenticator(s.keys, noopUsage{}, nil, logger, s.metrics),
		Sessions:    service.NewSessionResolver(s.sessions, nil),
		Idempotency: s.idempotency,
	}

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{RequestsPerSecond: 1000, BurstSize: 1000})
	t.Cleanup(rl.Stop)

	s.router = handler.NewRouter(svc, auth, rl, s.metrics, handler.RouterConfig{
		FallbackURL: fallbackURL,
		Production:  production,
	}, logger)
	return s
}

// apiKey выпускает ингест-ключ в тестовом воркспейсе
func (s *testServer) apiKey(appID *string, scopes ...models.Scope) string {
	s.t.Helper()
	material, err := codec.NewAPIKeyMaterial()
	require.NoError(s.t, err)

	names := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		names = append(names, string(sc))
	}
	require.NoError(s.t, s.keys.Create(s.t.Context(), &models.IngestionAPIKey{
		WorkspaceID: testWorkspace,
		AppID:       appID,
		Name:        "test",
		KeyPrefix:   material.Prefix,
		KeyHash:     material.Hash,
		Scopes:      names,
		IsActive:    true,
	}))
	return material.Plaintext
}

// session заводит сессию с ролью и возвращает токен
func (s *testServer) session(role models.Role) string {
	token := "session-" + role.String()
	s.sessions.Add(codec.HashAPIKey(token), models.Membership{
		UserID:      "user_" + role.String(),
		WorkspaceID: testWorkspace,
		Role:        role,
	}, time.Now().Add(time.Hour))
	return token
}

func (s *testServer) addLink(app *models.MobileApp, slug, source string) *models.TrackingLink {
	s.t.Helper()
	link := &models.TrackingLink{
		WorkspaceID: app.WorkspaceID,
		AppID:       app.ID,
		Slug:        slug,
		Source:      source,
		Channel:     "paid_social",
		Campaign:    "spring",
		App:         app,
		CreatedAt:   time.Now(),
	}
	require.NoError(s.t, s.links.Create(s.t.Context(), link))
	return link
}

func (s *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func keyHeader(key string) map[string]string {
	return map[string]string{service.HeaderSourceTraceKey: key}
}

func sessionHeader(token string) map[string]string {
	return map[string]string{middleware.SessionHeader: token}
}
