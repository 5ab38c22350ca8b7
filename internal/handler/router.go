package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/metrics"
	"github.com/SergeiKhy/sourcetrace/internal/middleware"
	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

// Services все сервисы, которые обслуживает HTTP-слой
type Services struct {
	Tracker   service.ClickTracker
	Links     service.LinkService
	Installs  service.InstallService
	Events    service.EventService
	Skan      service.SkanService
	Costs     service.CostService
	Dashboard service.DashboardService
	Keys      service.IngestionKeyService
}

// Auth проверка вызывающей стороны и защита от повторов
type Auth struct {
	Ingestion   service.IngestionAuthenticator
	Sessions    service.SessionResolver
	Idempotency repository.IdempotencyStore
}

type RouterConfig struct {
	FallbackURL string
	Production  bool
}

func NewRouter(
	svc Services,
	auth Auth,
	rateLimiter *middleware.RateLimiter,
	m *metrics.Metrics,
	cfg RouterConfig,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger, m))

	ingestionKey := middleware.NewIngestionKey(auth.Ingestion, logger)
	session := middleware.NewSession(auth.Sessions, logger)
	idempotency := middleware.Idempotency(auth.Idempotency, logger)
	byIP := rateLimiter.Middleware()
	byKey := rateLimiter.MiddlewareWithKey(middleware.ByIngestionKey)

	redirectHandler := NewRedirectHandler(svc.Tracker, cfg.FallbackURL, logger)
	ingestionHandler := NewIngestionHandler(svc.Installs, svc.Events, svc.Skan, cfg.Production, logger)
	costHandler := NewCostHandler(svc.Costs, cfg.Production, logger)
	linkHandler := NewLinkHandler(svc.Links, svc.Installs, cfg.Production, logger)
	dashboardHandler := NewDashboardHandler(svc.Dashboard, cfg.Production, logger)
	keyHandler := NewKeyHandler(svc.Keys, cfg.Production, logger)

	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Редирект по трекинговой ссылке, без аутентификации
	router.GET("/r/:slug", byIP, redirectHandler.Redirect)

	// Server-to-server: ингест-ключ, лимит по ключу, идемпотентность
	router.POST("/mobile/install",
		ingestionKey.Require(models.ScopeInstallWrite), byKey, idempotency, ingestionHandler.ReportInstall)
	router.POST("/events",
		ingestionKey.Require(models.ScopeEventWrite), byKey, idempotency, ingestionHandler.TrackEvent)
	router.POST("/mobile/skan",
		ingestionKey.Require(models.ScopeSkanWrite), byKey, idempotency, ingestionHandler.CaptureSkan)
	router.POST("/costs",
		middleware.KeyOrSession(ingestionKey, session, models.ScopeCostWrite, models.RoleAnalyst),
		byKey, costHandler.CreateCosts)

	// Кабинет: сессия с ролью
	dashboard := router.Group("/", byIP)
	{
		dashboard.GET("/events", session.Require(models.RoleViewer), ingestionHandler.ListEvents)
		dashboard.GET("/costs", session.Require(models.RoleViewer), costHandler.ListCosts)
		dashboard.POST("/costs/sync", session.Require(models.RoleAnalyst), costHandler.SyncCosts)

		dashboard.POST("/links", session.Require(models.RoleAnalyst), linkHandler.CreateLink)
		dashboard.GET("/links", session.Require(models.RoleViewer), linkHandler.ListLinks)
		dashboard.POST("/attribution", session.Require(models.RoleViewer), linkHandler.GetAttribution)

		dashboard.GET("/dashboard/metrics", session.Require(models.RoleViewer), dashboardHandler.Metrics)
		dashboard.GET("/dashboard/channels", session.Require(models.RoleViewer), dashboardHandler.Channels)

		admin := dashboard.Group("/ingestion-keys", session.Require(models.RoleAdmin))
		admin.POST("", keyHandler.CreateKey)
		admin.GET("", keyHandler.ListKeys)
		admin.DELETE("/:id", keyHandler.RevokeKey)
	}

	return router
}
