package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/config"
	"github.com/SergeiKhy/sourcetrace/internal/geo"
	"github.com/SergeiKhy/sourcetrace/internal/handler"
	"github.com/SergeiKhy/sourcetrace/internal/logger"
	"github.com/SergeiKhy/sourcetrace/internal/metrics"
	"github.com/SergeiKhy/sourcetrace/internal/middleware"
	"github.com/SergeiKhy/sourcetrace/internal/provider"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
	"github.com/SergeiKhy/sourcetrace/internal/service"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		zapLogger.Fatal("Failed to apply schema", zap.Error(err))
	}
	zapLogger.Info("Connected to PostgreSQL")

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	zapLogger.Info("Connected to Redis")

	// База GeoIP опциональна
	locator, err := geo.Open(cfg.Tracking.GeoIPDBPath)
	if err != nil {
		zapLogger.Fatal("Failed to open GeoIP database", zap.String("path", cfg.Tracking.GeoIPDBPath), zap.Error(err))
	}
	defer locator.Close()

	m := metrics.New("sourcetrace")

	// Репозитории
	appRepo := repository.NewAppRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	installRepo := repository.NewInstallRepository(db)
	eventRepo := repository.NewEventRepository(db)
	skanRepo := repository.NewSkanRepository(db)
	costRepo := repository.NewCostRepository(db)
	keyRepo := repository.NewAPIKeyRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	linkCache := repository.NewLinkCache(redis)
	idempotencyStore := repository.NewIdempotencyStore(redis)

	// Рекламные провайдеры
	providerClient := &http.Client{Timeout: cfg.Providers.HTTPTimeout}
	providers := provider.NewRegistry(
		provider.NewMetaClient(cfg.Providers.MetaAccessToken, cfg.Providers.MetaAdAccountID, cfg.Providers.MetaBaseURL, providerClient),
		provider.NewTikTokClient(cfg.Providers.TikTokAccessToken, cfg.Providers.TikTokAdvertiserID, cfg.Providers.TikTokBaseURL, providerClient),
	)

	// Запись last_used_at ингест-ключей (Worker Pool)
	keyUsage := service.NewKeyUsageRecorder(keyRepo, cfg.Tracking.KeyUsageWorkers, zapLogger, m)
	keyUsage.Start()
	defer keyUsage.Stop()

	services := handler.Services{
		Tracker: service.NewClickTracker(linkRepo, linkCache, clickRepo, locator,
			cfg.Tracking.FallbackURL, cfg.Tracking.LinkCacheTTL, nil, zapLogger, m),
		Links: service.NewLinkService(appRepo, linkRepo, linkCache,
			cfg.Tracking.BaseURL, cfg.Tracking.LinkCacheTTL, nil, zapLogger),
		Installs:  service.NewInstallService(appRepo, linkRepo, clickRepo, installRepo, nil, zapLogger, m),
		Events:    service.NewEventService(appRepo, installRepo, eventRepo, nil, zapLogger, m),
		Skan:      service.NewSkanService(appRepo, skanRepo, zapLogger, m),
		Costs:     service.NewCostService(appRepo, costRepo, providers, zapLogger, m),
		Dashboard: service.NewDashboardService(statsRepo, nil),
		Keys:      service.NewIngestionKeyService(appRepo, keyRepo, nil, zapLogger),
	}
	auth := handler.Auth{
		Ingestion:   service.NewIngestionAuthenticator(keyRepo, keyUsage, nil, zapLogger, m),
		Sessions:    service.NewSessionResolver(sessionRepo, nil),
		Idempotency: idempotencyStore,
	}

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigFrom(cfg.RateLimit))
	defer rateLimiter.Stop()

	// Настройка роутера
	router := handler.NewRouter(services, auth, rateLimiter, m, handler.RouterConfig{
		FallbackURL: cfg.Tracking.FallbackURL,
		Production:  cfg.App.IsProduction(),
	}, zapLogger)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLogger.Info("Server starting", zap.String("port", cfg.App.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// отложенные Stop/Close отработают после Shutdown: ключи успеют дописать last_used_at
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}
