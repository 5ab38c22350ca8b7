package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Tracking  TrackingConfig
	Providers ProvidersConfig
}

type AppConfig struct {
	Env  string
	Port string
}

// IsProduction включает скрытие деталей внутренних ошибок в ответах
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

type TrackingConfig struct {
	FallbackURL     string        // куда редиректить неизвестные слаги
	BaseURL         string        // публичный адрес для ссылок вида {base}/r/{slug}
	GeoIPDBPath     string        // опциональная база MaxMind GeoLite2-Country/City
	LinkCacheTTL    time.Duration // TTL кэша ссылок в Redis
	KeyUsageWorkers int           // воркеры записи last_used_at
}

type ProvidersConfig struct {
	MetaAccessToken    string
	MetaAdAccountID    string
	MetaBaseURL        string
	TikTokAccessToken  string
	TikTokAdvertiserID string
	TikTokBaseURL      string
	HTTPTimeout        time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// .env опционален: в контейнере всё приходит через окружение
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	cfg.App.Env = viper.GetString("APP_ENV")
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	cfg.App.Port = viper.GetString("APP_PORT")
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")
	cfg.Redis.Password = viper.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = viper.GetInt("REDIS_DB")

	// Rate limit config
	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 50
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 100
	}

	cfg.Tracking.FallbackURL = viper.GetString("APP_FALLBACK_URL")
	if cfg.Tracking.FallbackURL == "" {
		cfg.Tracking.FallbackURL = "https://sourcetrace.app"
	}
	cfg.Tracking.BaseURL = viper.GetString("TRACKING_BASE_URL")
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "http://localhost:" + cfg.App.Port
	}
	cfg.Tracking.GeoIPDBPath = viper.GetString("GEOIP_DB_PATH")
	cfg.Tracking.LinkCacheTTL = viper.GetDuration("LINK_CACHE_TTL")
	if cfg.Tracking.LinkCacheTTL == 0 {
		cfg.Tracking.LinkCacheTTL = 24 * time.Hour
	}
	cfg.Tracking.KeyUsageWorkers = viper.GetInt("KEY_USAGE_WORKERS")
	if cfg.Tracking.KeyUsageWorkers == 0 {
		cfg.Tracking.KeyUsageWorkers = 2
	}

	cfg.Providers.MetaAccessToken = viper.GetString("META_ACCESS_TOKEN")
	cfg.Providers.MetaAdAccountID = viper.GetString("META_AD_ACCOUNT_ID")
	cfg.Providers.MetaBaseURL = viper.GetString("META_API_BASE_URL")
	cfg.Providers.TikTokAccessToken = viper.GetString("TIKTOK_ACCESS_TOKEN")
	cfg.Providers.TikTokAdvertiserID = viper.GetString("TIKTOK_ADVERTISER_ID")
	cfg.Providers.TikTokBaseURL = viper.GetString("TIKTOK_API_BASE_URL")
	cfg.Providers.HTTPTimeout = viper.GetDuration("PROVIDER_HTTP_TIMEOUT")
	if cfg.Providers.HTTPTimeout == 0 {
		cfg.Providers.HTTPTimeout = 30 * time.Second
	}

	return &cfg, nil
}
