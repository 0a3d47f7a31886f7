package server

import (
	"context"
	"fmt"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/events"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/ratelimit"

	"go.uber.org/zap"
)

// Deps 路由依赖
type Deps struct {
	DB        database.DatabaseInterface
	Publisher events.Publisher
	Limiter   ratelimit.Limiter
	AppConfig models.AppConfig
	Logger    *zap.Logger
}

func databaseConfig(cfg *config.Config) database.DatabaseConfig {
	return database.DatabaseConfig{
		UseLocalDB:   cfg.UseLocalDB,
		LocalDataDir: cfg.LocalDataDir,
		PostgresDSN:  cfg.PostgresDSN,
		QueryTimeout: cfg.QueryTimeout,
		Debug:        cfg.Debug,
	}
}

// OpenDatabase 获取池化的数据库连接，必要时应用表结构
func OpenDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (database.DatabaseInterface, error) {
	db, err := database.GetDatabase(ctx, databaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if pg, ok := db.(*database.PostgresDatabase); ok && cfg.MigrateOnStart {
		if err := database.Migrate(ctx, pg.DB()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema applied")
	}
	return db, nil
}

// NewPublisher 连接 RabbitMQ；未配置或连接失败时退化为 Noop
func NewPublisher(cfg *config.Config, log *zap.Logger) events.Publisher {
	if cfg.MQURL == "" {
		return events.Noop{}
	}
	p, err := events.NewAMQPPublisher(cfg.MQURL)
	if err != nil {
		log.Warn("event publisher unavailable, events disabled", zap.Error(err))
		return events.Noop{}
	}
	log.Info("event publisher connected", zap.String("exchange", events.ExchangeName))
	return p
}

// NewLimiter 选择限流实现：Redis 共享窗口，否则进程内窗口
func NewLimiter(cfg *config.Config, log *zap.Logger) ratelimit.Limiter {
	if cfg.RateLimit <= 0 {
		return ratelimit.Unlimited{}
	}
	if cfg.RedisAddr != "" {
		rdb := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		return ratelimit.NewRedisLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, log)
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimit, cfg.RateLimitWindow)
}

// LoadAppConfigDefaults reads the YAML override file, falling back to the
// built-in defaults when it cannot be read.
func LoadAppConfigDefaults(cfg *config.Config, log *zap.Logger) models.AppConfig {
	defaults, err := config.LoadAppConfigFile(cfg.AppConfigFile)
	if err != nil {
		log.Warn("app config file ignored", zap.String("path", cfg.AppConfigFile), zap.Error(err))
		return models.DefaultAppConfig()
	}
	return defaults
}
