package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"collab-tracker-backend/pkg/logger"

	"github.com/caarlos0/env/v11"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"3000"`

	// 数据库配置
	UseLocalDB     bool          `env:"USE_LOCAL_DB" envDefault:"true"`
	LocalDataDir   string        `env:"LOCAL_DATA_DIR" envDefault:"./data"`
	PostgresDSN    string        `env:"POSTGRES_DSN"`
	QueryTimeout   time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"5s"`
	MigrateOnStart bool          `env:"MIGRATE_ON_START" envDefault:"false"`

	// JWT配置
	JWTSecret string `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`

	// 邀请配置
	BaseURL       string        `env:"BASE_URL" envDefault:"http://localhost:3000"`
	InvitationTTL time.Duration `env:"INVITATION_TTL" envDefault:"168h"`

	// 应用配置覆盖文件 (YAML)
	AppConfigFile string `env:"APP_CONFIG_FILE"`

	// Redis 限流
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	RateLimit       int           `env:"RATE_LIMIT" envDefault:"30"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// RabbitMQ 事件
	MQURL string `env:"MQ_URL"`

	// CORS配置
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// 调试配置
	Debug bool `env:"DEBUG" envDefault:"false"`
}

// LoadConfig 加载配置
func LoadConfig() (*Config, error) {
	// 根据环境加载对应的 .env 文件
	switch os.Getenv("ENVIRONMENT") {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	cfg.PostgresDSN = strings.TrimSpace(cfg.PostgresDSN)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(o)
	}

	// 环境特定配置
	if cfg.IsProduction() {
		// 生产环境强制使用外部数据库
		if cfg.PostgresDSN != "" {
			cfg.UseLocalDB = false
		} else {
			logger.L().Warn("production environment using local file database, configure POSTGRES_DSN")
		}
		// 生产环境关闭调试
		cfg.Debug = false
	}

	return cfg, nil
}

// Cached config (initialized once per process)
var (
	cachedConfig *Config
	cachedErr    error
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
func GetCached() (*Config, error) {
	configOnce.Do(func() {
		cachedConfig, cachedErr = LoadConfig()
	})
	return cachedConfig, cachedErr
}

// Validate 验证配置
func (c *Config) Validate() error {
	// 验证端口
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// 验证JWT密钥
	if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		logger.L().Warn("using default JWT secret (not recommended for production)")
	}

	// 验证数据库配置
	if !c.UseLocalDB && c.PostgresDSN == "" {
		return fmt.Errorf("incomplete database configuration: set POSTGRES_DSN or USE_LOCAL_DB=true")
	}

	if c.InvitationTTL <= 0 {
		return fmt.Errorf("INVITATION_TTL must be positive, got %s", c.InvitationTTL)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT must be positive, got %s", c.QueryTimeout)
	}
	if c.RedisAddr != "" && (c.RateLimit <= 0 || c.RateLimitWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT and RATE_LIMIT_WINDOW must be positive when REDIS_ADDR is set")
	}

	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// loadEnvFile 加载 .env 文件到环境变量
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return // 文件不存在或无法打开，静默返回
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// 解析 KEY=VALUE 格式
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// 移除值两端的引号（如果有）
		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		// 只有当环境变量不存在时才设置
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
