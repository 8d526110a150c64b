package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Forecast    ForecastConfig  `mapstructure:"forecast"`
	Retrieval   RetrievalConfig `mapstructure:"retrieval"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Security    SecurityConfig  `mapstructure:"security"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ForecastConfig controls series preparation and model fitting.
type ForecastConfig struct {
	Strategy                string `mapstructure:"strategy"`
	HorizonDays             int    `mapstructure:"horizon_days"`
	ReportHorizonDays       int    `mapstructure:"report_horizon_days"`
	MinHistoryPoints        int    `mapstructure:"min_history_points"`
	HolidayEffectWindowDays int    `mapstructure:"holiday_effect_window_days"`
	Workers                 int    `mapstructure:"workers"`
	BatchTimeout            string `mapstructure:"batch_timeout"`
	CacheTTL                string `mapstructure:"cache_ttl"`
}

// RetrievalConfig controls the thaw-cycle reconciliation.
type RetrievalConfig struct {
	LossFraction float64 `mapstructure:"loss_fraction"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type SecurityConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry  string `mapstructure:"jwt_expiry"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind specific environment variables
	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	environment := strings.ToLower(config.Environment)

	// Validate JWT secret in non-development environments
	if environment != "development" && config.Security.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	// Validate JWT expiry duration
	if config.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(config.Security.JWTExpiry); err != nil {
			return nil, fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	// Validate bcrypt cost parameter
	if config.Security.BcryptCost < bcrypt.MinCost || config.Security.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, config.Security.BcryptCost)
	}

	if err := validatePipeline(&config); err != nil {
		return nil, err
	}

	// Update config with normalized environment
	config.Environment = environment

	return &config, nil
}

// validatePipeline rejects configurations the pipeline cannot run with. A
// loss fraction of 1 or more would divide away the compensation formula, so
// it is a configuration error rather than a runtime condition.
func validatePipeline(config *Config) error {
	if f := config.Retrieval.LossFraction; f < 0 || f >= 1 {
		return fmt.Errorf("retrieval loss fraction must be in [0, 1), got %v", f)
	}
	if config.Forecast.HorizonDays < 1 {
		return fmt.Errorf("forecast horizon must be at least 1 day, got %d", config.Forecast.HorizonDays)
	}
	if config.Forecast.MinHistoryPoints < 1 {
		return fmt.Errorf("minimum history points must be at least 1, got %d", config.Forecast.MinHistoryPoints)
	}
	if config.Forecast.BatchTimeout != "" {
		if _, err := time.ParseDuration(config.Forecast.BatchTimeout); err != nil {
			return fmt.Errorf("invalid batch timeout duration: %w", err)
		}
	}
	if config.Forecast.CacheTTL != "" {
		if _, err := time.ParseDuration(config.Forecast.CacheTTL); err != nil {
			return fmt.Errorf("invalid forecast cache TTL: %w", err)
		}
	}
	return nil
}

// BatchTimeoutDuration returns the parsed batch timeout, or zero when unset.
func (c *ForecastConfig) BatchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.BatchTimeout)
	if err != nil {
		return 0
	}
	return d
}

// CacheTTLDuration returns the parsed forecast cache TTL.
func (c *ForecastConfig) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "thawcast")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Forecast
	viper.SetDefault("forecast.strategy", "seasonal")
	viper.SetDefault("forecast.horizon_days", 7)
	viper.SetDefault("forecast.report_horizon_days", 30)
	viper.SetDefault("forecast.min_history_points", 10)
	viper.SetDefault("forecast.holiday_effect_window_days", 1)
	viper.SetDefault("forecast.workers", 4)
	viper.SetDefault("forecast.batch_timeout", "5m")
	viper.SetDefault("forecast.cache_ttl", "1h")

	// Retrieval
	viper.SetDefault("retrieval.loss_fraction", 0.15)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	// Security
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.bcrypt_cost", 12)
}
