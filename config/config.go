// Package config loads pipeline configuration from an optional YAML file,
// a .env file and PIPELINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ohlcv-pipeline/internal/model"
)

// EnvPrefix prefixes every environment override, e.g. PIPELINE_STORAGE_SQLITE_PATH.
const EnvPrefix = "PIPELINE"

// Config holds all pipeline configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Source  SourceConfig  `mapstructure:"source"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig locates the medallion store.
type StorageConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
	ExportDir  string `mapstructure:"export_dir"`
}

// RedisConfig configures watermark publication. Disabled by default.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IngestConfig selects what Bronze ingestion fetches.
type IngestConfig struct {
	Equities       string `mapstructure:"equities"` // "AAPL,AMZN"
	Crypto         string `mapstructure:"crypto"`   // "bitcoin:BTC,ethereum:ETH"
	LookbackMonths int    `mapstructure:"lookback_months"`
	Concurrency    int    `mapstructure:"concurrency"`
}

// SourceConfig tunes the price source clients.
type SourceConfig struct {
	CoinGeckoURL    string        `mapstructure:"coingecko_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryWait       time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait    time.Duration `mapstructure:"retry_max_wait"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerReset    time.Duration `mapstructure:"breaker_reset"`
}

// MetricsConfig configures the Pushgateway push at the end of a run.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// AlertsConfig configures failure and completion alerts.
type AlertsConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads .env (if present), then the config file at path (if non-empty),
// then applies PIPELINE_* environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.sqlite_path", "data/pipeline.db")
	v.SetDefault("storage.export_dir", "data/export")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ingest.equities", "AAPL,AMZN,META,NFLX,GOOGL")
	v.SetDefault("ingest.crypto", "bitcoin:BTC,ethereum:ETH")
	v.SetDefault("ingest.lookback_months", 6)
	v.SetDefault("ingest.concurrency", 4)

	v.SetDefault("source.coingecko_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("source.timeout", "15s")
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.retry_wait", "1s")
	v.SetDefault("source.retry_max_wait", "10s")
	v.SetDefault("source.breaker_failures", 3)
	v.SetDefault("source.breaker_reset", "1m")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "ohlcv_pipeline")

	v.SetDefault("alerts.webhook_url", "")

	v.SetDefault("logging.level", "info")
}

// Symbols returns the configured equities followed by the crypto symbols.
func (c *Config) Symbols() []model.Symbol {
	syms := model.ParseSymbols(c.Ingest.Equities, model.Equity)
	return append(syms, model.ParseSymbols(c.Ingest.Crypto, model.Crypto)...)
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	if len(c.Symbols()) == 0 {
		return fmt.Errorf("ingest.equities and ingest.crypto are both empty")
	}
	if c.Ingest.LookbackMonths < 1 {
		return fmt.Errorf("ingest.lookback_months must be at least 1")
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("ingest.concurrency must be at least 1")
	}

	if c.Source.CoinGeckoURL == "" {
		return fmt.Errorf("source.coingecko_url is required")
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	if c.Source.MaxRetries < 0 {
		return fmt.Errorf("source.max_retries must not be negative")
	}
	if c.Source.RetryWait <= 0 || c.Source.RetryMaxWait < c.Source.RetryWait {
		return fmt.Errorf("source.retry_wait must be positive and not exceed source.retry_max_wait")
	}
	if c.Source.BreakerFailures < 1 {
		return fmt.Errorf("source.breaker_failures must be at least 1")
	}
	if c.Source.BreakerReset <= 0 {
		return fmt.Errorf("source.breaker_reset must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	return nil
}
