package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Server
	Port     int    `mapstructure:"PORT"`
	Env      string `mapstructure:"APP_ENV"` // development | production
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Terminal
	PDVID            int `mapstructure:"PDV_ID"`
	CurrencyDecimals int `mapstructure:"CURRENCY_DECIMALS"`
	HistoryLimit     int `mapstructure:"HISTORY_LIMIT"`
	ShiftPollSeconds int `mapstructure:"SHIFT_POLL_SECONDS"` // 0 disables the poller

	// Backend ledger
	BackendURL            string `mapstructure:"BACKEND_URL"`
	BackendToken          string `mapstructure:"BACKEND_TOKEN"`
	BackendTimeoutSeconds int    `mapstructure:"BACKEND_TIMEOUT_SECONDS"`

	// Local persistence
	StoreDriver string `mapstructure:"STORE_DRIVER"` // memory | redis | sqlite | postgres
	StoreDSN    string `mapstructure:"STORE_DSN"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	// Auth
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"` // comma separated UI origins

	// Receipts
	ReceiptBusinessName string `mapstructure:"RECEIPT_BUSINESS_NAME"`
	ReceiptLocale       string `mapstructure:"RECEIPT_LOCALE"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Sensible defaults for development
	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PDV_ID", 1)
	v.SetDefault("CURRENCY_DECIMALS", 2)
	v.SetDefault("HISTORY_LIMIT", 50)
	v.SetDefault("SHIFT_POLL_SECONDS", 15)
	v.SetDefault("BACKEND_URL", "http://localhost:8000")
	v.SetDefault("BACKEND_TOKEN", "")
	v.SetDefault("BACKEND_TIMEOUT_SECONDS", 10)
	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("STORE_DSN", "./data/pos.db")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RECEIPT_BUSINESS_NAME", "POS")
	v.SetDefault("RECEIPT_LOCALE", "es-CO")

	// Optional .env file for local development; does not fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AllowedOrigins splits CORS_ORIGINS into its entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate rejects settings the terminal cannot run with.
func (c *Config) Validate() error {
	if c.PDVID <= 0 {
		return fmt.Errorf("config: PDV_ID must be positive, got %d", c.PDVID)
	}
	if c.CurrencyDecimals < 0 || c.CurrencyDecimals > 4 {
		return fmt.Errorf("config: CURRENCY_DECIMALS must be between 0 and 4, got %d", c.CurrencyDecimals)
	}
	switch c.StoreDriver {
	case "memory", "redis", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("config: BACKEND_URL is required")
	}
	return nil
}
