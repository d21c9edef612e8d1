package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	ServerURL           string        `mapstructure:"SERVER_URL"`
	MessagePollInterval time.Duration `mapstructure:"MESSAGE_POLL_INTERVAL"`
	NotifyPollInterval  time.Duration `mapstructure:"NOTIFICATION_POLL_INTERVAL"`
	MaxAttachmentBytes  int64         `mapstructure:"MAX_ATTACHMENT_BYTES"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SERVER_URL", "http://localhost:8000")
	v.SetDefault("MESSAGE_POLL_INTERVAL", "2s")
	v.SetDefault("NOTIFICATION_POLL_INTERVAL", "15s")
	v.SetDefault("MAX_ATTACHMENT_BYTES", 50*1024*1024)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("SERVER_URL")
	v.BindEnv("MESSAGE_POLL_INTERVAL")
	v.BindEnv("NOTIFICATION_POLL_INTERVAL")
	v.BindEnv("MAX_ATTACHMENT_BYTES")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Development mode can
// fall back to in-memory repositories, but production must have a database,
// and the poll intervals must be positive or the tickers would spin.
func (c *Config) Validate() error {
	if c.IsProduction() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if c.MessagePollInterval <= 0 {
		return fmt.Errorf("MESSAGE_POLL_INTERVAL must be positive, got %s", c.MessagePollInterval)
	}
	if c.NotifyPollInterval <= 0 {
		return fmt.Errorf("NOTIFICATION_POLL_INTERVAL must be positive, got %s", c.NotifyPollInterval)
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("MAX_ATTACHMENT_BYTES must be positive, got %d", c.MaxAttachmentBytes)
	}
	return nil
}
