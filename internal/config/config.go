package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                    string        `mapstructure:"PORT"`
	Env                     string        `mapstructure:"ENV"`
	DatabaseURL             string        `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsSchema        string        `mapstructure:"MIGRATIONS_SCHEMA"`
	RedisURL                string        `mapstructure:"REDIS_URL"`
	SessionSecret           string        `mapstructure:"SESSION_SECRET"`
	SessionTTL              time.Duration `mapstructure:"SESSION_TTL"`
	SessionCookie           string        `mapstructure:"SESSION_COOKIE"`
	BusinessTimezone        string        `mapstructure:"BUSINESS_TIMEZONE"`
	NoShowRequiresPastStart bool          `mapstructure:"NO_SHOW_REQUIRES_PAST_START"`
	CORSOrigins             []string      `mapstructure:"CORS_ORIGINS"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	LogFile                 string        `mapstructure:"LOG_FILE"`
	LogMaxSizeMB            int           `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups           int           `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays           int           `mapstructure:"LOG_MAX_AGE_DAYS"`
}

// minSecretLen is the shortest SESSION_SECRET accepted outside development.
const minSecretLen = 32

// devSessionSecret signs development cookies when SESSION_SECRET is unset.
const devSessionSecret = "development-only-session-secret-do-not-use"

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_SCHEMA",
	"REDIS_URL", "SESSION_SECRET", "SESSION_TTL", "SESSION_COOKIE",
	"BUSINESS_TIMEZONE", "NO_SHOW_REQUIRES_PAST_START", "CORS_ORIGINS",
	"LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_SCHEMA", "public")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SESSION_COOKIE", "_portal_session")
	v.SetDefault("BUSINESS_TIMEZONE", "UTC")
	v.SetDefault("NO_SHOW_REQUIRES_PAST_START", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SessionSecret == "" && cfg.IsDev() {
		cfg.SessionSecret = devSessionSecret
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves BUSINESS_TIMEZONE. Business hours are evaluated in it.
func (c *Config) Location() (*time.Location, error) {
	if c.BusinessTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run. Outside development
// SESSION_SECRET must be set and at least 32 bytes long.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required when ENV=%q", c.Env)
		}
		if len(c.SessionSecret) < minSecretLen {
			return fmt.Errorf("SESSION_SECRET must be at least %d bytes, got %d", minSecretLen, len(c.SessionSecret))
		}
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.SessionCookie == "" {
		return fmt.Errorf("SESSION_COOKIE must not be empty")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	return nil
}
