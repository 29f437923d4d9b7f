/*
Package config loads server configuration.

PURPOSE:
  One Config struct for the server binary, assembled in layers:

    1. built-in defaults
    2. YAML file (path from -config or TUITION_CONFIG)
    3. .env file in the working directory, if present
    4. environment variables
    5. command-line flags (applied by cmd/server)

ENVIRONMENT:
  TUITION_PORT, TUITION_DB_DRIVER, TUITION_DB_DSN, DATABASE_URL,
  AUTH_JWT_SECRET, TUITION_AUTH_ENABLED, TUITION_TOKEN_TTL,
  TUITION_DEBUG, TUITION_LOG_LEVEL, TUITION_PENALTIES_ENABLED,
  TUITION_PENALTY_SCHEDULE, TUITION_RECEIPT_PREFIX

SEE ALSO:
  - example.yaml: annotated sample
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/tuition-engine/billing"
)

// Config is the full server configuration.
type Config struct {
	HTTP         HTTPConfig     `yaml:"http"`
	Database     DatabaseConfig `yaml:"database"`
	Auth         AuthConfig     `yaml:"auth"`
	Fees         FeeConfig      `yaml:"fees"`
	PaymentModes []string       `yaml:"payment_modes"`
	Scholarships []string       `yaml:"scholarship_types"`
	Receipt      ReceiptConfig  `yaml:"receipt"`
	Penalties    PenaltyConfig  `yaml:"penalties"`
	Currency     CurrencyConfig `yaml:"currency"`
	Reporting    ReportConfig   `yaml:"reporting"`
	Debug        bool           `yaml:"debug"`
	LogLevel     string         `yaml:"log_level"`
}

type HTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	Enabled   bool          `yaml:"enabled"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// FeeConfig is the default fee schedule.
type FeeConfig struct {
	RatePerUnit   float64 `yaml:"rate_per_unit"`
	Miscellaneous float64 `yaml:"miscellaneous"`
	LabPerUnit    float64 `yaml:"lab_per_unit"`
	Other         float64 `yaml:"other"`
}

type ReceiptConfig struct {
	Prefix string `yaml:"prefix"`
}

type PenaltyConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Rate      float64 `yaml:"rate"`
	StartDays int     `yaml:"start_days"`
	GraceDays int     `yaml:"grace_days"`
	Schedule  string  `yaml:"schedule"` // cron spec
}

type CurrencyConfig struct {
	Code   string `yaml:"code"`
	Symbol string `yaml:"symbol"`
}

type ReportConfig struct {
	RevenueWindowMonths int `yaml:"revenue_window_months"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := billing.DefaultOptions()
	return Config{
		HTTP: HTTPConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "tuition.db"},
		Auth:     AuthConfig{Enabled: true, TokenTTL: 8 * time.Hour},
		Fees: FeeConfig{
			RatePerUnit:   500,
			Miscellaneous: 5000,
			LabPerUnit:    100,
			Other:         2000,
		},
		PaymentModes: opts.PaymentModes,
		Scholarships: opts.ScholarshipTypes,
		Receipt:      ReceiptConfig{Prefix: "RCP"},
		Penalties: PenaltyConfig{
			Enabled:   false,
			Rate:      0.02,
			StartDays: 30,
			GraceDays: 7,
			Schedule:  "0 1 * * *",
		},
		Currency:  CurrencyConfig{Code: "PHP", Symbol: "₱"},
		Reporting: ReportConfig{RevenueWindowMonths: 12},
		LogLevel:  "info",
	}
}

// Load builds the configuration. An empty path falls back to
// TUITION_CONFIG; no path at all means defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TUITION_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// A missing .env file is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("config: load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	var err error
	cfg.HTTP.Port, err = getenvInt("TUITION_PORT", cfg.HTTP.Port)
	if err != nil {
		return err
	}
	cfg.Database.Driver = getenvDefault("TUITION_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getenvDefault("TUITION_DB_DSN", cfg.Database.DSN)
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = url
	}

	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	if cfg.Auth.Enabled, err = getenvBool("TUITION_AUTH_ENABLED", cfg.Auth.Enabled); err != nil {
		return err
	}
	if cfg.Auth.TokenTTL, err = getenvDuration("TUITION_TOKEN_TTL", cfg.Auth.TokenTTL); err != nil {
		return err
	}

	if cfg.Debug, err = getenvBool("TUITION_DEBUG", cfg.Debug); err != nil {
		return err
	}
	cfg.LogLevel = getenvDefault("TUITION_LOG_LEVEL", cfg.LogLevel)
	cfg.Receipt.Prefix = getenvDefault("TUITION_RECEIPT_PREFIX", cfg.Receipt.Prefix)

	if cfg.Penalties.Enabled, err = getenvBool("TUITION_PENALTIES_ENABLED", cfg.Penalties.Enabled); err != nil {
		return err
	}
	cfg.Penalties.Schedule = getenvDefault("TUITION_PENALTY_SCHEDULE", cfg.Penalties.Schedule)
	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.HTTP.Port)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: database dsn required")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret (AUTH_JWT_SECRET) required when auth is enabled")
	}
	if len(c.PaymentModes) == 0 {
		return errors.New("config: at least one payment mode required")
	}
	if c.Penalties.Rate < 0 {
		return errors.New("config: penalty rate cannot be negative")
	}
	return nil
}

// BillingOptions converts the billing-related sections.
func (c Config) BillingOptions() billing.Options {
	return billing.Options{
		PaymentModes:     c.PaymentModes,
		ScholarshipTypes: c.Scholarships,
		Fees: billing.FeeSchedule{
			RatePerUnit:   billing.Pesos(c.Fees.RatePerUnit),
			Miscellaneous: billing.Pesos(c.Fees.Miscellaneous),
			LabPerUnit:    billing.Pesos(c.Fees.LabPerUnit),
			Other:         billing.Pesos(c.Fees.Other),
		},
		ReceiptPrefix: c.Receipt.Prefix,
		Penalty: billing.PenaltyPolicy{
			Enabled:   c.Penalties.Enabled,
			Rate:      decimalRate(c.Penalties.Rate),
			StartDays: c.Penalties.StartDays,
			GraceDays: c.Penalties.GraceDays,
		},
	}
}

// decimalRate keeps four places so 0.02 stays exact.
func decimalRate(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(4)
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func getenvDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
