// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends accepted by OFFER_STORE.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds all runtime configuration for the offer service.
type Config struct {
	Port     string `env:"OFFER_PORT" envDefault:"8080"`
	GRPCPort string `env:"OFFER_GRPC_PORT" envDefault:"9090"`

	Store       string `env:"OFFER_STORE" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"offers.db"`
	RedisURL    string `env:"REDIS_URL,required,notEmpty"`

	HostURL        string        `env:"HOST_URL,required,notEmpty"`
	JWTSecret      string        `env:"JWT_SECRET,required"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	HREmail        string        `env:"HR_EMAIL"`
	HRPasswordHash string        `env:"HR_PASSWORD_HASH"`
	BcryptCost     int           `env:"BCRYPT_COST" envDefault:"12"`

	EmployerName     string `env:"EMPLOYER_NAME" envDefault:"Offerdesk"`
	EmployerLocation string `env:"EMPLOYER_LOCATION"`

	SMTP SMTP `envPrefix:"SMTP_"`

	NotifyMaxAttempts int    `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"5"`
	NotifyRedriveSpec string `env:"NOTIFY_REDRIVE_SPEC" envDefault:"@every 30m"`
	HealthProbeSpec   string `env:"HEALTH_PROBE_SPEC" envDefault:"@every 30s"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// SMTP configures outbound offer letters. An empty Host means letters are
// logged instead of sent.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// Enabled reports whether an SMTP relay is configured.
func (s SMTP) Enabled() bool { return s.Host != "" }

// Load reads environment variables and returns a validated Config. A .env
// file, if any, is loaded by main before this runs.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.HostURL = strings.TrimRight(cfg.HostURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when OFFER_STORE=postgres"))
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when OFFER_STORE=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("OFFER_STORE must be %q or %q, got %q", StorePostgres, StoreSQLite, c.Store))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}
	if c.NotifyMaxAttempts < 1 {
		errs = append(errs, errors.New("NOTIFY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.SMTP.Enabled() && c.SMTP.From == "" {
		errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
	}
	return errors.Join(errs...)
}
