// Package settings loads runtime settings for the fixtures CLI and server.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/derekprior/fixtures/internal/schedule"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: FIXTURES_DATABASE__DSN sets database.dsn.
const EnvPrefix = "FIXTURES_"

type Settings struct {
	Environment string     `koanf:"environment"`
	LogLevel    string     `koanf:"log_level"`
	Addr        string     `koanf:"addr"`
	Database    Database   `koanf:"database"`
	Redis       Redis      `koanf:"redis"`
	Scheduling  Scheduling `koanf:"scheduling"`
}

type Database struct {
	Driver string `koanf:"driver"` // sqlite or postgres
	DSN    string `koanf:"dsn"`
}

// Redis is optional. When Addr is empty generation locks are in-process.
type Redis struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	LockTTL  time.Duration `koanf:"lock_ttl"`
}

type Scheduling struct {
	TimeSlots   schedule.SlotTable `koanf:"time_slots"`
	TxTimeout   time.Duration      `koanf:"tx_timeout"`
	MaxAttempts int                `koanf:"max_attempts"`
	RetryDelay  time.Duration      `koanf:"retry_delay"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default returns the settings used when nothing overrides them.
func Default() *Settings {
	return &Settings{
		Environment: "development",
		LogLevel:    "info",
		Addr:        ":8080",
		Database: Database{
			Driver: DriverSQLite,
			DSN:    "fixtures.db",
		},
		Redis: Redis{
			LockTTL: 30 * time.Second,
		},
		Scheduling: Scheduling{
			TimeSlots:   schedule.DefaultSlots(),
			TxTimeout:   10 * time.Second,
			MaxAttempts: 3,
			RetryDelay:  50 * time.Millisecond,
		},
	}
}

// Load layers defaults, the YAML file at path (optional) and FIXTURES_*
// environment variables, lowest precedence first. A .env file beside path
// is loaded into the environment before anything is read.
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if path != "" {
		envPath := filepath.Join(filepath.Dir(path), ".env")
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", envPath, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading settings file: %w", err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg := Default()
	if k.Exists("scheduling.time_slots") {
		cfg.Scheduling.TimeSlots = nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func (s *Settings) Validate() error {
	switch s.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, s.Database.Driver)
	}
	if s.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if _, err := zerolog.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if err := s.Scheduling.TimeSlots.Validate(); err != nil {
		return fmt.Errorf("scheduling.time_slots: %w", err)
	}
	if s.Scheduling.TxTimeout <= 0 {
		return fmt.Errorf("scheduling.tx_timeout must be positive")
	}
	if s.Scheduling.MaxAttempts < 1 {
		return fmt.Errorf("scheduling.max_attempts must be at least 1")
	}
	if s.Scheduling.RetryDelay < 0 {
		return fmt.Errorf("scheduling.retry_delay must not be negative")
	}
	return nil
}

// IsDevelopment reports whether human-readable console logging is wanted.
func (s *Settings) IsDevelopment() bool {
	return s.Environment == "development"
}
