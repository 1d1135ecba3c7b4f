/*
config.go - Server configuration

PURPOSE:
  Collects runtime settings from, in increasing precedence:
  built-in defaults, an optional .env file, process environment and
  command-line flags.

ENVIRONMENT:
  PORT                       HTTP port (default 8080)
  DATABASE_PATH              SQLite path, ":memory:" allowed (default tracker.db)
  JWT_SECRET                 HS256 secret; empty enables header identity (dev only)
  ESCALATION_CHECK_INTERVAL  Go duration between escalation refreshes (default 15m)
  BUSINESS_HOURS_PER_DAY     Working hours in a business day (default 8)
  CORS_ORIGINS               Comma separated allowed origins
  SLA_RULES_FILE             JSON rule set loaded at startup
  ENVIRONMENT                development | production (default development)

SEE ALSO:
  - cmd/server/main.go: flag overrides
  - factory/policy.go: SLA rule file format
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds server settings.
type Config struct {
	Port                    int
	DatabasePath            string
	JWTSecret               string
	EscalationCheckInterval time.Duration
	BusinessHoursPerDay     int
	CORSOrigins             []string
	SLARulesFile            string
	Environment             string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:                    8080,
		DatabasePath:            "tracker.db",
		EscalationCheckInterval: 15 * time.Minute,
		BusinessHoursPerDay:     8,
		CORSOrigins:             []string{"http://localhost:5173", "http://localhost:8080"},
		Environment:             EnvDevelopment,
	}
}

// Load reads the given .env files (".env" when none are named) into the
// process environment, then builds a Config from it. Missing files are not
// an error; variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup, starting from Default.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	cfg.JWTSecret = getenv("JWT_SECRET")
	if v := getenv("ESCALATION_CHECK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid ESCALATION_CHECK_INTERVAL %q: %w", v, err)
		}
		cfg.EscalationCheckInterval = d
	}
	if v := getenv("BUSINESS_HOURS_PER_DAY"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid BUSINESS_HOURS_PER_DAY %q: %w", v, err)
		}
		cfg.BusinessHoursPerDay = h
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	cfg.SLARulesFile = getenv("SLA_RULES_FILE")
	if v := getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = strings.ToLower(v)
	}

	return cfg, cfg.Validate()
}

// BindFlags registers flags that override the loaded values. Call before
// fs.Parse.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", c.Port, "HTTP server port")
	fs.StringVar(&c.DatabasePath, "db", c.DatabasePath, "SQLite database path")
	fs.DurationVar(&c.EscalationCheckInterval, "escalation-interval", c.EscalationCheckInterval, "Interval between escalation refreshes")
	fs.StringVar(&c.SLARulesFile, "sla-rules", c.SLARulesFile, "SLA rule set JSON file")
}

// Validate checks ranges and the production requirements.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.EscalationCheckInterval <= 0 {
		return fmt.Errorf("escalation check interval must be positive, got %v", c.EscalationCheckInterval)
	}
	if c.BusinessHoursPerDay <= 0 || c.BusinessHoursPerDay > 24 {
		return fmt.Errorf("business hours per day must be in 1..24, got %d", c.BusinessHoursPerDay)
	}
	switch c.Environment {
	case EnvDevelopment:
	case EnvProduction:
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required in production")
		}
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
