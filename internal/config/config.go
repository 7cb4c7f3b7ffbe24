package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the day-plan service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	PlanDir string

	CalendarMode    string
	CalendarICSPath string
	CalendarHTTPURL string

	OracleMode    string
	OracleHTTPURL string

	BrainMode    string
	BrainHTTPURL string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "dayflow"),
		AllowAnyOrigin:   false,
		PlanDir:          envOrDefault("PLAN_DIR", "data/plans"),
		CalendarMode:     envOrDefault("CALENDAR_MODE", "auto"),
		CalendarICSPath:  envOrDefault("CALENDAR_ICS_PATH", "data/calendar.ics"),
		CalendarHTTPURL:  stringsTrimSpace("CALENDAR_HTTP_URL"),
		OracleMode:       envOrDefault("ORACLE_MODE", "auto"),
		OracleHTTPURL:    stringsTrimSpace("ORACLE_HTTP_URL"),
		BrainMode:        envOrDefault("BRAIN_MODE", "auto"),
		BrainHTTPURL:     stringsTrimSpace("BRAIN_HTTP_URL"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:  15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ShutdownTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be at least 1s")
	}
	if strings.TrimSpace(cfg.PlanDir) == "" {
		return Config{}, fmt.Errorf("PLAN_DIR must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
