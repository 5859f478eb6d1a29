package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration. Values resolve in three layers:
// defaults, then the JSON config file, then WHODLE_* environment variables.
type Config struct {
	// Bind is the interface the HTTP server listens on.
	Bind string `json:"bind" env:"WHODLE_BIND"`

	// Port is the HTTP server port.
	Port int `json:"port" env:"WHODLE_PORT"`

	// StoreBackend selects the guess store: "memory", "sqlite", or "badger".
	// Memory loses all ledgers on restart; it exists for development.
	StoreBackend string `json:"store_backend" env:"WHODLE_STORE_BACKEND"`

	// DataDir is where persistent backends keep their files.
	DataDir string `json:"data_dir" env:"WHODLE_DATA_DIR"`

	// MaxDailyGuesses caps distinct guesses per session per calendar day.
	MaxDailyGuesses int `json:"max_daily_guesses" env:"WHODLE_MAX_DAILY_GUESSES"`

	// PersonaFile is the path to the JSON persona catalog.
	PersonaFile string `json:"persona_file" env:"WHODLE_PERSONA_FILE"`

	// DailySalt keys the persona-of-the-day schedule. Anyone holding the
	// catalog and the salt can compute the full schedule, so treat it as a
	// secret in production.
	DailySalt string `json:"daily_salt" env:"WHODLE_DAILY_SALT"`

	// StoreTimeoutSeconds bounds each store call. 0 means the service
	// default.
	StoreTimeoutSeconds int `json:"store_timeout_seconds" env:"WHODLE_STORE_TIMEOUT_SECONDS"`

	// DBMaxOpenConns limits open sqlite connections. If set to 1, all
	// database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" env:"WHODLE_DB_MAX_OPEN_CONNS"`

	// DBMaxIdleConns limits idle sqlite connections. 0 means use sql.DB
	// default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" env:"WHODLE_DB_MAX_IDLE_CONNS"`

	// LogLevel is a logrus level name: debug, info, warn, error.
	LogLevel string `json:"log_level" env:"WHODLE_LOG_LEVEL"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bind:            "127.0.0.1",
		Port:            8080,
		StoreBackend:    "sqlite",
		DataDir:         "data",
		MaxDailyGuesses: 8,
		PersonaFile:     "personas.json",
		DailySalt:       "whodle-dev-salt",
		LogLevel:        "info",
	}
}

// Load resolves configuration from defaults, an optional JSON file, and the
// environment, in that order of precedence. An empty path skips the file
// layer; a missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = Merge(cfg, fileCfg)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile loads configuration from a specific file path.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Merge combines base and overlay configs. Overlay values take precedence
// for non-zero scalars.
func Merge(base, overlay *Config) *Config {
	result := *base

	if overlay.Bind != "" {
		result.Bind = overlay.Bind
	}
	if overlay.Port != 0 {
		result.Port = overlay.Port
	}
	if overlay.StoreBackend != "" {
		result.StoreBackend = overlay.StoreBackend
	}
	if overlay.DataDir != "" {
		result.DataDir = overlay.DataDir
	}
	if overlay.MaxDailyGuesses != 0 {
		result.MaxDailyGuesses = overlay.MaxDailyGuesses
	}
	if overlay.PersonaFile != "" {
		result.PersonaFile = overlay.PersonaFile
	}
	if overlay.DailySalt != "" {
		result.DailySalt = overlay.DailySalt
	}
	if overlay.StoreTimeoutSeconds != 0 {
		result.StoreTimeoutSeconds = overlay.StoreTimeoutSeconds
	}
	if overlay.DBMaxOpenConns != 0 {
		result.DBMaxOpenConns = overlay.DBMaxOpenConns
	}
	if overlay.DBMaxIdleConns != 0 {
		result.DBMaxIdleConns = overlay.DBMaxIdleConns
	}
	if overlay.LogLevel != "" {
		result.LogLevel = overlay.LogLevel
	}

	return &result
}

// validate rejects configurations the server cannot start with.
func (c *Config) validate() error {
	switch c.StoreBackend {
	case "memory", "sqlite", "badger":
	default:
		return fmt.Errorf("unknown store backend %q (want memory, sqlite, or badger)", c.StoreBackend)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxDailyGuesses < 1 {
		return fmt.Errorf("max_daily_guesses must be at least 1, got %d", c.MaxDailyGuesses)
	}
	return nil
}
