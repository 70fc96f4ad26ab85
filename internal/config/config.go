package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIBaseURL is where the translation backend listens when nothing is configured.
const DefaultAPIBaseURL = "http://127.0.0.1:8000"

// Config holds all configuration for the pdftranslate front-ends.
type Config struct {
	API    APIConfig
	Poll   PollConfig
	Upload UploadConfig
	State  StateConfig
	Server ServerConfig
	Redis  RedisConfig
	Log    LogConfig
}

type APIConfig struct {
	BaseURL string
	// Timeout bounds a single backend request. Zero means no timeout.
	Timeout time.Duration
}

type PollConfig struct {
	Interval  time.Duration
	ResultTTL time.Duration
}

type UploadConfig struct {
	// RejectNotice surfaces a message when a non-PDF file is picked instead of
	// ignoring it silently.
	RejectNotice bool
	InboxDir     string
}

type StateConfig struct {
	File string
}

type ServerConfig struct {
	Port             int
	UploadsPerMinute int
	MaxUploadBytes   int64
}

type RedisConfig struct {
	URL string
}

type LogConfig struct {
	Level string
}

// Load reads an optional .env file, then configuration from environment variables,
// and returns a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(envString("PDFTRANSLATE_API_BASE_URL",
				envString("VITE_API_BASE_URL", DefaultAPIBaseURL)), "/"),
			Timeout: envDuration("PDFTRANSLATE_API_TIMEOUT", 0),
		},
		Poll: PollConfig{
			Interval:  envDuration("PDFTRANSLATE_POLL_INTERVAL", 2*time.Second),
			ResultTTL: envDuration("PDFTRANSLATE_RESULT_TTL", 24*time.Hour),
		},
		Upload: UploadConfig{
			RejectNotice: envBool("PDFTRANSLATE_REJECT_NOTICE", false),
			InboxDir:     os.Getenv("PDFTRANSLATE_INBOX_DIR"),
		},
		State: StateConfig{
			File: envString("PDFTRANSLATE_STATE_FILE", defaultStateFile()),
		},
		Server: ServerConfig{
			Port:             envInt("PDFTRANSLATE_PORT", 5173),
			UploadsPerMinute: envInt("PDFTRANSLATE_UPLOADS_PER_MINUTE", 30),
			MaxUploadBytes:   int64(envInt("PDFTRANSLATE_MAX_UPLOAD_MB", 200)) << 20,
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Log: LogConfig{
			Level: strings.ToLower(envString("LOG_LEVEL", "info")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("PDFTRANSLATE_API_BASE_URL is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("PDFTRANSLATE_API_BASE_URL must start with http:// or https://, got %q", c.API.BaseURL)
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("PDFTRANSLATE_API_TIMEOUT must not be negative, got %s", c.API.Timeout)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("PDFTRANSLATE_POLL_INTERVAL must be positive, got %s", c.Poll.Interval)
	}

	if c.State.File == "" {
		return fmt.Errorf("PDFTRANSLATE_STATE_FILE is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PDFTRANSLATE_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.UploadsPerMinute <= 0 {
		return fmt.Errorf("PDFTRANSLATE_UPLOADS_PER_MINUTE must be positive, got %d", c.Server.UploadsPerMinute)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("PDFTRANSLATE_MAX_UPLOAD_MB must be positive, got %d", c.Server.MaxUploadBytes>>20)
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Log.Level)
	}

	return nil
}

func defaultStateFile() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "pdftranslate", "location.json")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "pdftranslate", "location.json")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
