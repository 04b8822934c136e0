// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const secretKeyLen = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	PublicURL  string

	// SecretKey is the AES-256 key for secret settings. Nil when unset.
	SecretKey []byte

	// AppID and AppSecret seed the settings store when it has none.
	AppID     string
	AppSecret string

	AuthBaseURL  string
	GraphBaseURL string
	HTTPTimeout  time.Duration
	APIRate      float64

	AutoSync        bool
	SyncFrequency   time.Duration
	SyncLimit       int
	AutoHide        bool
	HideAfterDays   int
	RefreshInterval time.Duration

	LogLevel slog.Level
}

// RedirectURI is the OAuth callback URL registered with the provider.
func (c *Config) RedirectURI() string {
	return strings.TrimRight(c.PublicURL, "/") + "/oauth/callback"
}

// AuthorizeURL is the server route that starts the browser authorization flow.
func (c *Config) AuthorizeURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/oauth/authorize"
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from IGMEDIA_* environment variables and returns a
// validated Config. Every variable is optional; see the defaults below.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envString("IGMEDIA_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:          envString("IGMEDIA_DB_PATH", "igmedia.db"),
		PublicURL:       envString("IGMEDIA_PUBLIC_URL", "http://127.0.0.1:8080"),
		AppID:           os.Getenv("IGMEDIA_APP_ID"),
		AppSecret:       os.Getenv("IGMEDIA_APP_SECRET"),
		AuthBaseURL:     envString("IGMEDIA_AUTH_BASE_URL", "https://api.instagram.com/oauth/"),
		GraphBaseURL:    envString("IGMEDIA_GRAPH_BASE_URL", "https://graph.instagram.com/"),
		HTTPTimeout:     30 * time.Second,
		APIRate:         0.5,
		SyncFrequency:   24 * time.Hour,
		SyncLimit:       25,
		HideAfterDays:   30,
		RefreshInterval: 24 * time.Hour,
		LogLevel:        slog.LevelInfo,
	}

	var err error

	if v, ok := os.LookupEnv("IGMEDIA_SECRET_KEY"); ok && v != "" {
		if cfg.SecretKey, err = ParseSecretKey(v); err != nil {
			return nil, fmt.Errorf("IGMEDIA_SECRET_KEY: %w", err)
		}
	}

	if err = envDuration("IGMEDIA_HTTP_TIMEOUT", &cfg.HTTPTimeout); err != nil {
		return nil, err
	}
	if err = envDuration("IGMEDIA_REFRESH_INTERVAL", &cfg.RefreshInterval); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv("IGMEDIA_SYNC_FREQUENCY"); ok {
		if cfg.SyncFrequency, err = ParseSyncFrequency(v); err != nil {
			return nil, fmt.Errorf("IGMEDIA_SYNC_FREQUENCY: %w", err)
		}
	}

	if v, ok := os.LookupEnv("IGMEDIA_API_RATE"); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 {
			return nil, fmt.Errorf("IGMEDIA_API_RATE has invalid rate %q: must be a non-negative number", v)
		}
		cfg.APIRate = rate
	}

	if err = envBool("IGMEDIA_AUTO_SYNC", &cfg.AutoSync); err != nil {
		return nil, err
	}
	if err = envBool("IGMEDIA_AUTO_HIDE", &cfg.AutoHide); err != nil {
		return nil, err
	}
	if err = envInt("IGMEDIA_SYNC_LIMIT", &cfg.SyncLimit, 1, 100); err != nil {
		return nil, err
	}
	if err = envInt("IGMEDIA_HIDE_AFTER_DAYS", &cfg.HideAfterDays, 1, 3650); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("IGMEDIA_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("IGMEDIA_LOG_LEVEL has invalid level %q", v)
		}
	}

	for _, u := range []struct{ key, val string }{
		{"IGMEDIA_PUBLIC_URL", cfg.PublicURL},
		{"IGMEDIA_AUTH_BASE_URL", cfg.AuthBaseURL},
		{"IGMEDIA_GRAPH_BASE_URL", cfg.GraphBaseURL},
	} {
		parsed, err := url.Parse(u.val)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("%s must be an absolute URL, got %q", u.key, u.val)
		}
	}

	return cfg, nil
}

// ParseSecretKey decodes a 32-byte key given as 64 hex characters or as
// standard base64.
func ParseSecretKey(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if key, err := hex.DecodeString(v); err == nil {
		if len(key) != secretKeyLen {
			return nil, fmt.Errorf("must decode to %d bytes, got %d", secretKeyLen, len(key))
		}
		return key, nil
	}
	key, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, errors.New("must be 64 hex characters or base64")
	}
	if len(key) != secretKeyLen {
		return nil, fmt.Errorf("must decode to %d bytes, got %d", secretKeyLen, len(key))
	}
	return key, nil
}

// ParseSyncFrequency accepts hourly, daily, weekly or a positive Go duration.
func ParseSyncFrequency(v string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "hourly":
		return time.Hour, nil
	case "daily":
		return 24 * time.Hour, nil
	case "weekly":
		return 7 * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q: use hourly, daily, weekly or a duration", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("frequency must be positive, got %s", d)
	}
	return d, nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", key, d)
	}
	*dst = d
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s has invalid boolean %q", key, v)
	}
	*dst = b
	return nil
}

func envInt(key string, dst *int, lo, hi int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s has invalid integer %q", key, v)
	}
	if n < lo || n > hi {
		return fmt.Errorf("%s must be between %d and %d, got %d", key, lo, hi, n)
	}
	*dst = n
	return nil
}
