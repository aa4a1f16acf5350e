package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/handiism/mailmirror/internal/retry"
)

// Settings holds all configuration options.
type Settings struct {
	// Mirror settings
	MirrorRoot string `toml:"mirror_root"`

	// API settings
	APIBaseURL     string `toml:"api_base_url"`
	APIKey         string `toml:"api_key"`
	PageSize       int    `toml:"page_size"`
	RequestTimeout int    `toml:"request_timeout"` // seconds

	// Download settings
	MaxConcurrentDownloads int     `toml:"max_concurrent_downloads"`
	DownloadMaxRetries     int     `toml:"download_max_retries"`
	DownloadRetryCooldown  float64 `toml:"download_retry_cooldown"`
	DownloadRetryExponent  float64 `toml:"download_retry_exponent"`
	DownloadTimeout        int     `toml:"download_timeout"` // seconds
	ContinueOnError        bool    `toml:"continue_on_error"`
	VerifyImages           bool    `toml:"verify_images"`

	// Logging settings
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		MirrorRoot: "~/mirror/mail",

		APIBaseURL:     "https://api.earthclassmail.com",
		PageSize:       500,
		RequestTimeout: 120,

		MaxConcurrentDownloads: 1,
		DownloadMaxRetries:     3,
		DownloadRetryCooldown:  0.2,
		DownloadRetryExponent:  4.0,
		DownloadTimeout:        300,
		ContinueOnError:        true,
		VerifyImages:           true,

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// DefaultPath returns the default settings file location,
// $XDG_CONFIG_HOME/mailmirror/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mailmirror", "config.toml")
}

// Load reads settings from a TOML file. A missing file yields defaults.
// "~" in MirrorRoot is expanded and the result is validated.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := toml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := settings.Normalize(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

// Save writes settings to a TOML file, creating parent directories.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Normalize trims string fields and expands a leading "~" in MirrorRoot.
func (s *Settings) Normalize() error {
	s.APIBaseURL = strings.TrimSpace(s.APIBaseURL)
	s.APIKey = strings.TrimSpace(s.APIKey)
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	s.LogFormat = strings.ToLower(strings.TrimSpace(s.LogFormat))

	root, err := ExpandHome(strings.TrimSpace(s.MirrorRoot))
	if err != nil {
		return err
	}
	s.MirrorRoot = root
	return nil
}

// Validate reports the first invalid setting.
func (s *Settings) Validate() error {
	switch {
	case s.MirrorRoot == "":
		return errors.New("mirror_root must be set")
	case s.APIBaseURL == "":
		return errors.New("api_base_url must be set")
	case s.PageSize <= 0:
		return fmt.Errorf("page_size must be positive, got %d", s.PageSize)
	case s.MaxConcurrentDownloads <= 0:
		return fmt.Errorf("max_concurrent_downloads must be positive, got %d", s.MaxConcurrentDownloads)
	case s.DownloadMaxRetries <= 0:
		return fmt.Errorf("download_max_retries must be positive, got %d", s.DownloadMaxRetries)
	case s.DownloadRetryCooldown < 0 || s.DownloadRetryExponent < 1:
		return errors.New("download_retry_cooldown must be >= 0 and download_retry_exponent >= 1")
	case s.RequestTimeout < 0 || s.DownloadTimeout < 0:
		return errors.New("timeouts must not be negative")
	}

	switch s.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", s.LogFormat)
	}
	return nil
}

// RetryPolicy returns the backoff policy for catalog fetches and downloads.
func (s *Settings) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxTries: s.DownloadMaxRetries,
		Cooldown: s.DownloadRetryCooldown,
		Exponent: s.DownloadRetryExponent,
	}
}

// RequestTimeoutDuration returns RequestTimeout as a duration.
func (s *Settings) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// DownloadTimeoutDuration returns DownloadTimeout as a duration.
func (s *Settings) DownloadTimeoutDuration() time.Duration {
	return time.Duration(s.DownloadTimeout) * time.Second
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
