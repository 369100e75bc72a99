// Package config provides TOML configuration file loading and parsing for the panel client.
// The configuration file lives at ~/.homectl/panel.toml by default, but can be
// overridden with the --config flag. Environment variables override file values
// and CLI flags override both.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	apperrors "github.com/homectlx/panel/internal/errors"
)

// Config represents the panel configuration file structure.
// Field names map to snake_case in TOML files via struct tags.
type Config struct {
	// ServerURL is the base HTTP URL of the view-model server
	// (e.g. http://homectl.local:5000). When empty and Discover is set,
	// the server is located via mDNS.
	ServerURL string `toml:"server_url"`

	// SocketPath is the WebSocket endpoint path on the server.
	// Default: /ws
	SocketPath string `toml:"socket_path"`

	// StartPath is the page opened when no path is given on the command line.
	// Default: /start/ctl
	StartPath string `toml:"start_path"`

	// LogLevel controls logging verbosity: debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level"`

	// DebounceMs is the shared input debounce window in milliseconds.
	// Default: 400
	DebounceMs int `toml:"debounce_ms"`

	// ScrollDelayMs is the delay before a bring-into-view scroll.
	// Default: 1000
	ScrollDelayMs int `toml:"scroll_delay_ms"`

	// ReconnectInitialMs is the first reconnect delay.
	// Default: 1000
	ReconnectInitialMs int `toml:"reconnect_initial_ms"`

	// ReconnectMaxMs caps the reconnect delay.
	// Default: 5000
	ReconnectMaxMs int `toml:"reconnect_max_ms"`

	// ReconnectAttempts bounds consecutive reconnect attempts.
	// Default: 10
	ReconnectAttempts int `toml:"reconnect_attempts"`

	// InitRetryMs is the fixed interval between endpoint resolution attempts.
	// Default: 100
	InitRetryMs int `toml:"init_retry_ms"`

	// Discover enables mDNS lookup of the server when ServerURL is empty.
	// Default: false
	Discover bool `toml:"discover"`

	// DiscoverTimeoutMs bounds a single mDNS browse.
	// Default: 3000
	DiscoverTimeoutMs int `toml:"discover_timeout_ms"`
}

// Default returns a Config with every field set to its default.
func Default() *Config {
	return &Config{
		SocketPath:         DefaultSocketPath,
		StartPath:          DefaultStartPath,
		LogLevel:           DefaultLogLevel,
		DebounceMs:         DefaultDebounceMs,
		ScrollDelayMs:      DefaultScrollDelayMs,
		ReconnectInitialMs: DefaultReconnectInitialMs,
		ReconnectMaxMs:     DefaultReconnectMaxMs,
		ReconnectAttempts:  DefaultReconnectAttempts,
		InitRetryMs:        DefaultInitRetryMs,
		DiscoverTimeoutMs:  DefaultDiscoverTimeoutMs,
	}
}

// DefaultConfigPath returns the default config file location: ~/.homectl/panel.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".homectl", "panel.toml"), nil
}

// WriteDefault creates a starter config file at the given path.
// An existing file is never overwritten.
func WriteDefault(path string, serverURL string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# HOMEctlx panel configuration

# View-model server; leave empty and set discover = true to use mDNS
server_url = %q
socket_path = %q

# Page opened by 'homectl-panel open' without arguments
start_path = %q

log_level = "info"
`, serverURL, DefaultSocketPath, DefaultStartPath)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads a TOML config file from the given path on top of Default().
//
// Behavior:
//   - If path is empty, the default location is tried; a missing default file is not an error.
//   - If path is specified, a missing file is an error.
//   - Environment overrides are applied after the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			applyEnv(cfg)
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		path = defaultPath
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, apperrors.New(apperrors.CodeConfigNotFound, fmt.Sprintf("config file not found: %s", path))
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigParse, fmt.Sprintf("failed to parse config file %s", path), err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	durations := map[string]int{
		"debounce_ms":          c.DebounceMs,
		"scroll_delay_ms":      c.ScrollDelayMs,
		"reconnect_initial_ms": c.ReconnectInitialMs,
		"reconnect_max_ms":     c.ReconnectMaxMs,
		"init_retry_ms":        c.InitRetryMs,
		"discover_timeout_ms":  c.DiscoverTimeoutMs,
	}
	for name, v := range durations {
		if v < 0 {
			return apperrors.New(apperrors.CodeConfigInvalid, fmt.Sprintf("%s must not be negative (got %d)", name, v))
		}
	}
	if c.ReconnectAttempts <= 0 {
		return apperrors.New(apperrors.CodeConfigInvalid, fmt.Sprintf("reconnect_attempts must be positive (got %d)", c.ReconnectAttempts))
	}
	if c.ReconnectMaxMs < c.ReconnectInitialMs {
		return apperrors.New(apperrors.CodeConfigInvalid, "reconnect_max_ms must not be below reconnect_initial_ms")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return apperrors.New(apperrors.CodeConfigInvalid, fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}
	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil || u.Host == "" {
			return apperrors.New(apperrors.CodeConfigInvalid, fmt.Sprintf("server_url %q is not an absolute URL", c.ServerURL))
		}
	} else if !c.Discover {
		return apperrors.New(apperrors.CodeConfigInvalid, "server_url is empty and discover is disabled")
	}
	return nil
}

// Debounce returns DebounceMs as a duration.
func (c *Config) Debounce() time.Duration { return ms(c.DebounceMs) }

// ScrollDelay returns ScrollDelayMs as a duration.
func (c *Config) ScrollDelay() time.Duration { return ms(c.ScrollDelayMs) }

// ReconnectInitial returns ReconnectInitialMs as a duration.
func (c *Config) ReconnectInitial() time.Duration { return ms(c.ReconnectInitialMs) }

// ReconnectMax returns ReconnectMaxMs as a duration.
func (c *Config) ReconnectMax() time.Duration { return ms(c.ReconnectMaxMs) }

// InitRetry returns InitRetryMs as a duration.
func (c *Config) InitRetry() time.Duration { return ms(c.InitRetryMs) }

// DiscoverTimeout returns DiscoverTimeoutMs as a duration.
func (c *Config) DiscoverTimeout() time.Duration { return ms(c.DiscoverTimeoutMs) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
