// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/ollama-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ollama-chat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Client settings used by the TUI and REPL front ends
	Client ClientConfig `toml:"client" json:"client"`

	// Server settings used by `ollama-chat serve`
	Server ServerConfig `toml:"server" json:"server"`

	// UI settings
	UI UIConfig `toml:"ui" json:"ui"`
}

// ClientConfig controls how front ends reach the chat backend.
type ClientConfig struct {
	// BackendURL is the base URL of the chat backend (the `serve` command).
	BackendURL string `toml:"backend_url" json:"backend_url"`

	// RequestTimeoutSecs bounds each backend request. Model replies can be slow.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// ServerConfig controls the backend HTTP server.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`

	// HistoryDB is a SQLite file for conversation history. Empty keeps history in memory.
	HistoryDB string `toml:"history_db" json:"history_db"`

	// RateLimitPerMin is the per-client request budget. 0 disables limiting.
	RateLimitPerMin int `toml:"rate_limit_per_min" json:"rate_limit_per_min"`

	OllamaURL         string `toml:"ollama_url" json:"ollama_url"`
	DefaultModel      string `toml:"default_model" json:"default_model"`
	OllamaTimeoutSecs int    `toml:"ollama_timeout_secs" json:"ollama_timeout_secs"`

	// AllowedOrigins enables CORS for browser front ends served elsewhere.
	// Empty means same-origin only.
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
}

// UIConfig contains display preferences.
type UIConfig struct {
	// Theme is "auto", "dark", "light" or "notty".
	Theme string `toml:"theme" json:"theme"`

	// WordWrap is the markdown wrap width for terminal rendering.
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	DefaultBackendURL    = "http://127.0.0.1:5000"
	DefaultAddr          = "127.0.0.1:5000"
	DefaultOllamaURL     = "http://localhost:11434"
	DefaultModel         = "mistral"
	DefaultTheme         = "auto"
	DefaultWordWrap      = 80
	configVersion        = "1"
	defaultReqTimeout    = 120
	defaultOllamaTimeout = 300
)

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Version: configVersion,
		Client: ClientConfig{
			BackendURL:         DefaultBackendURL,
			RequestTimeoutSecs: defaultReqTimeout,
		},
		Server: ServerConfig{
			Addr:              DefaultAddr,
			RateLimitPerMin:   60,
			OllamaURL:         DefaultOllamaURL,
			DefaultModel:      DefaultModel,
			OllamaTimeoutSecs: defaultOllamaTimeout,
		},
		UI: UIConfig{
			Theme:    DefaultTheme,
			WordWrap: DefaultWordWrap,
		},
	}
}

// RequestTimeout returns the client request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Client.RequestTimeoutSecs) * time.Second
}

// OllamaTimeout returns the server-side Ollama timeout as a duration.
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.Server.OllamaTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ollama-chat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ollama-chat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the config file Load would read, or the TOML path when
// neither file exists yet.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
//
// When a file exists but cannot be decoded, the defaults are returned together
// with the decode error.
func Load() (*Config, error) {
	var loadErr error

	for _, candidate := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := candidate()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err == nil {
			return cfg, nil
		}
		loadErr = err
		break
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file path with full validation.
// Files ending in .json are decoded as JSON; everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg and fills unset fields with defaults.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file into cfg and fills unset fields with defaults.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults fills in any missing values with defaults.
// RateLimitPerMin is left alone: 0 is a meaningful "disabled".
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Client
	if cfg.Client.BackendURL == "" {
		cfg.Client.BackendURL = defaults.Client.BackendURL
	}
	if cfg.Client.RequestTimeoutSecs == 0 {
		cfg.Client.RequestTimeoutSecs = defaults.Client.RequestTimeoutSecs
	}

	// Server
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.OllamaURL == "" {
		cfg.Server.OllamaURL = defaults.Server.OllamaURL
	}
	if cfg.Server.DefaultModel == "" {
		cfg.Server.DefaultModel = defaults.Server.DefaultModel
	}
	if cfg.Server.OllamaTimeoutSecs == 0 {
		cfg.Server.OllamaTimeoutSecs = defaults.Server.OllamaTimeoutSecs
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.WordWrap == 0 {
		cfg.UI.WordWrap = defaults.UI.WordWrap
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# ollama-chat configuration file\n")
	buf.WriteString("# Environment overrides: OLLAMA_CHAT_BACKEND, OLLAMA_CHAT_ADDR, OLLAMA_HOST, OLLAMA_CHAT_MODEL\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns ValidateErrors listing
// every problem found, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := validateHTTPURL(c.Client.BackendURL); err != nil {
		errs = append(errs, ValidationError{Field: "client.backend_url", Message: err.Error()})
	}
	if c.Client.RequestTimeoutSecs < 1 || c.Client.RequestTimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "client.request_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 3600, got %d", c.Client.RequestTimeoutSecs),
		})
	}

	if c.Server.Addr == "" {
		errs = append(errs, ValidationError{Field: "server.addr", Message: "must not be empty"})
	} else if _, port, ok := strings.Cut(c.Server.Addr, ":"); !ok || !validPort(port) {
		errs = append(errs, ValidationError{
			Field:   "server.addr",
			Message: fmt.Sprintf("must be host:port, got %q", c.Server.Addr),
		})
	}
	if c.Server.RateLimitPerMin < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_per_min",
			Message: "must not be negative",
		})
	}
	if err := validateHTTPURL(c.Server.OllamaURL); err != nil {
		errs = append(errs, ValidationError{Field: "server.ollama_url", Message: err.Error()})
	}
	if strings.TrimSpace(c.Server.DefaultModel) == "" {
		errs = append(errs, ValidationError{Field: "server.default_model", Message: "must not be empty"})
	}
	if c.Server.OllamaTimeoutSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.ollama_timeout_secs",
			Message: fmt.Sprintf("must be positive, got %d", c.Server.OllamaTimeoutSecs),
		})
	}

	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if err := validateHTTPURL(origin); err != nil {
			errs = append(errs, ValidationError{Field: "server.allowed_origins", Message: err.Error()})
		}
	}

	switch c.UI.Theme {
	case "auto", "dark", "light", "notty":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("must be one of auto, dark, light, notty, got %q", c.UI.Theme),
		})
	}
	if c.UI.WordWrap < 20 || c.UI.WordWrap > 400 {
		errs = append(errs, ValidationError{
			Field:   "ui.word_wrap",
			Message: fmt.Sprintf("must be between 20 and 400, got %d", c.UI.WordWrap),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func validPort(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0 && n <= 65535
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OLLAMA_CHAT_BACKEND: overrides client.backend_url
//   - OLLAMA_CHAT_ADDR: overrides server.addr
//   - OLLAMA_HOST: overrides server.ollama_url (bare host:port gets http://)
//   - OLLAMA_CHAT_MODEL: overrides server.default_model
func (c *Config) ApplyEnvOverrides() {
	if backend := os.Getenv("OLLAMA_CHAT_BACKEND"); backend != "" {
		c.Client.BackendURL = backend
	}

	if addr := os.Getenv("OLLAMA_CHAT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}

	// Ollama's own CLI accepts OLLAMA_HOST without a scheme.
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		c.Server.OllamaURL = host
	}

	if model := os.Getenv("OLLAMA_CHAT_MODEL"); model != "" {
		c.Server.DefaultModel = model
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	if c.Server.AllowedOrigins != nil {
		cp.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	}
	return &cp
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
