package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flowmentor/internal/logging"

	"gopkg.in/yaml.v3"
)

// PlaceholderAPIKey is the value shipped in sample configs; it is treated as missing.
const PlaceholderAPIKey = "PASTE_YOUR_GEMINI_API_KEY_HERE"

// DefaultPath is the workspace-relative location of the config file.
var DefaultPath = filepath.Join(".flowmentor", "config.yaml")

// Config holds all FlowMentor configuration.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Browser BrowserConfig `yaml:"browser"`
	Panel   PanelConfig   `yaml:"panel"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the Gemini endpoint.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// StorageConfig configures the persisted key-value state.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// BrowserConfig configures page extraction through Chrome DevTools.
type BrowserConfig struct {
	DebuggerURL       string `yaml:"debugger_url"`
	Headless          bool   `yaml:"headless"`
	NavigationTimeout string `yaml:"navigation_timeout"`
}

// PanelConfig holds panel-side settings that feed prompt synthesis.
type PanelConfig struct {
	TranslateLanguage string `yaml:"translate_language"`
	PageContextLimit  int    `yaml:"page_context_limit"`
	HTMLSnapshotLimit int    `yaml:"html_snapshot_limit"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no logging (production)
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// Settings converts the logging section for the logging package.
func (c LoggingConfig) Settings() logging.Settings {
	return logging.Settings{
		DebugMode:  c.DebugMode,
		Categories: c.Categories,
		Level:      c.Level,
		JSONFormat: c.JSONFormat,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "120s",
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(".flowmentor", "state.db"),
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: "30s",
		},
		Panel: PanelConfig{
			TranslateLanguage: "English",
			PageContextLimit:  4000,
			HTMLSnapshotLimit: 5000,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7878",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("FLOWMENTOR_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if path := os.Getenv("FLOWMENTOR_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if url := os.Getenv("FLOWMENTOR_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// GetNavigationTimeout returns the page extraction timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browser.NavigationTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// HasCredential reports whether a usable API key is configured.
func (c *Config) HasCredential() bool {
	key := strings.TrimSpace(c.LLM.APIKey)
	return key != "" && key != PlaceholderAPIKey
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.HasCredential() {
		return &ConfigurationError{
			Field:  "llm.api_key",
			Reason: "API key is missing (set GEMINI_API_KEY or llm.api_key in " + DefaultPath + ")",
		}
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return &ConfigurationError{Field: "llm.model", Reason: "model name is empty"}
	}
	if c.Panel.PageContextLimit < 0 || c.Panel.HTMLSnapshotLimit < 0 {
		return &ConfigurationError{Field: "panel", Reason: "limits must not be negative"}
	}
	return nil
}

// ConfigurationError reports a fatal configuration problem. The panel
// disables all interactive controls when it sees one.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}
