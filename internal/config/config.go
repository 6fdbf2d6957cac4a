package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Path matching modes for protected-path detection
const (
	PathMatchSubstring = "substring"
	PathMatchSegment   = "segment"
)

// Config holds all hook worker configuration
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Hooks   HooksConfig   `yaml:"hooks"`
	Account AccountConfig `yaml:"account"`
	Log     LogConfig     `yaml:"log"`
}

// ServiceConfig holds settings for the task-management service under test
type ServiceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// HooksConfig holds the hook server and fixture settings
type HooksConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	PathMatch       string   `yaml:"path_match"`
	ProtectedPaths  []string `yaml:"protected_paths"`
	PublicMarker    string   `yaml:"public_marker"`
	InvalidToken    string   `yaml:"invalid_token"`
	PlaceholderPath string   `yaml:"placeholder_path"`
}

// AccountConfig holds settings for the account provisioned during setup
type AccountConfig struct {
	Prefix      string `yaml:"prefix"`
	EmailDomain string `yaml:"email_domain"`
	Password    string `yaml:"password"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from environment variables with sensible defaults.
// When TASKHOOKS_CONFIG names a YAML file it is merged over the environment values.
func Load() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			BaseURL: getEnv("TASKAPI_BASE_URL", "http://127.0.0.1:8080"),
			Timeout: getDurationEnv("TASKAPI_TIMEOUT", 30*time.Second),
		},
		Hooks: HooksConfig{
			Host:            getEnv("HOOKS_HOST", "127.0.0.1"),
			Port:            getIntEnv("HOOKS_PORT", 61321),
			PathMatch:       getEnv("HOOKS_PATH_MATCH", PathMatchSubstring),
			ProtectedPaths:  getSliceEnv("HOOKS_PROTECTED_PATHS", []string{"/tasks", "/logout"}),
			PublicMarker:    getEnv("HOOKS_PUBLIC_MARKER", "/public"),
			InvalidToken:    getEnv("HOOKS_INVALID_TOKEN", "Bearer invalid_token_here"),
			PlaceholderPath: getEnv("HOOKS_PLACEHOLDER_PATH", "/tasks/1"),
		},
		Account: AccountConfig{
			Prefix:      getEnv("ACCOUNT_PREFIX", "dredd_test_"),
			EmailDomain: getEnv("ACCOUNT_EMAIL_DOMAIN", "test.com"),
			Password:    getEnv("ACCOUNT_PASSWORD", "test123456"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if path := os.Getenv("TASKHOOKS_CONFIG"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// MergeFile overlays the YAML file at path onto c. Keys missing from the file
// keep their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// HooksAddr returns the host:port the hook server listens on
func (c *Config) HooksAddr() string {
	return fmt.Sprintf("%s:%d", c.Hooks.Host, c.Hooks.Port)
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Service validation
	if c.Service.BaseURL == "" {
		errs = append(errs, errors.New("TASKAPI_BASE_URL is required"))
	} else if u, err := url.Parse(c.Service.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("TASKAPI_BASE_URL must be an absolute URL, got '%s'", c.Service.BaseURL))
	}
	if c.Service.Timeout <= 0 {
		errs = append(errs, errors.New("TASKAPI_TIMEOUT must be positive"))
	}

	// Hook server validation
	if c.Hooks.Host == "" {
		errs = append(errs, errors.New("HOOKS_HOST is required"))
	}
	if c.Hooks.Port <= 0 || c.Hooks.Port > 65535 {
		errs = append(errs, fmt.Errorf("HOOKS_PORT must be between 1 and 65535, got %d", c.Hooks.Port))
	}
	if c.Hooks.PathMatch != PathMatchSubstring && c.Hooks.PathMatch != PathMatchSegment {
		errs = append(errs, fmt.Errorf("HOOKS_PATH_MATCH must be '%s' or '%s', got '%s'",
			PathMatchSubstring, PathMatchSegment, c.Hooks.PathMatch))
	}
	if len(c.Hooks.ProtectedPaths) == 0 {
		errs = append(errs, errors.New("HOOKS_PROTECTED_PATHS must have at least one path"))
	}
	for _, p := range c.Hooks.ProtectedPaths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("HOOKS_PROTECTED_PATHS entries must start with '/', got '%s'", p))
		}
	}
	if c.Hooks.InvalidToken == "" {
		errs = append(errs, errors.New("HOOKS_INVALID_TOKEN is required"))
	}
	if !strings.HasPrefix(c.Hooks.PlaceholderPath, "/") {
		errs = append(errs, fmt.Errorf("HOOKS_PLACEHOLDER_PATH must start with '/', got '%s'", c.Hooks.PlaceholderPath))
	}

	// Account validation
	if c.Account.Prefix == "" {
		errs = append(errs, errors.New("ACCOUNT_PREFIX is required"))
	}
	if c.Account.EmailDomain == "" || strings.Contains(c.Account.EmailDomain, "@") {
		errs = append(errs, fmt.Errorf("ACCOUNT_EMAIL_DOMAIN must be a bare domain, got '%s'", c.Account.EmailDomain))
	}
	if c.Account.Password == "" {
		errs = append(errs, errors.New("ACCOUNT_PASSWORD is required"))
	}

	// Log validation
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got '%s'", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be 'json' or 'text', got '%s'", c.Log.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
