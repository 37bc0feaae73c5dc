// Package config loads schedctl client settings.
//
// Precedence, lowest first: built-in defaults, the YAML config file, a .env
// file, SCHEDCTL_* environment variables, then command-line flags (applied by
// the caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/me/schedctl/pkg/model"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SCHEDCTL_"

const (
	defaultServer       = "http://localhost:8000"
	defaultPollInterval = 30 * time.Second
	defaultTimeout      = 15 * time.Second
	defaultRatePerSec   = 10
	defaultConfirmTTL   = 30 * time.Second
	configDirName       = ".schedctl"
	configFileName      = "config.yaml"
	credentialsFileName = "credentials.json"
)

// ClientConfig holds configuration for the schedctl client.
type ClientConfig struct {
	Server       string        `yaml:"server"`        // Scheduler base URL
	LogLevel     string        `yaml:"log_level"`     // debug, info, warn, error
	LogFormat    string        `yaml:"log_format"`    // text, json
	PollInterval time.Duration `yaml:"poll_interval"` // Refresh period for --watch
	PageSize     int           `yaml:"page_size"`
	Timeout      time.Duration `yaml:"timeout"` // Per-request transport timeout
	RatePerSec   float64       `yaml:"rate_per_sec"`
	ConfirmTTL   time.Duration `yaml:"confirm_ttl"` // Lifetime of a pending delete confirmation

	CredentialsPath string `yaml:"credentials_path"`
	MetricsAddr     string `yaml:"metrics_addr"` // Empty disables the /metrics listener
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Server:          defaultServer,
		LogLevel:        "info",
		LogFormat:       "text",
		PollInterval:    defaultPollInterval,
		PageSize:        model.DefaultPageSize,
		Timeout:         defaultTimeout,
		RatePerSec:      defaultRatePerSec,
		ConfirmTTL:      defaultConfirmTTL,
		CredentialsPath: filepath.Join(Dir(), credentialsFileName),
	}
}

// Dir returns the schedctl configuration directory (~/.schedctl).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configDirName
	}
	return filepath.Join(home, configDirName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), configFileName)
}

// Load builds a ClientConfig from defaults, the YAML file at path (missing
// files are ignored), .env files and the environment. It does not validate:
// flags may still override what it loaded, so callers run Validate last.
func Load(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	// .env files never override variables already set in the environment.
	_ = godotenv.Load(existing(".env", filepath.Join(Dir(), ".env"))...)

	if err := cfg.mergeEnv(); err != nil {
		return cfg, err
	}
	cfg.Server = strings.TrimRight(cfg.Server, "/")
	return cfg, nil
}

func existing(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func (c *ClientConfig) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *ClientConfig) mergeEnv() error {
	c.Server = getEnvString("SERVER", c.Server)
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvString("LOG_FORMAT", c.LogFormat)
	c.CredentialsPath = getEnvString("CREDENTIALS", c.CredentialsPath)
	c.MetricsAddr = getEnvString("METRICS_ADDR", c.MetricsAddr)

	var err error
	if c.PollInterval, err = getEnvDuration("POLL_INTERVAL", c.PollInterval); err != nil {
		return err
	}
	if c.Timeout, err = getEnvDuration("TIMEOUT", c.Timeout); err != nil {
		return err
	}
	if c.ConfirmTTL, err = getEnvDuration("CONFIRM_TTL", c.ConfirmTTL); err != nil {
		return err
	}
	if c.PageSize, err = getEnvInt("PAGE_SIZE", c.PageSize); err != nil {
		return err
	}
	if v, ok := os.LookupEnv(EnvPrefix + "RATE_PER_SEC"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_PER_SEC: %w", EnvPrefix, err)
		}
		c.RatePerSec = f
	}
	return nil
}

// Validate rejects settings the client cannot run with.
func (c ClientConfig) Validate() error {
	var errs []error
	if c.Server == "" {
		errs = append(errs, errors.New("server URL is required"))
	} else if !strings.HasPrefix(c.Server, "http://") && !strings.HasPrefix(c.Server, "https://") {
		errs = append(errs, fmt.Errorf("server URL %q must start with http:// or https://", c.Server))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.PageSize < 1 || c.PageSize > model.MaxPageSize {
		errs = append(errs, fmt.Errorf("page size must be in [1, %d], got %d", model.MaxPageSize, c.PageSize))
	}
	if c.RatePerSec < 0 {
		errs = append(errs, fmt.Errorf("rate_per_sec must not be negative, got %v", c.RatePerSec))
	}
	if c.ConfirmTTL <= 0 {
		errs = append(errs, fmt.Errorf("confirm ttl must be positive, got %s", c.ConfirmTTL))
	}
	return errors.Join(errs...)
}

// getEnvString returns the environment variable value or default
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(EnvPrefix + key); ok && val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return i, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return d, nil
}
