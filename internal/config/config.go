package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexcabrera/kybflow/internal/paths"
)

// Environment variables that override the file.
const (
	EnvAddr   = "KYBFLOW_ADDR"
	EnvDB     = "KYBFLOW_DB"
	EnvServer = "KYBFLOW_SERVER"
)

// Config represents the kybflow configuration.
type Config struct {
	ListenAddr    string        `yaml:"listen_addr"`
	DatabasePath  string        `yaml:"database_path"`
	ServerURL     string        `yaml:"server_url"`
	AutosaveDelay time.Duration `yaml:"autosave_delay"`
	SaveRetries   int           `yaml:"save_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		ListenAddr:    ":3001",
		DatabasePath:  paths.DatabasePath(),
		ServerURL:     "http://localhost:3001",
		AutosaveDelay: 2 * time.Second,
		SaveRetries:   2,
		RetryDelay:    200 * time.Millisecond,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load reads configuration from the given path, falling back to defaults
// when missing. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.SaveRetries < 0 {
		return fmt.Errorf("save_retries must not be negative, got %d", c.SaveRetries)
	}
	if c.AutosaveDelay < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func applyEnv(c *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDB)); v != "" {
		c.DatabasePath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServer)); v != "" {
		c.ServerURL = v
	}
}

// fillDefaults restores defaults for keys present in the file but empty.
func (c *Config) fillDefaults() {
	d := Default()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = d.ListenAddr
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		c.DatabasePath = d.DatabasePath
	}
	if strings.TrimSpace(c.ServerURL) == "" {
		c.ServerURL = d.ServerURL
	}
	if c.AutosaveDelay == 0 {
		c.AutosaveDelay = d.AutosaveDelay
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
}
