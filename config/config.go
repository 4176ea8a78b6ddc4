package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
)

const (
	DefaultServerAddr     = ":3030"
	DefaultCommand        = "wikirag"
	DefaultModel          = "llama3"
	DefaultPages          = "1"
	DefaultTimeoutSeconds = 120
	DefaultWaitDelay      = 5
	DefaultModelCacheSecs = 300
)

// Config is the gateway configuration. Values come from the YAML file first,
// then environment variables, then built-in defaults for whatever is still
// empty.
type Config struct {
	ServerAddr string         `yaml:"server_addr" env:"WIKIRAG_WEB_ADDR"`
	LogLevel   string         `yaml:"log_level" env:"WIKIRAG_WEB_LOG_LEVEL"`
	LogFormat  string         `yaml:"log_format" env:"WIKIRAG_WEB_LOG_FORMAT"`
	Tool       ToolConfig     `yaml:"tool"`
	Defaults   DefaultsConfig `yaml:"defaults"`
	Models     ModelsConfig   `yaml:"models"`
}

// ToolConfig describes how to run the wikirag executable.
type ToolConfig struct {
	Command          string   `yaml:"command" env:"WIKIRAG_COMMAND"`
	Args             []string `yaml:"args"`
	// TimeoutSeconds of 0 disables the per-invocation timeout; unset means
	// DefaultTimeoutSeconds.
	TimeoutSeconds   *int     `yaml:"timeout_seconds" env:"WIKIRAG_TIMEOUT_SECONDS"`
	WaitDelaySeconds int      `yaml:"wait_delay_seconds" env:"WIKIRAG_WAIT_DELAY_SECONDS"`
	// Mock answers locally without running the tool.
	Mock bool `yaml:"mock" env:"WIKIRAG_MOCK"`
}

// DefaultsConfig holds the values used when a request leaves model or page
// count out.
type DefaultsConfig struct {
	Model string `yaml:"model" env:"WIKIRAG_DEFAULT_MODEL"`
	Pages string `yaml:"pages" env:"WIKIRAG_DEFAULT_PAGES"`
}

// ModelsConfig configures the model selector. BaseURL points at an
// OpenAI-compatible API (Ollama serves one at /v1) used to discover models;
// Choices is the fallback list.
type ModelsConfig struct {
	Choices      []string `yaml:"choices" env:"WIKIRAG_MODELS" envSeparator:","`
	BaseURL      string   `yaml:"base_url" env:"WIKIRAG_MODELS_BASE_URL"`
	APIKey       string   `yaml:"api_key" env:"WIKIRAG_MODELS_API_KEY"`
	CacheSeconds int      `yaml:"cache_seconds" env:"WIKIRAG_MODELS_CACHE_SECONDS"`
}

func (t ToolConfig) Timeout() time.Duration {
	if t.TimeoutSeconds == nil {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(*t.TimeoutSeconds) * time.Second
}

func (t ToolConfig) WaitDelay() time.Duration {
	return time.Duration(t.WaitDelaySeconds) * time.Second
}

func (m ModelsConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheSeconds) * time.Second
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and fills defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Tool.Command == "" {
		c.Tool.Command = DefaultCommand
	}
	if c.Tool.TimeoutSeconds == nil {
		secs := DefaultTimeoutSeconds
		c.Tool.TimeoutSeconds = &secs
	}
	if c.Tool.WaitDelaySeconds == 0 {
		c.Tool.WaitDelaySeconds = DefaultWaitDelay
	}
	if c.Defaults.Model == "" {
		c.Defaults.Model = DefaultModel
	}
	if c.Defaults.Pages == "" {
		c.Defaults.Pages = DefaultPages
	}
	if c.Models.CacheSeconds == 0 {
		c.Models.CacheSeconds = DefaultModelCacheSecs
	}
}

// Validate checks values that defaults cannot repair.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Tool.Command) == "" {
		errs = append(errs, errors.New("tool.command must not be blank"))
	}
	if c.Tool.TimeoutSeconds != nil && *c.Tool.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("tool.timeout_seconds must not be negative, got %d", *c.Tool.TimeoutSeconds))
	}
	if c.Tool.WaitDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("tool.wait_delay_seconds must not be negative, got %d", c.Tool.WaitDelaySeconds))
	}
	if c.Models.CacheSeconds < 0 {
		errs = append(errs, fmt.Errorf("models.cache_seconds must not be negative, got %d", c.Models.CacheSeconds))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
