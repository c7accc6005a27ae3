// Package config loads lecture_builder settings with Viper from defaults, an
// optional YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	TwelveLabs TwelveLabsConfig `mapstructure:"twelvelabs" json:"twelvelabs"`
	LLM        LLMConfig        `mapstructure:"llm" json:"llm"`
	Server     ServerConfig     `mapstructure:"server" json:"server"`
	Logging    LoggingConfig    `mapstructure:"logging" json:"logging"`
}

// TwelveLabsConfig configures the video understanding provider.
type TwelveLabsConfig struct {
	APIKey            string  `mapstructure:"api_key" json:"-"`
	BaseURL           string  `mapstructure:"base_url" json:"base_url"`
	IndexID           string  `mapstructure:"index_id" json:"index_id"`
	VideoID           string  `mapstructure:"video_id" json:"video_id"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`
}

// Timeout returns the HTTP timeout for provider calls.
func (c TwelveLabsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LLMConfig configures the reasoning model used to reformat malformed output.
// An empty provider disables the reformat fallback.
type LLMConfig struct {
	Provider string `mapstructure:"provider" json:"provider,omitempty"`
	Model    string `mapstructure:"model" json:"model,omitempty"`
	APIKey   string `mapstructure:"api_key" json:"-"`
	BaseURL  string `mapstructure:"base_url" json:"base_url,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr                   string `mapstructure:"addr" json:"addr"`
	RequestTimeoutSeconds  int    `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" json:"level"`
	// Format is console or json.
	Format string `mapstructure:"format" json:"format"`
}

// Validate checks required fields and known enum values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TwelveLabs.APIKey) == "" {
		return &ConfigError{Op: "validate", Err: fmt.Errorf("twelvelabs.api_key is required (set %s)", EnvTwelveLabsAPIKey)}
	}
	if c.TwelveLabs.TimeoutSeconds <= 0 {
		return &ConfigError{Op: "validate", Err: errors.New("twelvelabs.timeout_seconds must be positive")}
	}
	if c.TwelveLabs.RequestsPerSecond < 0 {
		return &ConfigError{Op: "validate", Err: errors.New("twelvelabs.requests_per_second must not be negative")}
	}
	switch c.LLM.Provider {
	case "", "mock":
	case "openai":
	case "deepseek":
		// DeepSeek is reached through its OpenAI-compatible endpoint.
		if c.LLM.BaseURL == "" {
			return &ConfigError{Op: "validate", Err: errors.New("llm provider deepseek requires llm.base_url")}
		}
	default:
		return &ConfigError{Op: "validate", Err: fmt.Errorf("llm provider %q not supported", c.LLM.Provider)}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return &ConfigError{Op: "validate", Err: fmt.Errorf("logging.format %q not supported", c.Logging.Format)}
	}
	return nil
}

// ConfigError describes a failure in one loading step.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
