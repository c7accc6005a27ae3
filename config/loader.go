package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix = "LECTURE_BUILDER"

	// EnvTwelveLabsAPIKey is the provider credential variable.
	EnvTwelveLabsAPIKey = "TWELVE_LABS_API_KEY"
	// EnvOpenAIAPIKey is the reasoning model credential variable.
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Options controls where Load looks for files.
type Options struct {
	// ConfigPath is an explicit YAML file; empty searches ./config.yaml and ./configs/config.yaml.
	ConfigPath string
	// DotEnvPath is a dotenv file; empty means ".env". A missing file is not an error.
	DotEnvPath string
}

// Load reads configuration. Priority (highest first):
//  1. TWELVE_LABS_API_KEY / OPENAI_API_KEY and LECTURE_BUILDER_* variables
//  2. .env file values for variables not already set
//  3. the YAML config file
//  4. defaults
func Load(opts Options) (*Config, error) {
	if err := loadDotEnv(opts.DotEnvPath); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("twelvelabs.api_key", EnvTwelveLabsAPIKey, envPrefix+"_TWELVELABS_API_KEY"); err != nil {
		return nil, &ConfigError{Op: "bind_env", Err: err}
	}
	if err := v.BindEnv("llm.api_key", EnvOpenAIAPIKey, envPrefix+"_LLM_API_KEY"); err != nil {
		return nil, &ConfigError{Op: "bind_env", Err: err}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(opts.ConfigPath == "" && errors.Is(err, fs.ErrNotExist)) {
			return nil, &ConfigError{Op: "read", Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Op: "unmarshal", Err: fmt.Errorf("failed to unmarshal config: %w", err)}
	}
	cfg.TwelveLabs.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.TwelveLabs.BaseURL), "/")
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("twelvelabs.base_url", "https://api.twelvelabs.io/v1.3")
	v.SetDefault("twelvelabs.index_id", "")
	v.SetDefault("twelvelabs.video_id", "")
	v.SetDefault("twelvelabs.timeout_seconds", 120)
	v.SetDefault("twelvelabs.requests_per_second", 0)

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// loadDotEnv exports the variables of a dotenv file that are not already set
// in the process environment.
func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &ConfigError{Op: "dotenv", Err: err}
	}

	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return &ConfigError{Op: "dotenv", Err: err}
	}
	for _, key := range env.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, env.GetString(key)); err != nil {
			return &ConfigError{Op: "dotenv", Err: err}
		}
	}
	return nil
}
