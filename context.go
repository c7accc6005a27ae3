package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"lecture_builder/config"
	"lecture_builder/generator"
	"lecture_builder/logging"
	"lecture_builder/twelvelabs"
)

type commandContext struct {
	configFlag  *string
	envFileFlag *string
	videoFlag   *string
	indexFlag   *string

	configOnce sync.Once
	config     *config.Config
	logger     *zap.Logger
	configErr  error
}

func newCommandContext(configFlag, envFileFlag, videoFlag, indexFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		envFileFlag: envFileFlag,
		videoFlag:   videoFlag,
		indexFlag:   indexFlag,
	}
}

// ensureConfig loads configuration once, applies flag overrides and builds
// the logger.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(config.Options{
			ConfigPath: flagValue(c.configFlag),
			DotEnvPath: flagValue(c.envFileFlag),
		})
		if err != nil {
			c.configErr = err
			return
		}
		if v := flagValue(c.videoFlag); v != "" {
			cfg.TwelveLabs.VideoID = v
		}
		if v := flagValue(c.indexFlag); v != "" {
			cfg.TwelveLabs.IndexID = v
		}
		logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

func (c *commandContext) log() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

func (c *commandContext) syncLogger() {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func (c *commandContext) newClient() (*twelvelabs.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return twelvelabs.New(cfg.TwelveLabs.APIKey,
		twelvelabs.WithBaseURL(cfg.TwelveLabs.BaseURL),
		twelvelabs.WithTimeout(cfg.TwelveLabs.Timeout()),
		twelvelabs.WithRateLimit(cfg.TwelveLabs.RequestsPerSecond),
		twelvelabs.WithLogger(c.log()),
	)
}

// newAgent returns the reformat agent, or nil when no LLM provider is configured.
func (c *commandContext) newAgent() (*generator.Agent, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	llm, err := buildLLM(cfg.LLM)
	if err != nil || llm == nil {
		return nil, err
	}
	return generator.NewAgent(llm)
}

// newHandler builds a handler for the configured video. requireVideo is false
// for account-level commands such as indexes.
func (c *commandContext) newHandler(requireVideo bool) (*generator.Handler, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if requireVideo && strings.TrimSpace(cfg.TwelveLabs.VideoID) == "" {
		return nil, errors.New("video id is required (use --video or twelvelabs.video_id)")
	}
	client, err := c.newClient()
	if err != nil {
		return nil, err
	}
	agent, err := c.newAgent()
	if err != nil {
		return nil, err
	}
	return generator.NewHandler(client, cfg.TwelveLabs.VideoID,
		generator.WithIndexID(cfg.TwelveLabs.IndexID),
		generator.WithReformatter(agent),
		generator.WithLogger(c.log()),
	)
}

func buildLLM(cfg config.LLMConfig) (generator.LLMClient, error) {
	settings := &generator.LLMSettings{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
	}
	switch cfg.Provider {
	case "":
		return nil, nil
	case "mock":
		return generator.MockLLM{}, nil
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek exposes an OpenAI-compatible endpoint at base_url.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
