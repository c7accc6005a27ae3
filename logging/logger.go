// Package logging builds the zap logger shared by the CLI, server and handlers.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
}

// New constructs a zap logger. Format is "console" (default) or "json".
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(defaultString(opts.Level, "info")))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		if len(opts.OutputPaths) == 0 && stderrIsTerminal() {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = level > zapcore.DebugLevel
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	} else {
		cfg.OutputPaths = []string{"stderr"}
	}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
