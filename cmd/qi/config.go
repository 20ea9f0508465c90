package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danderson/qi/internal/qigen"
	"github.com/mattn/go-isatty"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// config is the contents of a --config file.
type config struct {
	// LogLevel is the minimum level of log messages: debug, info,
	// warn or error.
	LogLevel string `yaml:"logLevel" toml:"log_level"`
	// Timeout bounds every remote call, as a Go duration string.
	Timeout string `yaml:"timeout" toml:"timeout"`
	// Service describes the service for the generate command.
	Service qigen.Service `yaml:"service" toml:"service"`

	timeout time.Duration
	level   zapcore.Level
}

const defaultTimeout = 10 * time.Second

// loadConfig reads the config file at path, in YAML or TOML depending
// on its extension. An empty path returns the defaults.
func loadConfig(path string) (*config, error) {
	var cfg config
	if path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		switch ext := filepath.Ext(path); ext {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(bs, &cfg)
		case ".toml":
			err = toml.Unmarshal(bs, &cfg)
		default:
			return nil, fmt.Errorf("unknown config format %q, want .yaml or .toml", ext)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *config) setDefaults() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if err := c.level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	c.timeout = defaultTimeout
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.timeout = d
	}
	return nil
}

// logger returns a development logger at the configured level,
// colored when stderr is a terminal.
func (c *config) logger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	level := c.level
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zc.Build()
}
