package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/xHacka/combined-log-analyzer/internal/clf"
)

const DefaultPath = "config.yaml"

type Config struct {
	LogPath       string       `yaml:"log_path"`
	DBPath        string       `yaml:"db_path"`
	RetentionDays int          `yaml:"retention_days"`
	Listen        string       `yaml:"listen"`
	LogLevel      string       `yaml:"log_level"`
	OnError       string       `yaml:"on_error"`
	BatchSize     int          `yaml:"batch_size"`
	Ignore        IgnoreConfig `yaml:"ignore"`
}

type IgnoreConfig struct {
	WhitelistedIPs   []string `yaml:"whitelisted_ips"`
	SkipExtensions   []string `yaml:"skip_extensions"`
	SkipMethods      []string `yaml:"skip_methods"`
	SkipStatusCodes  []int    `yaml:"skip_status_codes"`
	SkipPathPrefixes []string `yaml:"skip_path_prefixes"`
}

// Load reads path and fills in defaults. A missing file at DefaultPath
// yields the defaults; any other path must exist.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.DBPath == "" {
		c.DBPath = "./data/access.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.OnError == "" {
		c.OnError = "skip"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
}

func (c *Config) Validate() error {
	if _, err := clf.ParsePolicy(c.OnError); err != nil {
		return fmt.Errorf("on_error: %w", err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// ErrorPolicy returns the stream error handler named by OnError.
func (c *Config) ErrorPolicy() clf.ErrorHandler {
	h, _ := clf.ParsePolicy(c.OnError)
	return h
}

// Level returns the configured logrus level, falling back to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
