package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.baseDir = filepath.Dir(absPath)

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) resolvePath(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	base := c.baseDir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, p)
}

func (c *Config) applyDefaults() {
	if c.Store.QueryTimeout == 0 {
		c.Store.QueryTimeout = 10 * time.Second
	}
	if c.Store.BatchSize == 0 {
		c.Store.BatchSize = 500
	}
	if c.Model.Threshold == 0 {
		c.Model.Threshold = 0.5
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.RetryBase == 0 {
		c.Pipeline.RetryBase = 500 * time.Millisecond
	}
	if c.Pipeline.RetryMax == 0 {
		c.Pipeline.RetryMax = 30 * time.Second
	}
	if c.Pipeline.RetryAttempts == 0 {
		c.Pipeline.RetryAttempts = 5
	}
	if c.Pipeline.CacheSize == 0 {
		c.Pipeline.CacheSize = 65536
	}
	if c.Hardening.Lookback == 0 {
		c.Hardening.Lookback = 24 * time.Hour
	}
	if c.Hardening.MinSamples == 0 {
		c.Hardening.MinSamples = 20
	}
	if c.Hardening.PromoteThreshold == 0 {
		c.Hardening.PromoteThreshold = 0.90
	}
	if c.Hardening.DemoteThreshold == 0 {
		c.Hardening.DemoteThreshold = 0.80
	}
	if c.Hardening.ConfirmCycles == 0 {
		c.Hardening.ConfirmCycles = 2
	}
	if c.Notify.Throttle == 0 {
		c.Notify.Throttle = 15 * time.Minute
	}
	if c.Notify.SMTP.Timeout == 0 {
		c.Notify.SMTP.Timeout = 10 * time.Second
	}
	if c.Notify.SMTP.Port == 0 {
		c.Notify.SMTP.Port = 587
	}
	if c.Schedule.ClassifyEvery == 0 {
		c.Schedule.ClassifyEvery = 5 * time.Minute
	}
	if c.Schedule.HardenEvery == 0 {
		c.Schedule.HardenEvery = time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9109"
	}
}
