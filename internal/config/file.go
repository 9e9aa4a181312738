package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML files. Durations are Go duration strings.
type fileConfig struct {
	CollectionURL string `yaml:"collection_url"`
	AssetsURL     string `yaml:"assets_url"`
	FetchTimeout  string `yaml:"fetch_timeout"`
	ProbeTimeout  string `yaml:"probe_timeout"`
	ProbeCacheTTL string `yaml:"probe_cache_ttl"`
	Cache         struct {
		Duration string `yaml:"duration"`
	} `yaml:"cache"`
	Retry struct {
		MaxRetries  *int   `yaml:"max_retries"`
		BaseDelay   string `yaml:"base_delay"`
		Exponential *bool  `yaml:"exponential"`
	} `yaml:"retry"`
	Emergency struct {
		Backend string `yaml:"backend"`
		URL     string `yaml:"url"`
	} `yaml:"emergency"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

func applyYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.CollectionURL, fc.CollectionURL)
	setString(&cfg.AssetsURL, strings.TrimRight(fc.AssetsURL, "/"))
	setString(&cfg.EmergencyBackend, strings.ToLower(fc.Emergency.Backend))
	setString(&cfg.EmergencyURL, fc.Emergency.URL)
	setString(&cfg.ServerPort, fc.Server.Port)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"fetch_timeout", fc.FetchTimeout, &cfg.FetchTimeout},
		{"probe_timeout", fc.ProbeTimeout, &cfg.ProbeTimeout},
		{"probe_cache_ttl", fc.ProbeCacheTTL, &cfg.ProbeCacheTTL},
		{"cache.duration", fc.Cache.Duration, &cfg.CacheDuration},
		{"retry.base_delay", fc.Retry.BaseDelay, &cfg.RetryBaseDelay},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("config file %s: invalid %s: %w", path, d.name, err)
		}
		*d.dst = parsed
	}

	if fc.Retry.MaxRetries != nil {
		cfg.MaxRetries = *fc.Retry.MaxRetries
	}
	if fc.Retry.Exponential != nil {
		cfg.ExponentialBackoff = *fc.Retry.Exponential
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
