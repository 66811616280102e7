package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "http://127.0.0.1:8090"
	DefaultTimeout        = 10 * time.Second
	DefaultTokenStatePath = "configs/cli_state.json"
	DefaultHistoryFile    = "configs/.cli_history"
	DefaultTokenTTL       = 12 * time.Hour
)

// AuthConfig lets the CLI mint operator tokens locally. It must match the
// service auth section.
type AuthConfig struct {
	Secret  string        `yaml:"secret"`
	Issuer  string        `yaml:"issuer"`
	Subject string        `yaml:"subject"`
	Role    string        `yaml:"role"`
	TTL     time.Duration `yaml:"ttl"`
}

// Config holds CLI configuration.
type Config struct {
	BaseURL        string        `yaml:"baseURL"`
	Timeout        time.Duration `yaml:"timeout"`
	TokenStatePath string        `yaml:"tokenStatePath"`
	HistoryFile    string        `yaml:"historyFile"`
	PrettyJSON     *bool         `yaml:"prettyJSON"`
	Auth           AuthConfig    `yaml:"auth"`
}

func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file failed: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TokenStatePath == "" {
		cfg.TokenStatePath = DefaultTokenStatePath
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = DefaultHistoryFile
	}
	if cfg.PrettyJSON == nil {
		value := true
		cfg.PrettyJSON = &value
	}
	if cfg.Auth.Subject == "" {
		cfg.Auth.Subject = "cli"
	}
	if cfg.Auth.Role == "" {
		cfg.Auth.Role = "admin"
	}
	if cfg.Auth.TTL == 0 {
		cfg.Auth.TTL = DefaultTokenTTL
	}
}
