package main

import (
	"fmt"
	"os"
	"time"

	"alchemy/internal/common/cache"
	"alchemy/internal/common/db"
	"alchemy/internal/common/http/middleware"
	"alchemy/internal/common/mq"
	"alchemy/internal/common/storage"
	"alchemy/internal/competition/service"
	"alchemy/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// HTTPConfig holds edge policies for the public API.
type HTTPConfig struct {
	CORS       middleware.CORSConfig      `yaml:"cors"`
	ReadLimit  middleware.RateLimitPolicy `yaml:"readLimit"`
	WriteLimit middleware.RateLimitPolicy `yaml:"writeLimit"`
}

// TopicConfig names the topics the service reads and writes.
type TopicConfig struct {
	Descriptors string `yaml:"descriptors"`
	Status      string `yaml:"status"`
	DeadLetter  string `yaml:"deadLetter"`
}

// ConsumerConfig tunes the descriptor consumer.
type ConsumerConfig struct {
	Group       string        `yaml:"group"`
	Concurrency int           `yaml:"concurrency"`
	MaxRetries  int           `yaml:"maxRetries"`
	RetryDelay  time.Duration `yaml:"retryDelay"`
}

func (c ConsumerConfig) toSubscribeOptions(deadLetter string) mq.SubscribeOptions {
	return mq.SubscribeOptions{
		ConsumerGroup:   c.Group,
		Concurrency:     c.Concurrency,
		MaxRetries:      c.MaxRetries,
		RetryDelay:      c.RetryDelay,
		DeadLetterTopic: deadLetter,
	}
}

// CompetitionConfig holds competition settings.
type CompetitionConfig struct {
	ListLimit     int                   `yaml:"listLimit"`
	CacheTTL      time.Duration         `yaml:"cacheTTL"`
	EmptyTTL      time.Duration         `yaml:"emptyTTL"`
	ArchiveBucket string                `yaml:"archiveBucket"`
	ArchivePrefix string                `yaml:"archivePrefix"`
	Consumer      ConsumerConfig        `yaml:"consumer"`
	Timeouts      service.TimeoutConfig `yaml:"timeouts"`
}

// AppConfig holds competition-service configuration.
type AppConfig struct {
	Server      ServerConfig          `yaml:"server"`
	HTTP        HTTPConfig            `yaml:"http"`
	Logger      logger.Config         `yaml:"logger"`
	Database    db.MySQLConfig        `yaml:"database"`
	Redis       cache.RedisConfig     `yaml:"redis"`
	Kafka       mq.KafkaConfig        `yaml:"kafka"`
	Topics      TopicConfig           `yaml:"topics"`
	MinIO       storage.MinIOConfig   `yaml:"minio"`
	Auth        middleware.AuthConfig `yaml:"auth"`
	Competition CompetitionConfig     `yaml:"competition"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}

	if cfg.Topics.Descriptors == "" {
		cfg.Topics.Descriptors = "competition.descriptors"
	}
	if cfg.Topics.Status == "" {
		cfg.Topics.Status = "competition.status"
	}
	if cfg.Topics.DeadLetter == "" {
		cfg.Topics.DeadLetter = "competition.descriptors.dlq"
	}

	if cfg.Competition.ListLimit == 0 {
		cfg.Competition.ListLimit = 100
	}
	if cfg.Competition.CacheTTL == 0 {
		cfg.Competition.CacheTTL = 30 * time.Minute
	}
	if cfg.Competition.EmptyTTL == 0 {
		cfg.Competition.EmptyTTL = 2 * time.Minute
	}
	if cfg.Competition.ArchiveBucket == "" {
		cfg.Competition.ArchiveBucket = cfg.MinIO.Bucket
	}
	if cfg.Competition.Consumer.Group == "" {
		cfg.Competition.Consumer.Group = "competition-service"
	}
	if cfg.Competition.Timeouts.DB == 0 {
		cfg.Competition.Timeouts.DB = 3 * time.Second
	}
	if cfg.Competition.Timeouts.Cache == 0 {
		cfg.Competition.Timeouts.Cache = 1 * time.Second
	}
	if cfg.Competition.Timeouts.MQ == 0 {
		cfg.Competition.Timeouts.MQ = 3 * time.Second
	}
	if cfg.Competition.Timeouts.Storage == 0 {
		cfg.Competition.Timeouts.Storage = 5 * time.Second
	}

	return &cfg, nil
}
