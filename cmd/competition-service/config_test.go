package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "user:pass@tcp(localhost:3306)/alchemy?parseTime=true"
redis:
  addr: "localhost:6379"
minio:
  bucket: "alchemy"
auth:
  secret: "s3cret"
competition:
  listLimit: 50
  timeouts:
    db: 7s
`)
	cfg, err := loadAppConfig(path)
	require.NoError(t, err)

	assert.Equal(t, defaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, defaultReadTimeout, cfg.Server.ReadTimeout)
	assert.Equal(t, "competition.descriptors", cfg.Topics.Descriptors)
	assert.Equal(t, "competition.status", cfg.Topics.Status)
	assert.Equal(t, "competition.descriptors.dlq", cfg.Topics.DeadLetter)
	assert.Equal(t, 50, cfg.Competition.ListLimit)
	assert.Equal(t, "alchemy", cfg.Competition.ArchiveBucket)
	assert.Equal(t, 7*time.Second, cfg.Competition.Timeouts.DB)
	assert.Equal(t, time.Second, cfg.Competition.Timeouts.Cache)

	opts := cfg.Competition.Consumer.toSubscribeOptions(cfg.Topics.DeadLetter)
	assert.Equal(t, "competition-service", opts.ConsumerGroup)
	assert.Equal(t, "competition.descriptors.dlq", opts.DeadLetterTopic)
}

func TestLoadAppConfigRequiresConnections(t *testing.T) {
	_, err := loadAppConfig(writeConfig(t, "redis:\n  addr: localhost:6379\n"))
	assert.ErrorContains(t, err, "database dsn")

	_, err = loadAppConfig(writeConfig(t, "database:\n  dsn: x\n"))
	assert.ErrorContains(t, err, "redis addr")

	_, err = loadAppConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
