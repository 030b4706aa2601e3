package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, 80, cfg.Cache.SimilarityThreshold)
	assert.Equal(t, 50, cfg.Cache.ScanLimit)
	assert.Equal(t, time.Hour, cfg.Cache.TTL["price"])
	assert.Equal(t, 15*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 6, cfg.LLM.HistoryTurns)
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	path := writeFile(t, "config.yaml", `
listen: ":9090"
db_path: "test.db"
knowledge:
  backend: sqlite
cache:
  backend: redis
  redis_url: redis://localhost:6379/0
  ttl:
    price: 30m
llm:
  timeout: 10s
  providers:
    - name: primary
      url: https://api.openai.com/v1
      api_key: ${TEST_API_KEY}
      model: gpt-4o-mini
    - name: backup
      type: anthropic
      model: claude-haiku-4-5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "sqlite", cfg.Knowledge.Backend)
	assert.Equal(t, "sk-test-123", cfg.LLM.Providers[0].APIKey)
	assert.Equal(t, "anthropic", cfg.LLM.Providers[1].Type)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL["price"])
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 50, cfg.Cache.ScanLimit, "unset fields keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cfg := Default()
	cfg.Cache.SimilarityThreshold = 120
	cfg.Cache.Backend = "memcached"
	cfg.Cache.TTL["price"] = 0
	cfg.LLM.Providers = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
	assert.Contains(t, err.Error(), "memcached")
	assert.Contains(t, err.Error(), "cache.ttl.price")
	assert.Contains(t, err.Error(), "llm.providers")
}

func TestValidateAllowsDisabledLLMWithoutProviders(t *testing.T) {
	cfg := Default()
	cfg.LLM.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvFiles(t *testing.T) {
	path := writeFile(t, ".env", "SHOPKEEPER_TEST_KEY=from-env-file\n")
	t.Setenv("SHOPKEEPER_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("SHOPKEEPER_TEST_KEY"))

	require.NoError(t, LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "from-env-file", os.Getenv("SHOPKEEPER_TEST_KEY"))
}
