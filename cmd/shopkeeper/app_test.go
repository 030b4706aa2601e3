package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkeeper-ai/shopkeeper/pkg/config"
	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

const testCatalog = `
products:
  - name: 苹果
    price: 10
    unit: 斤
    category: 水果
policies:
  - id: delivery
    title: 配送政策
    content: 5公里内满39元免运费。
    tags: [配送, 运费]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	catalog := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(testCatalog), 0o600))

	cfg := config.Default()
	cfg.DBPath = filepath.Join(dir, "shopkeeper.db")
	cfg.Knowledge.Path = catalog
	cfg.LLM.Enabled = false
	return cfg
}

func TestNewAppResolvesWithoutLLM(t *testing.T) {
	a, err := newApp(testConfig(t), &bytes.Buffer{})
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	res := a.resolver.ResolveDetailed(ctx, "配送范围多大", nil)
	assert.Equal(t, models.OutcomeLocalRuleHit, res.Outcome)
	assert.Equal(t, "配送说明：5公里内满39元免运费。", res.Answer)

	res = a.resolver.ResolveDetailed(ctx, "苹果多少钱", nil)
	assert.Equal(t, models.OutcomeLLMError, res.Outcome)
	assert.Contains(t, res.Answer, "苹果 | 10元/斤")

	summary, err := a.journal.Summary(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, summary, 2)
	assert.Equal(t, int64(2), a.collector.Summary().TotalRequests)
}

func TestNewAppSQLiteKnowledge(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	cmd := newKnowledgeImportCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{cfg.Knowledge.Path})
	cmd.SetContext(context.Background())
	require.NoError(t, cmd.Flags().Set("config", writeConfig(t, cfg)))
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Imported 1 products")

	cfg.Knowledge.Backend = "sqlite"
	a, err := newApp(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	defer a.Close()

	res := a.resolver.ResolveDetailed(context.Background(), "苹果多少钱", nil)
	assert.Contains(t, res.Answer, "苹果 | 10元/斤")
}

func TestNewAppInitFailures(t *testing.T) {
	tests := map[string]func(cfg *config.Config){
		"missing catalog": func(cfg *config.Config) {
			cfg.Knowledge.Path = filepath.Join(t.TempDir(), "missing.yaml")
		},
		"bad redis url": func(cfg *config.Config) {
			cfg.Cache.Backend = "redis"
			cfg.Cache.RedisURL = "://not a url"
		},
		"unwritable journal": func(cfg *config.Config) {
			cfg.DBPath = filepath.Join(t.TempDir(), "no", "such", "dir", "shopkeeper.db")
		},
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			modify(cfg)

			var (
				a   *app
				err error
			)
			require.NotPanics(t, func() { a, err = newApp(cfg, &bytes.Buffer{}) })
			assert.Error(t, err)
			assert.Nil(t, a)
		})
	}
}

func TestAppCloseRunsClosersInReverse(t *testing.T) {
	var order []string
	a := &app{closers: []func() error{
		func() error { order = append(order, "knowledge"); return nil },
		func() error { order = append(order, "journal"); return errors.New("busy") },
	}}

	assert.EqualError(t, a.Close(), "busy")
	assert.Equal(t, []string{"journal", "knowledge"}, order)
	assert.NoError(t, a.Close())
}

func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shopkeeper.yaml")
	body := "db_path: " + cfg.DBPath + "\nknowledge:\n  path: " + cfg.Knowledge.Path + "\nllm:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
