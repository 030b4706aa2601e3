package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all shopkeeper configuration.
type Config struct {
	Listen      string            `yaml:"listen"`
	DBPath      string            `yaml:"db_path"`
	Log         LogConfig         `yaml:"log"`
	Knowledge   KnowledgeConfig   `yaml:"knowledge"`
	Cache       CacheConfig       `yaml:"cache"`
	LLM         LLMConfig         `yaml:"llm"`
	Performance PerformanceConfig `yaml:"performance"`
	Journal     JournalConfig     `yaml:"journal"`
}

// LogConfig controls structured logging.
// Format is "console" or "json" (default).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// KnowledgeConfig selects the knowledge search backend.
// Backend is "file" (YAML catalog at Path) or "sqlite" (tables in DBPath).
type KnowledgeConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// CacheConfig controls the similarity response cache.
// Backend is "memory" (default) or "redis".
type CacheConfig struct {
	Enabled             bool                     `yaml:"enabled"`
	Backend             string                   `yaml:"backend"`
	RedisURL            string                   `yaml:"redis_url"`
	KeyPrefix           string                   `yaml:"key_prefix"`
	SimilarityThreshold int                      `yaml:"similarity_threshold"`
	ScanLimit           int                      `yaml:"scan_limit"`
	MaxEntries          int                      `yaml:"max_entries"`
	MaxQuestionLength   int                      `yaml:"max_question_length"`
	DefaultTTL          time.Duration            `yaml:"default_ttl"`
	TTL                 map[string]time.Duration `yaml:"ttl"`
}

// LLMConfig controls the language model fallback tier.
type LLMConfig struct {
	Enabled      bool             `yaml:"enabled"`
	Timeout      time.Duration    `yaml:"timeout"`
	SystemPrompt string           `yaml:"system_prompt"`
	HistoryTurns int              `yaml:"history_turns"`
	Providers    []ProviderConfig `yaml:"providers"`
}

// ProviderConfig defines an upstream LLM provider.
// Type is "openai" (default) or "anthropic".
type ProviderConfig struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// PerformanceConfig controls the performance collectors.
type PerformanceConfig struct {
	WindowSize         int           `yaml:"window_size"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
	SlowLogSize        int           `yaml:"slow_log_size"`
	Prometheus         bool          `yaml:"prometheus"`
}

// JournalConfig controls the SQLite interaction journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultSystemPrompt instructs the model to answer from the supplied context only.
const DefaultSystemPrompt = "你是一家生鲜小店的客服助手。请只根据提供的参考信息回答顾客的问题，回答简洁友好；参考信息不足时请如实说明，不要编造价格或政策。"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "shopkeeper.db",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Knowledge: KnowledgeConfig{
			Backend: "file",
			Path:    "catalog.yaml",
		},
		Cache: CacheConfig{
			Enabled:             true,
			Backend:             "memory",
			KeyPrefix:           "shopkeeper:answer:",
			SimilarityThreshold: 80,
			ScanLimit:           50,
			MaxEntries:          1000,
			MaxQuestionLength:   1000,
			DefaultTTL:          15 * time.Minute,
			TTL: map[string]time.Duration{
				"price":    time.Hour,
				"policy":   2 * time.Hour,
				"delivery": 30 * time.Minute,
				"greeting": 24 * time.Hour,
			},
		},
		LLM: LLMConfig{
			Enabled:      true,
			Timeout:      30 * time.Second,
			SystemPrompt: DefaultSystemPrompt,
			HistoryTurns: 6,
		},
		Performance: PerformanceConfig{
			WindowSize:         1000,
			SlowQueryThreshold: time.Second,
			SlowLogSize:        100,
			Prometheus:         true,
		},
		Journal: JournalConfig{
			Enabled: true,
		},
	}
}

// LoadEnvFiles loads KEY=VALUE files into the process environment.
// Missing files are skipped; variables already set are kept.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a YAML config file, expands environment variables and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Knowledge.Backend {
	case "file":
		if c.Knowledge.Path == "" {
			errs = append(errs, errors.New("knowledge.path is required for the file backend"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("knowledge.backend %q: want file or sqlite", c.Knowledge.Backend))
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q: want memory or redis", c.Cache.Backend))
	}
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 100 {
		errs = append(errs, fmt.Errorf("cache.similarity_threshold %d: want 0-100", c.Cache.SimilarityThreshold))
	}
	if c.Cache.DefaultTTL <= 0 {
		errs = append(errs, errors.New("cache.default_ttl must be positive"))
	}
	for category, ttl := range c.Cache.TTL {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("cache.ttl.%s must be positive", category))
		}
	}

	if c.LLM.Enabled {
		if len(c.LLM.Providers) == 0 {
			errs = append(errs, errors.New("llm.providers must not be empty when llm.enabled"))
		}
		if c.LLM.Timeout <= 0 {
			errs = append(errs, errors.New("llm.timeout must be positive"))
		}
	}
	for i, p := range c.LLM.Providers {
		switch p.Type {
		case "", "openai", "anthropic":
		default:
			errs = append(errs, fmt.Errorf("llm.providers[%d].type %q: want openai or anthropic", i, p.Type))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("llm.providers[%d].model is required", i))
		}
	}

	return errors.Join(errs...)
}
