// Package config loads intake settings from an optional YAML file and
// INTAKE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config mirrors the layout of intake.yaml
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Gate       GateConfig       `mapstructure:"gate"`
	Feedback   FeedbackConfig   `mapstructure:"feedback"`
	Intake     IntakeConfig     `mapstructure:"intake"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Server     ServerConfig     `mapstructure:"server"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// StorageConfig selects the content store backend
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path"`   // sqlite database file
	DSN    string `mapstructure:"dsn"`    // postgres connection string
}

// LedgerConfig selects the idempotency ledger backend
type LedgerConfig struct {
	Driver    string        `mapstructure:"driver"` // sqlite or redis
	Cooldown  time.Duration `mapstructure:"cooldown"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Redis     RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EmbeddingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	Dimensions     int           `mapstructure:"dimensions"`
	BatchSize      int           `mapstructure:"batch_size"`
	ChunkDelay     time.Duration `mapstructure:"chunk_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CachePrefixLen int           `mapstructure:"cache_prefix_len"`
}

// SimilarityConfig selects where item vectors are indexed
type SimilarityConfig struct {
	Backend       string              `mapstructure:"backend"` // memory or elasticsearch
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	IndexName string   `mapstructure:"index_name"`
}

type DedupConfig struct {
	DuplicateThreshold     float64 `mapstructure:"duplicate_threshold"`
	NearDuplicateThreshold float64 `mapstructure:"near_duplicate_threshold"`
	MaxCandidates          int     `mapstructure:"max_candidates"`
	FailOpen               bool    `mapstructure:"fail_open"`
	MinTextLength          int     `mapstructure:"min_text_length"`
}

type GateConfig struct {
	Threshold         int                `mapstructure:"threshold"`
	ReviewBuffer      int                `mapstructure:"review_buffer"`
	Weights           map[string]float64 `mapstructure:"weights"`
	TechnicalChannels []string           `mapstructure:"technical_channels"`
	LexiconPath       string             `mapstructure:"lexicon_path"`
	CheckURLs         bool               `mapstructure:"check_urls"`
}

type FeedbackConfig struct {
	Label                 string   `mapstructure:"label"`
	Limit                 int      `mapstructure:"limit"`
	MaxReportsPerRun      int      `mapstructure:"max_reports_per_run"`
	CertificationChannels []string `mapstructure:"certification_channels"`
}

type IntakeConfig struct {
	MaxItemsPerRun    int `mapstructure:"max_items_per_run"`
	SampleConcurrency int `mapstructure:"sample_concurrency"`
}

type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "intake.db")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("ledger.cooldown", 24*time.Hour)
	v.SetDefault("ledger.key_prefix", "intake:ledger:")
	v.SetDefault("ledger.redis.addr", "localhost:6379")
	v.SetDefault("ledger.redis.password", "")
	v.SetDefault("ledger.redis.db", 0)

	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.dimensions", 768)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.chunk_delay", 100*time.Millisecond)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.cache_prefix_len", 200)

	v.SetDefault("similarity.backend", "memory")
	v.SetDefault("similarity.elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("similarity.elasticsearch.username", "")
	v.SetDefault("similarity.elasticsearch.password", "")
	v.SetDefault("similarity.elasticsearch.index_name", "intake_items")

	v.SetDefault("dedup.duplicate_threshold", 0.90)
	v.SetDefault("dedup.near_duplicate_threshold", 0.80)
	v.SetDefault("dedup.max_candidates", 50)
	v.SetDefault("dedup.fail_open", true)
	v.SetDefault("dedup.min_text_length", 10)

	v.SetDefault("gate.threshold", 70)
	v.SetDefault("gate.review_buffer", 15)
	v.SetDefault("gate.weights", map[string]float64{
		"duplicate":  0.25,
		"content":    0.30,
		"difficulty": 0.15,
		"relevance":  0.20,
		"media":      0.10,
	})
	v.SetDefault("gate.technical_channels", []string{
		"algorithms", "data-structures", "system-design", "databases",
		"frontend", "backend", "devops", "networking", "security",
	})
	v.SetDefault("gate.lexicon_path", "")
	v.SetDefault("gate.check_urls", false)

	v.SetDefault("feedback.label", "content-feedback")
	v.SetDefault("feedback.limit", 50)
	v.SetDefault("feedback.max_reports_per_run", 20)
	v.SetDefault("feedback.certification_channels", []string{})

	v.SetDefault("intake.max_items_per_run", 500)
	v.SetDefault("intake.sample_concurrency", 8)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("anthropic.max_tokens", 4096)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "content-feedback")
	v.SetDefault("kafka.group_id", "intake")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
}

// Load reads configuration from path (optional) and the environment.
// Environment variables use the INTAKE_ prefix with dots replaced by
// underscores, e.g. INTAKE_GATE_THRESHOLD=75.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "INTAKE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks backend selections and cross-field constraints.
// Component packages validate their own numeric ranges.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("storage.driver must be 'sqlite' or 'postgres' (got %q)", c.Storage.Driver)
	}

	switch c.Ledger.Driver {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("ledger.driver must be 'sqlite' or 'redis' (got %q)", c.Ledger.Driver)
	}
	if c.Ledger.Driver == "sqlite" && c.Storage.Driver != "sqlite" {
		return fmt.Errorf("ledger.driver 'sqlite' requires storage.driver 'sqlite'")
	}
	if c.Ledger.Cooldown <= 0 {
		return fmt.Errorf("ledger.cooldown must be positive (got %v)", c.Ledger.Cooldown)
	}

	switch c.Similarity.Backend {
	case "memory":
	case "elasticsearch":
		if len(c.Similarity.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("similarity.elasticsearch.addresses is required")
		}
	default:
		return fmt.Errorf("similarity.backend must be 'memory' or 'elasticsearch' (got %q)", c.Similarity.Backend)
	}

	if c.Gate.ReviewBuffer < 0 || c.Gate.ReviewBuffer > c.Gate.Threshold {
		return fmt.Errorf("gate.review_buffer must be between 0 and gate.threshold (got %d)", c.Gate.ReviewBuffer)
	}
	if c.Feedback.Label == "" {
		return fmt.Errorf("feedback.label is required")
	}
	if c.Intake.SampleConcurrency < 1 {
		return fmt.Errorf("intake.sample_concurrency must be at least 1 (got %d)", c.Intake.SampleConcurrency)
	}
	return nil
}

// Lexicon returns the channel lexicon, loading gate.lexicon_path when set
func (c *Config) Lexicon() (Lexicon, error) {
	if c.Gate.LexiconPath == "" {
		return DefaultLexicon(), nil
	}
	return LoadLexicon(c.Gate.LexiconPath)
}
