// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	Provider        string  `yaml:"provider"` // gemini|openai|noop
	OpenAIKey       string  `yaml:"openai_key"`
	OpenAIBaseURL   string  `yaml:"openai_base_url"`
	GeminiKey       string  `yaml:"gemini_key"`
	GeminiURL       string  `yaml:"gemini_url"`
	ChatModel       string  `yaml:"chat_model"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	EmbeddingDims   int     `yaml:"embedding_dims"`
	ConcurrentLimit int     `yaml:"concurrent_limit"` // max concurrent AI calls
	EmbedRPS        float64 `yaml:"embed_rps"`
}

type QueueConfig struct {
	Prefix           string        `yaml:"prefix"`
	MaxAttempts      int           `yaml:"max_attempts"`
	BackoffBase      time.Duration `yaml:"backoff_base"`
	KeepCompleted    int           `yaml:"keep_completed"`
	CompletedMaxAge  time.Duration `yaml:"completed_max_age"`
	KeepFailed       int           `yaml:"keep_failed"`
	DefaultBatchSize int           `yaml:"default_batch_size"`
	JanitorInterval  time.Duration `yaml:"janitor_interval"`
	StalledAfter     time.Duration `yaml:"stalled_after"`
}

type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	RateLimitMax    int           `yaml:"rate_limit_max"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPostRetries  int           `yaml:"max_post_retries"`
	StaleAfter      time.Duration `yaml:"stale_after"`
}

type SchedulerConfig struct {
	EnqueueSpec string        `yaml:"enqueue_spec"` // cron spec, e.g. "@every 30m"
	BatchSize   int           `yaml:"batch_size"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

type APIConfig struct {
	Port           int           `yaml:"port"`
	JWTSecret      string        `yaml:"jwt_secret"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      int           `yaml:"rate_limit"` // requests per minute per client on analysis routes
}

type AnalysisConfig struct {
	RAGMinSimilarity     float64 `yaml:"rag_min_similarity"`
	RAGContextSize       int     `yaml:"rag_context_size"`
	ExcerptChars         int     `yaml:"excerpt_chars"`
	ComparativeNeighbors int     `yaml:"comparative_neighbors"`
	RarityPercent        float64 `yaml:"rarity_percent"`
	ConfidenceMedium     int     `yaml:"confidence_medium"`
	ConfidenceHigh       int     `yaml:"confidence_high"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Queue     QueueConfig     `yaml:"queue"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	API       APIConfig       `yaml:"api"`
	Analysis  AnalysisConfig  `yaml:"analysis"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes raw YAML, fills defaults and validates.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Analysis.ConfidenceMedium >= cfg.Analysis.ConfidenceHigh {
		return nil, errors.New("analysis.confidence_medium must be below analysis.confidence_high")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.ChatModel == "" {
		cfg.AI.ChatModel = "gpt-4o-mini"
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "gemini-embedding-001"
	}
	if cfg.AI.EmbeddingDims <= 0 {
		cfg.AI.EmbeddingDims = 384
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.EmbedRPS <= 0 {
		cfg.AI.EmbedRPS = 5
	}

	if cfg.Queue.Prefix == "" {
		cfg.Queue.Prefix = "embeddings"
	}
	if cfg.Queue.MaxAttempts <= 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.BackoffBase <= 0 {
		cfg.Queue.BackoffBase = 5 * time.Second
	}
	if cfg.Queue.KeepCompleted <= 0 {
		cfg.Queue.KeepCompleted = 1000
	}
	if cfg.Queue.CompletedMaxAge <= 0 {
		cfg.Queue.CompletedMaxAge = 24 * time.Hour
	}
	if cfg.Queue.KeepFailed <= 0 {
		cfg.Queue.KeepFailed = 5000
	}
	if cfg.Queue.DefaultBatchSize <= 0 {
		cfg.Queue.DefaultBatchSize = 100
	}
	if cfg.Queue.JanitorInterval <= 0 {
		cfg.Queue.JanitorInterval = 10 * time.Minute
	}
	if cfg.Queue.StalledAfter <= 0 {
		cfg.Queue.StalledAfter = 30 * time.Minute
	}

	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 2
	}
	if cfg.Worker.RateLimitMax <= 0 {
		cfg.Worker.RateLimitMax = 10
	}
	if cfg.Worker.RateLimitWindow <= 0 {
		cfg.Worker.RateLimitWindow = time.Minute
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = 500 * time.Millisecond
	}
	if cfg.Worker.MaxPostRetries <= 0 {
		cfg.Worker.MaxPostRetries = 3
	}
	if cfg.Worker.StaleAfter <= 0 {
		cfg.Worker.StaleAfter = 15 * time.Minute
	}

	if cfg.Scheduler.EnqueueSpec == "" {
		cfg.Scheduler.EnqueueSpec = "@every 30m"
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = cfg.Queue.DefaultBatchSize
	}
	if cfg.Scheduler.LockTTL <= 0 {
		cfg.Scheduler.LockTTL = time.Minute
	}

	if cfg.API.Port <= 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.RequestTimeout <= 0 {
		cfg.API.RequestTimeout = 30 * time.Second
	}
	if cfg.API.RateLimit <= 0 {
		cfg.API.RateLimit = 30
	}

	if cfg.Analysis.RAGMinSimilarity <= 0 {
		cfg.Analysis.RAGMinSimilarity = 0.6
	}
	if cfg.Analysis.RAGContextSize <= 0 {
		cfg.Analysis.RAGContextSize = 10
	}
	if cfg.Analysis.ExcerptChars <= 0 {
		cfg.Analysis.ExcerptChars = 1000
	}
	if cfg.Analysis.ComparativeNeighbors <= 0 {
		cfg.Analysis.ComparativeNeighbors = 30
	}
	if cfg.Analysis.RarityPercent <= 0 {
		cfg.Analysis.RarityPercent = 20
	}
	if cfg.Analysis.ConfidenceMedium <= 0 {
		cfg.Analysis.ConfidenceMedium = 20
	}
	if cfg.Analysis.ConfidenceHigh <= 0 {
		cfg.Analysis.ConfidenceHigh = 100
	}
}

// DefaultAnalysis returns the analysis thresholds used when no file is loaded.
func DefaultAnalysis() AnalysisConfig {
	var cfg Config
	cfg.applyDefaults()
	return cfg.Analysis
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
