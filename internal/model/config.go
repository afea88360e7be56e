package model

import "time"

// Config is the complete run configuration.
// Loaded from defaults, then config file, env vars and CLI flags (in that order).
type Config struct {
	Dataset    string           `yaml:"dataset" mapstructure:"dataset"`
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
}

// InputConfig describes the comment table
type InputConfig struct {
	Path        string   `yaml:"path" mapstructure:"path"`
	IDColumn    string   `yaml:"id_column" mapstructure:"id_column"`
	BodyColumn  string   `yaml:"body_column" mapstructure:"body_column"`
	Properties  []string `yaml:"properties" mapstructure:"properties"`     // Extra columns passed through
	StripMarkup bool     `yaml:"strip_markup" mapstructure:"strip_markup"` // Remove HTML tags from bodies
}

// OutputConfig describes where the argument and relation tables go
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"` // Tables land in <dir>/<dataset>/
}

// ExtractionConfig controls the batch extractor
type ExtractionConfig struct {
	Model           string        `yaml:"model" mapstructure:"model"`
	Prompt          string        `yaml:"prompt" mapstructure:"prompt"`
	PromptFile      string        `yaml:"prompt_file" mapstructure:"prompt_file"`
	Workers         int           `yaml:"workers" mapstructure:"workers"`
	ChunkSize       int           `yaml:"chunk_size" mapstructure:"chunk_size"` // 0 means Workers
	SubBatchSize    int           `yaml:"sub_batch_size" mapstructure:"sub_batch_size"`
	FallbackTimeout time.Duration `yaml:"fallback_timeout" mapstructure:"fallback_timeout"`
	Limit           int           `yaml:"limit" mapstructure:"limit"` // 0 means no limit

	// Retries is accepted for compatibility with existing configs.
	// Extraction always makes a single attempt per tier.
	Retries int `yaml:"retries" mapstructure:"retries"`
}

// LLMConfig holds language model provider configuration
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, azure, anthropic, ollama
	APIKey      string  `yaml:"-" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig controls the model response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig throttles requests per model
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Pretty bool   `yaml:"pretty" mapstructure:"pretty"`
}

// MetricsConfig controls the Prometheus textfile export
type MetricsConfig struct {
	File string `yaml:"file,omitempty" mapstructure:"file"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Dataset: "default",
		Input: InputConfig{
			IDColumn:   "comment-id",
			BodyColumn: "comment-body",
		},
		Output: OutputConfig{
			Dir: "outputs",
		},
		Extraction: ExtractionConfig{
			Model:           "gpt-4o-mini",
			Workers:         30,
			SubBatchSize:    5,
			FallbackTimeout: 30 * time.Second,
			Retries:         1,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Timeout:   60,
			MaxTokens: 2000,
		},
		Cache: CacheConfig{
			Enabled:   false,
			Dir:       ".broadlistening/cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             5,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// ChunkLen returns the number of comments handed to the extractor at a time
func (c ExtractionConfig) ChunkLen() int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	if c.Workers > 0 {
		return c.Workers
	}
	return 1
}
