package model

import "time"

// Strictness selects how aggressively verification drops offers
type Strictness string

const (
	StrictnessStrict   Strictness = "strict"
	StrictnessModerate Strictness = "moderate"
	StrictnessLenient  Strictness = "lenient"
)

// Config holds all runtime configuration
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Freshness    FreshnessConfig    `yaml:"freshness" mapstructure:"freshness"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Rerank       RerankConfig       `yaml:"rerank" mapstructure:"rerank"`
	Resolver     ResolverConfig     `yaml:"resolver" mapstructure:"resolver"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	TurnTimeout  time.Duration      `yaml:"turn_timeout" mapstructure:"turn_timeout"`
}

// StoreConfig selects and configures the key-value store
type StoreConfig struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"` // memory | redis
	Redis       RedisConfig   `yaml:"redis" mapstructure:"redis"`
	SessionTTL  time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	LLMCacheTTL time.Duration `yaml:"llm_cache_ttl" mapstructure:"llm_cache_ttl"`
	OpTimeout   time.Duration `yaml:"op_timeout" mapstructure:"op_timeout"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	PoolSize int    `yaml:"pool_size" mapstructure:"pool_size"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// FreshnessConfig holds cache freshness thresholds
type FreshnessConfig struct {
	CategoryThresholds      map[string]time.Duration `yaml:"category_thresholds" mapstructure:"category_thresholds"`
	DefaultThreshold        time.Duration            `yaml:"default_threshold" mapstructure:"default_threshold"`
	PriceSensitiveThreshold time.Duration            `yaml:"price_sensitive_threshold" mapstructure:"price_sensitive_threshold"`
	MaxAge                  time.Duration            `yaml:"max_age" mapstructure:"max_age"`
	PriceSensitiveKeywords  []string                 `yaml:"price_sensitive_keywords" mapstructure:"price_sensitive_keywords"`
}

// SearchConfig configures the search provider adapter
type SearchConfig struct {
	Endpoint       string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey         string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxResults     int           `yaml:"max_results" mapstructure:"max_results"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	IncludeDomains []string      `yaml:"include_domains" mapstructure:"include_domains"`
}

// VerificationConfig configures per-offer verification
type VerificationConfig struct {
	Strictness         Strictness    `yaml:"strictness" mapstructure:"strictness"`
	ProbeTimeout       time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	Workers            int           `yaml:"workers" mapstructure:"workers"`
	MaxRetries         int           `yaml:"max_retries" mapstructure:"max_retries"`
	StrictThreshold    float64       `yaml:"strict_threshold" mapstructure:"strict_threshold"`
	UnreachablePenalty float64       `yaml:"unreachable_penalty" mapstructure:"unreachable_penalty"`
	RequestsPerSecond  float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst              int           `yaml:"burst" mapstructure:"burst"`
	RespectRobots      bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	SkipProbe          bool          `yaml:"skip_probe" mapstructure:"skip_probe"`
}

// RerankConfig configures ranking
type RerankConfig struct {
	TopN        int           `yaml:"top_n" mapstructure:"top_n"`
	Semantic    bool          `yaml:"semantic" mapstructure:"semantic"`
	Workers     int           `yaml:"workers" mapstructure:"workers"`
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	Weights     RerankWeights `yaml:"weights" mapstructure:"weights"`
}

// RerankWeights are the feature weights of the algorithmic score
type RerankWeights struct {
	Price     float64 `yaml:"price" mapstructure:"price"`
	Discount  float64 `yaml:"discount" mapstructure:"discount"`
	Rating    float64 `yaml:"rating" mapstructure:"rating"`
	Quality   float64 `yaml:"quality" mapstructure:"quality"`
	Freshness float64 `yaml:"freshness" mapstructure:"freshness"`
}

// ResolverConfig configures follow-up reference resolution
type ResolverConfig struct {
	FuzzyFloor float64 `yaml:"fuzzy_floor" mapstructure:"fuzzy_floor"`
	UseLLM     bool    `yaml:"use_llm" mapstructure:"use_llm"`
}

// LLMConfig selects the optional language-model provider
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai | anthropic | ollama | ""
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// HTTPConfig holds outbound HTTP settings
type HTTPConfig struct {
	UserAgent  string `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json | console
}

// DefaultPriceSensitiveKeywords flag a query as price-driven
var DefaultPriceSensitiveKeywords = []string{
	"cheapest", "lowest price", "best deal", "discount", "sale",
	"clearance", "bargain", "hot deal", "limited time", "cheap",
	"affordable", "budget", "markdown", "reduced", "best price",
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "memory",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "dealcore:",
			},
			SessionTTL:  24 * time.Hour,
			LLMCacheTTL: time.Hour,
			OpTimeout:   2 * time.Second,
		},
		Freshness: FreshnessConfig{
			CategoryThresholds: map[string]time.Duration{
				"electronics": 4 * time.Hour,
				"gaming":      8 * time.Hour,
				"software":    6 * time.Hour,
				"fashion":     12 * time.Hour,
				"home":        16 * time.Hour,
				"sports":      12 * time.Hour,
				"books":       24 * time.Hour,
			},
			DefaultThreshold:        24 * time.Hour,
			PriceSensitiveThreshold: 4 * time.Hour,
			MaxAge:                  24 * time.Hour,
			PriceSensitiveKeywords:  append([]string(nil), DefaultPriceSensitiveKeywords...),
		},
		Search: SearchConfig{
			Timeout:      10 * time.Second,
			MaxResults:   20,
			MaxBodyBytes: 2_000_000,
		},
		Verification: VerificationConfig{
			Strictness:         StrictnessModerate,
			ProbeTimeout:       5 * time.Second,
			Workers:            5,
			MaxRetries:         3,
			StrictThreshold:    75,
			UnreachablePenalty: 20,
			RequestsPerSecond:  2,
			Burst:              5,
			RespectRobots:      true,
		},
		Rerank: RerankConfig{
			TopN:        10,
			Semantic:    true,
			Workers:     4,
			CallTimeout: 5 * time.Second,
			Weights: RerankWeights{
				Price:     0.25,
				Discount:  0.20,
				Rating:    0.15,
				Quality:   0.30,
				Freshness: 0.10,
			},
		},
		Resolver: ResolverConfig{
			FuzzyFloor: 0.5,
			UseLLM:     true,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 500,
		},
		HTTP: HTTPConfig{
			UserAgent: "DealCore/0.1 (+https://github.com/ppiankov/dealcore)",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		TurnTimeout: 45 * time.Second,
	}
}
