// Package config parses application configuration from environment variables
// using caarlos0/env/v11.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/liamcoop/ruleweave/rules"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// LLM providers
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config holds all server configuration sourced from environment variables
type Config struct {
	// Server
	Port            string        `env:"PORT"             envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"  envDefault:"60s"`

	// Storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"file"`
	StorageKey     string `env:"STORAGE_KEY"     envDefault:"ruleweave_rules"`
	RulesFile      string `env:"RULES_FILE"      envDefault:"data/rules.json"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisAddr      string `env:"REDIS_ADDR"      envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB"        envDefault:"0"`

	// LLM collaborators. Keys here are fallbacks for requests that omit one.
	LLMProvider      string        `env:"LLM_PROVIDER"        envDefault:"anthropic"`
	AnthropicAPIKey  string        `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string        `env:"ANTHROPIC_BASE_URL"  envDefault:"https://api.anthropic.com/v1"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	MainModel        string        `env:"LLM_MAIN_MODEL"`
	LightModel       string        `env:"LLM_LIGHT_MODEL"`
	LLMTimeout       time.Duration `env:"LLM_TIMEOUT"         envDefault:"60s"`
	LLMMaxRetries    int           `env:"LLM_MAX_RETRIES"     envDefault:"3"`
	LLMRatePerSecond float64       `env:"LLM_RATE_PER_SECOND" envDefault:"5"`
	LLMBurst         int           `env:"LLM_BURST"           envDefault:"5"`

	SuggestionCacheTTL  time.Duration `env:"SUGGESTION_CACHE_TTL"  envDefault:"5m"`
	SuggestionCacheSize int           `env:"SUGGESTION_CACHE_SIZE" envDefault:"1000"`
}

// Load parses and validates Config from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and the settings each backend depends on
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory:
	case BackendFile:
		if c.RulesFile == "" {
			return fmt.Errorf("RULES_FILE is required for the %s backend", BackendFile)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the %s backend", BackendRedis)
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (use: memory, file, postgres, redis)", c.StorageBackend)
	}

	switch c.LLMProvider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (use: anthropic, gemini)", c.LLMProvider)
	}

	if c.StorageKey == "" {
		c.StorageKey = rules.DefaultStorageKey
	}
	return nil
}

// FallbackAPIKey returns the server-side key for the configured provider
func (c *Config) FallbackAPIKey() string {
	if c.LLMProvider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.AnthropicAPIKey
}

// String renders the config with secrets masked
func (c *Config) String() string {
	return fmt.Sprintf("port=%s storage=%s key=%s provider=%s anthropic_key=%s gemini_key=%s database_url=%s redis_addr=%s",
		c.Port, c.StorageBackend, c.StorageKey, c.LLMProvider,
		mask(c.AnthropicAPIKey), mask(c.GeminiAPIKey), mask(c.DatabaseURL), c.RedisAddr)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
