package config

import (
	"strings"
	"testing"
	"time"
)

// TestLoadDefaults verifies an empty environment yields a usable file-backed config
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.StorageBackend != BackendFile || cfg.StorageKey != "ruleweave_rules" {
		t.Errorf("storage = %q/%q", cfg.StorageBackend, cfg.StorageKey)
	}
	if cfg.LLMProvider != ProviderAnthropic {
		t.Errorf("LLMProvider = %q", cfg.LLMProvider)
	}
	if cfg.SuggestionCacheTTL != 5*time.Minute {
		t.Errorf("SuggestionCacheTTL = %v", cfg.SuggestionCacheTTL)
	}
}

// TestLoadOverrides verifies typed values are parsed from the environment
func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("LLM_RATE_PER_SECOND", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != "9090" || cfg.RedisAddr != "cache:6379" || cfg.RedisDB != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LLMTimeout != 15*time.Second || cfg.LLMRatePerSecond != 0.5 {
		t.Errorf("LLM settings = %v / %v", cfg.LLMTimeout, cfg.LLMRatePerSecond)
	}
	if cfg.FallbackAPIKey() != "g-key" {
		t.Errorf("FallbackAPIKey() = %q, want g-key", cfg.FallbackAPIKey())
	}
}

// TestLoadRejectsInvalid verifies unknown enumerations and missing dependencies fail
func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "mongo"}, "STORAGE_BACKEND"},
		{"postgres without url", map[string]string{"STORAGE_BACKEND": "postgres", "DATABASE_URL": ""}, "DATABASE_URL"},
		{"unknown provider", map[string]string{"STORAGE_BACKEND": "memory", "LLM_PROVIDER": "openai"}, "LLM_PROVIDER"},
		{"bad duration", map[string]string{"STORAGE_BACKEND": "memory", "LLM_TIMEOUT": "soon"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

// TestStringMasksSecrets verifies keys never appear in the rendered config
func TestStringMasksSecrets(t *testing.T) {
	cfg := &Config{AnthropicAPIKey: "sk-secret", DatabaseURL: "postgres://u:p@h/db"}
	s := cfg.String()
	if strings.Contains(s, "sk-secret") || strings.Contains(s, "u:p@h") {
		t.Errorf("String() leaked a secret: %s", s)
	}
}
