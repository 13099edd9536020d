package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CONFIG_PATH", "LLM_PROVIDER", "STORE_BACKEND", "LLM_TIMEOUT_SECONDS", "LLM_RETRY_MAX_ATTEMPTS", "CORS_ALLOWED_ORIGINS", "EXTRACT_HONOR_HINTS", "API_PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMProvider != ProviderGemini || cfg.StoreBackend != StoreMemory || cfg.APIPort != "8000" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.LLMTimeoutSeconds != 120 || cfg.LLMRetryMaxAttempts != 1 || cfg.ExtractHonorHints {
		t.Fatalf("unexpected llm defaults %+v", cfg)
	}
	want := []string{"http://localhost", "http://localhost:8501", "http://localhost:8081"}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Fatalf("expected origins %v, got %v", want, cfg.CORSAllowedOrigins)
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  provider: ollama
  timeout_seconds: 30
ollama:
  gen_model: llava:13b
store:
  backend: redis
  max_documents: 50
cors_allowed_origins:
  - http://ui.local
  - http://other.local
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("LLM_TIMEOUT_SECONDS", "45")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("STORE_MAX_DOCUMENTS", "")
	t.Setenv("OLLAMA_GEN_MODEL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMProvider != ProviderOllama || cfg.OllamaGenModel != "llava:13b" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.LLMTimeoutSeconds != 45 {
		t.Fatalf("expected env to override file, got %d", cfg.LLMTimeoutSeconds)
	}
	if cfg.StoreBackend != StoreRedis || cfg.StoreMaxDocuments != 50 {
		t.Fatalf("unexpected store settings %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, []string{"http://ui.local", "http://other.local"}) {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateRequiresAPIKeyForGemini(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "GOOGLE_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}

	cfg.GoogleAPIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Config{LLMProvider: "openai", StoreBackend: "postgres", LLMTimeoutSeconds: 0, LLMRetryMaxAttempts: 1, MaxUploadMB: 1}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, part := range []string{"LLM_PROVIDER", "STORE_BACKEND", "LLM_TIMEOUT_SECONDS"} {
		if !strings.Contains(err.Error(), part) {
			t.Fatalf("expected %s in %v", part, err)
		}
	}
}

func TestOllamaNeedsNoKey(t *testing.T) {
	cfg := Config{LLMProvider: ProviderOllama, OllamaURL: "http://localhost:11434", StoreBackend: StoreMemory, LLMTimeoutSeconds: 1, LLMRetryMaxAttempts: 1, MaxUploadMB: 1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestResilienceMapping(t *testing.T) {
	cfg := Config{LLMTimeoutSeconds: 15, LLMRetryMaxAttempts: 3, LLMBreakerEnabled: true}
	rc := cfg.Resilience()
	if rc.AttemptTimeout != 15*time.Second || rc.RetryMaxAttempts != 3 || !rc.BreakerEnabled {
		t.Fatalf("unexpected resilience config %+v", rc)
	}
}
