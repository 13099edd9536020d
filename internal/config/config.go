package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/bol-extractor/internal/infrastructure/resilience"
)

const (
	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
	ProviderOllama = "ollama"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	ConfigPath string

	APIPort      string
	UIPort       string
	UIAPIBaseURL string
	LogLevel     string

	LLMProvider string

	GoogleAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	VertexProjectID       string
	VertexRegion          string
	VertexModel           string
	VertexCredentialsFile string

	OllamaURL      string
	OllamaGenModel string

	LLMTimeoutSeconds   int
	LLMRetryMaxAttempts int
	LLMBreakerEnabled   bool

	StoreBackend      string
	StoreMaxDocuments int
	StoreTTLSeconds   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EventsNATSURL     string
	EventsNATSSubject string

	ExtractHonorHints  bool
	CORSAllowedOrigins []string
	MaxUploadMB        int
}

// Load reads the environment. When CONFIG_PATH names a YAML file its values sit between the
// environment and the built-in defaults. File keys are the lower-cased variable names; nested
// sections are joined with "_" (llm: {provider: ollama} sets LLM_PROVIDER).
func Load() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	file, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	src := source{file: file}

	return Config{
		ConfigPath: path,

		APIPort:      src.str("API_PORT", "8000"),
		UIPort:       src.str("UI_PORT", "8081"),
		UIAPIBaseURL: src.str("UI_API_BASE_URL", "http://localhost:8000"),
		LogLevel:     src.str("LOG_LEVEL", "info"),

		LLMProvider: strings.ToLower(src.str("LLM_PROVIDER", ProviderGemini)),

		GoogleAPIKey:  src.str("GOOGLE_API_KEY", ""),
		GeminiModel:   src.str("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		GeminiBaseURL: src.str("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),

		VertexProjectID:       src.str("VERTEX_PROJECT_ID", ""),
		VertexRegion:          src.str("VERTEX_REGION", "us-central1"),
		VertexModel:           src.str("VERTEX_MODEL", "gemini-1.5-flash"),
		VertexCredentialsFile: src.str("VERTEX_CREDENTIALS_FILE", ""),

		OllamaURL:      src.str("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel: src.str("OLLAMA_GEN_MODEL", "llava:7b"),

		LLMTimeoutSeconds:   src.integer("LLM_TIMEOUT_SECONDS", 120),
		LLMRetryMaxAttempts: src.integer("LLM_RETRY_MAX_ATTEMPTS", 1),
		LLMBreakerEnabled:   src.boolean("LLM_BREAKER_ENABLED", false),

		StoreBackend:      strings.ToLower(src.str("STORE_BACKEND", StoreMemory)),
		StoreMaxDocuments: src.integer("STORE_MAX_DOCUMENTS", 0),
		StoreTTLSeconds:   src.integer("STORE_TTL_SECONDS", 0),

		RedisAddr:     src.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword: src.str("REDIS_PASSWORD", ""),
		RedisDB:       src.integer("REDIS_DB", 0),

		EventsNATSURL:     src.str("EVENTS_NATS_URL", ""),
		EventsNATSSubject: src.str("EVENTS_NATS_SUBJECT", "documents.extracted"),

		ExtractHonorHints:  src.boolean("EXTRACT_HONOR_HINTS", false),
		CORSAllowedOrigins: splitList(src.str("CORS_ALLOWED_ORIGINS", "http://localhost,http://localhost:8501,http://localhost:8081")),
		MaxUploadMB:        src.integer("MAX_UPLOAD_MB", 20),
	}, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderGemini:
		if strings.TrimSpace(c.GoogleAPIKey) == "" {
			errs = append(errs, errors.New("missing GOOGLE_API_KEY in environment variables"))
		}
	case ProviderVertex:
		if strings.TrimSpace(c.VertexProjectID) == "" {
			errs = append(errs, errors.New("VERTEX_PROJECT_ID is required for the vertex provider"))
		}
		if strings.TrimSpace(c.VertexRegion) == "" {
			errs = append(errs, errors.New("VERTEX_REGION is required for the vertex provider"))
		}
	case ProviderOllama:
		if strings.TrimSpace(c.OllamaURL) == "" {
			errs = append(errs, errors.New("OLLAMA_URL is required for the ollama provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	if c.LLMTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT_SECONDS must be positive"))
	}
	if c.LLMRetryMaxAttempts <= 0 {
		errs = append(errs, errors.New("LLM_RETRY_MAX_ATTEMPTS must be positive"))
	}
	if c.StoreMaxDocuments < 0 || c.StoreTTLSeconds < 0 {
		errs = append(errs, errors.New("STORE_MAX_DOCUMENTS and STORE_TTL_SECONDS must not be negative"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	return errors.Join(errs...)
}

// Resilience maps the LLM settings onto the executor policy.
func (c Config) Resilience() resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.AttemptTimeout = time.Duration(c.LLMTimeoutSeconds) * time.Second
	cfg.RetryMaxAttempts = c.LLMRetryMaxAttempts
	cfg.BreakerEnabled = c.LLMBreakerEnabled
	return cfg
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	v, ok := s.file[key]
	return v, ok && v != ""
}

func (s source) str(key, fallback string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return fallback
}

func (s source) integer(key string, fallback int) int {
	v, ok := s.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func (s source) boolean(key string, fallback bool) bool {
	v, ok := s.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	out := make(map[string]string)
	flatten("", doc, out)
	return out, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case []any:
			items := make([]string, 0, len(val))
			for _, item := range val {
				items = append(items, fmt.Sprint(item))
			}
			out[key] = strings.Join(items, ",")
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
