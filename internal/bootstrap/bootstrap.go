package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/bol-extractor/internal/config"
	"github.com/kirillkom/bol-extractor/internal/core/ports"
	"github.com/kirillkom/bol-extractor/internal/core/usecase"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/extractor/textlayer"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/llm/replyparser"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/llm/vertex"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/resilience"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/store/memory"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/store/redis"
	"github.com/kirillkom/bol-extractor/internal/observability/metrics"
)

// documentStore is what both store backends provide.
type documentStore interface {
	ports.DocumentStore
	ports.AgentConfigStore
}

type App struct {
	Config config.Config

	Intake       ports.DocumentIntake
	Configurator ports.AgentConfigurator
	Questions    ports.QuestionAnswerer
	ModelName    string

	closeFns []func()
}

// New wires the use cases. Extraction metrics register on registerer; nil keeps them private.
func New(ctx context.Context, cfg config.Config, registerer prometheus.Registerer) (*App, error) {
	app := &App{Config: cfg}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	extractionMetrics := metrics.NewExtractionMetrics(registerer)

	llmExecutor := resilience.NewExecutor(cfg.Resilience(), resilience.WithStateObserver(extractionMetrics.ObserveBreakerState))
	model, err := app.newModel(ctx, cfg, llmExecutor)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.ModelName = model.Name()

	parser, err := replyparser.New()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init reply parser: %w", err)
	}
	extractor := usecase.NewExtractionService(
		extractionMetrics.Model(model),
		textlayer.New(textlayer.DefaultMaxChars),
		parser,
	)

	store, err := app.newStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	publisher, err := app.newPublisher(cfg, extractionMetrics)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Intake = usecase.NewDocumentIntakeUseCase(store, store, extractor, publisher, usecase.IntakeOptions{
		HonorHints: cfg.ExtractHonorHints,
		ModelName:  app.ModelName,
	})
	app.Configurator = usecase.NewAgentConfigUseCase(store)
	app.Questions = usecase.NewQuestionUseCase(store)

	slog.Info("bootstrap_ready",
		"model", app.ModelName,
		"store", cfg.StoreBackend,
		"events", cfg.EventsNATSURL != "",
		"honor_hints", cfg.ExtractHonorHints,
	)
	return app, nil
}

func (a *App) newModel(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ExtractionModel, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return gemini.New(cfg.GeminiBaseURL, cfg.GoogleAPIKey, cfg.GeminiModel, executor), nil
	case config.ProviderOllama:
		return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, executor), nil
	case config.ProviderVertex:
		client, err := vertex.New(ctx, cfg.VertexProjectID, cfg.VertexRegion, cfg.VertexModel, cfg.VertexCredentialsFile, executor)
		if err != nil {
			return nil, fmt.Errorf("init vertex client: %w", err)
		}
		a.closeFns = append(a.closeFns, func() { _ = client.Close() })
		return client, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

func (a *App) newStore(ctx context.Context, cfg config.Config) (documentStore, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return memory.New(cfg.StoreMaxDocuments), nil
	case config.StoreRedis:
		rdb, err := redis.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		store := redis.New(rdb, time.Duration(cfg.StoreTTLSeconds)*time.Second)
		a.closeFns = append(a.closeFns, func() { _ = store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (a *App) newPublisher(cfg config.Config, m *metrics.ExtractionMetrics) (ports.ExtractionPublisher, error) {
	if cfg.EventsNATSURL == "" {
		return m.Publisher(nats.Noop{}), nil
	}

	natsCfg := resilience.DefaultConfig()
	natsCfg.AttemptTimeout = 5 * time.Second
	natsCfg.RetryMaxAttempts = 3
	natsCfg.RetryInitialBackoff = 200 * time.Millisecond
	natsCfg.RetryMaxBackoff = time.Second

	publisher, err := nats.NewWithOptions(cfg.EventsNATSURL, cfg.EventsNATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(natsCfg),
	})
	if err != nil {
		return nil, fmt.Errorf("init event publisher: %w", err)
	}
	a.closeFns = append(a.closeFns, publisher.Close)
	return m.Publisher(publisher), nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
