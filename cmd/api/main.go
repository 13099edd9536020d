package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/bol-extractor/internal/adapters/http"
	"github.com/kirillkom/bol-extractor/internal/bootstrap"
	"github.com/kirillkom/bol-extractor/internal/config"
	"github.com/kirillkom/bol-extractor/internal/observability/logging"
	"github.com/kirillkom/bol-extractor/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := httpadapter.LoadOpenAPI(ctx); err != nil {
		log.Fatalf("openapi error: %v", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api", httpadapter.KnownPaths...)
	app, err := bootstrap.New(ctx, cfg, httpMetrics.Registry())
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.Intake, app.Configurator, app.Questions, httpadapter.Options{
		Service:            "api",
		HonorHints:         cfg.ExtractHonorHints,
		MaxUploadBytes:     cfg.MaxUploadBytes(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:            httpMetrics,
	}).Handler()

	llmTimeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: llmTimeout*time.Duration(cfg.LLMRetryMaxAttempts) + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "model", app.ModelName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
