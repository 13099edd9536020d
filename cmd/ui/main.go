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

	"github.com/kirillkom/bol-extractor/internal/adapters/web"
	"github.com/kirillkom/bol-extractor/internal/config"
	"github.com/kirillkom/bol-extractor/internal/observability/logging"
	"github.com/kirillkom/bol-extractor/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("ui", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One API call may spend the whole model budget on every retry attempt.
	apiTimeout := time.Duration(cfg.LLMTimeoutSeconds*cfg.LLMRetryMaxAttempts)*time.Second + 30*time.Second
	handler, err := web.NewHandler(web.NewAPIClient(cfg.UIAPIBaseURL, apiTimeout), web.NewSessionStore(web.DefaultMaxSessions, web.DefaultSessionIdleTTL))
	if err != nil {
		log.Fatalf("ui init error: %v", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("ui", web.KnownPaths...)
	mux := http.NewServeMux()
	mux.Handle("/metrics", httpMetrics.Handler())
	mux.Handle("/", httpMetrics.Middleware("ui", handler.Routes()))

	server := &http.Server{
		Addr:         ":" + cfg.UIPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: apiTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("ui_listening", "addr", server.Addr, "api_base_url", cfg.UIAPIBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ui server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("ui_shutdown_failed", "error", err)
	}
}
