package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/arodionov/study-assistant/internal/adapters/http"
	"github.com/arodionov/study-assistant/internal/bootstrap"
	"github.com/arodionov/study-assistant/internal/config"
	"github.com/arodionov/study-assistant/internal/observability/logging"
	"github.com/arodionov/study-assistant/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics(serviceName)
	router := httpadapter.NewRouter(
		serviceName,
		app.IngestUC,
		app.Repo,
		app.SearchUC,
		app.EvidenceUC,
		app.SearchUC,
		serverMetrics,
		httpadapter.Defaults{
			MaxResults:    cfg.SearchMaxResults,
			ThresholdBase: cfg.ThresholdBase,
			ThresholdHigh: cfg.ThresholdHigh,
			WebFallback:   cfg.WebFallbackEnabled,
			WebSupplement: cfg.WebSupplementFollow,
		},
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err.Error())
	}
}
