package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/api/gemini"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/config"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/output"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/runtime"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/schema"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/server"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/storage"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/storage/memory"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/storage/sqlite"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/telemetry"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/tenant"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/trace"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/transform"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("nexus-pipeline", cfg.Telemetry.Enabled, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	// Generation backend: without a key the engine reports unavailable and
	// pipeline runs fail at the transform step.
	var generator transform.Generator
	if cfg.Gemini.APIKey != "" {
		opts := []gemini.ClientOption{gemini.WithModel(cfg.Gemini.Model)}
		if cfg.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
		}
		generator = gemini.NewClient(cfg.Gemini.APIKey, opts...)
	} else {
		logger.Warn("no Gemini API key configured, generation disabled")
	}
	engine := transform.NewEngine(generator, logger, transform.WithMaxPromptTokens(cfg.Pipeline.MaxPromptTokens))

	deliveryTimeout, err := time.ParseDuration(cfg.Delivery.Timeout)
	if err != nil {
		log.Fatalf("Invalid delivery timeout %q: %v", cfg.Delivery.Timeout, err)
	}
	dispatch := output.NewRouter(output.NewHTTPDeliverer(deliveryTimeout), logger)

	archive, err := newArchive(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open trace archive: %v", err)
	}
	defer archive.Close()

	store := tenant.NewStore(schema.NewDefaults(), tenant.WithHistoryCap(cfg.Delivery.HistoryCap))
	runner := runtime.NewRunner(engine, dispatch, trace.NewRecorder(), archive, logger)

	srv := server.New(cfg.Server.Port, logger)
	server.NewAPI(store, runner, engine, dispatch, archive).Mount(srv.Router)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", srv.Port),
		Handler: srv.Router,
	}

	go func() {
		logger.Info("starting server", slog.Int("port", srv.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

func newArchive(cfg *config.Config, logger *slog.Logger) (storage.TraceArchive, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		path := cfg.Storage.SQLite.Path
		if path == "" {
			path = "./data/nexus.db"
		}
		logger.Info("using sqlite trace archive", slog.String("path", path))
		return sqlite.New(path)
	case "", "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}
