package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/api"
	"github.com/lexiqai/lecture-notes/internal/audio"
	"github.com/lexiqai/lecture-notes/internal/config"
	"github.com/lexiqai/lecture-notes/internal/events"
	"github.com/lexiqai/lecture-notes/internal/factcheck"
	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/llm"
	"github.com/lexiqai/lecture-notes/internal/notes"
	"github.com/lexiqai/lecture-notes/internal/observability"
	"github.com/lexiqai/lecture-notes/internal/pipeline"
	"github.com/lexiqai/lecture-notes/internal/resilience"
	"github.com/lexiqai/lecture-notes/internal/transcription"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Bool("transcription_configured", cfg.TranscriptionConfigured()).
		Msg("Lecture notes service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
		Stdout:       cfg.TraceStdout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			// Events are best-effort; the pipeline runs without them
			logger.Warn().Err(err).Msg("NATS unavailable, lifecycle events disabled")
		} else {
			publisher = nc
		}
	}
	defer publisher.Close()

	chains, err := config.LoadModelChains(cfg.ModelChainsFile, cfg.NotesModelOverride)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load model chains")
	}
	primary, secondary := llmProviders(cfg)
	notesChain := buildChain(logger, "notes", primary, secondary, chains.Notes, cfg.ModelFallbackBackoff, 0.3)
	checkChain := buildChain(logger, "fact_check", primary, secondary, chains.FactCheck, cfg.ModelFallbackBackoff, 0.1)
	translateChain := buildChain(logger, "translation", primary, secondary, chains.Translation, cfg.ModelFallbackBackoff, 0.1)

	breaker := resilience.NewCircuitBreaker("transcription", cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetTimeout)
	provider := transcription.NewClient(transcription.ClientConfig{
		APIKey:  cfg.TranscriptionAPIKey,
		BaseURL: cfg.TranscriptionBaseURL,
		Breaker: breaker,
		Logger:  logger,
	})

	svc := pipeline.NewService(pipeline.Config{
		TargetLanguage:  cfg.TranscriptionTargetLanguage,
		LanguageHints:   cfg.TranscriptionLanguageHints,
		PollInterval:    cfg.PollInterval,
		PollMaxDuration: cfg.PollMaxDuration,
	}, pipeline.Deps{
		Store:       store,
		Preflight:   audio.NewPreflight(nil, cfg.PreflightTimeout, logger),
		Provider:    provider,
		Synthesizer: notes.NewSynthesizer(notesChain, logger),
		Checker:     factcheck.NewChecker(checkChain, logger),
		Translator:  translateChain,
		Events:      publisher,
		Logger:      logger,
	})

	// Create HTTP server
	mux := http.NewServeMux()
	api.NewHandler(svc, logger).Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	checks := map[string]observability.HealthCheckFunc{
		"store": func(ctx context.Context) (bool, error) {
			if err := store.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
		"transcription": func(ctx context.Context) (bool, error) {
			if !provider.Configured() {
				return false, transcription.ErrProviderNotConfigured
			}
			if breaker.GetState() == resilience.StateOpen {
				return false, resilience.ErrCircuitOpen
			}
			return true, nil
		},
		"notes_model": func(ctx context.Context) (bool, error) {
			if notesChain == nil {
				return false, llm.ErrNoProviderConfigured
			}
			return true, nil
		},
	}
	if cfg.NATSURL != "" {
		checks["events"] = func(ctx context.Context) (bool, error) {
			return publisher.Healthy(), nil
		}
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	scheduler := cron.New()
	if cfg.ReconcileSchedule != "" {
		reconciler := pipeline.NewReconciler(svc, logger)
		if _, err := reconciler.Register(ctx, scheduler, cfg.ReconcileSchedule); err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("Invalid reconcile schedule")
		}
		logger.Info().Str("schedule", cfg.ReconcileSchedule).Msg("Lecture reconciler scheduled")
	}

	var grpcHealth *observability.GRPCHealthServer
	if cfg.GRPCHealthPort != "" {
		grpcHealth = observability.NewGRPCHealthServer(checks)
		grpcHealth.Refresh(ctx)
		if _, err := scheduler.AddFunc("@every 15s", func() { grpcHealth.Refresh(ctx) }); err != nil {
			logger.Fatal().Err(err).Msg("Failed to schedule gRPC health refresh")
		}
		go func() {
			logger.Info().Str("port", cfg.GRPCHealthPort).Msg("gRPC health server listening")
			if err := grpcHealth.Serve(cfg.GRPCHealthPort); err != nil {
				logger.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
	}
	scheduler.Start()

	// No WriteTimeout: status streams and note synthesis outlive any fixed write deadline
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	<-scheduler.Stop().Done()
	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush traces")
	}

	logger.Info().Msg("Server exited gracefully")
}

// openStore uses SQLite when a database path is set and memory otherwise
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (lecture.Store, func()) {
	if cfg.DatabasePath == "" {
		logger.Warn().Msg("No DATABASE_PATH set, lectures are kept in memory")
		return lecture.NewMemoryStore(), func() {}
	}
	store, err := lecture.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open lecture store")
	}
	logger.Info().Str("path", cfg.DatabasePath).Msg("Lecture store opened")
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close lecture store")
		}
	}
}

// llmProviders returns the configured chat providers; unconfigured ones are nil
func llmProviders(cfg *config.Config) (primary, secondary llm.Provider) {
	if cfg.PrimaryLLMAPIKey != "" {
		primary = llm.NewOpenAIProvider("primary", cfg.PrimaryLLMBaseURL, cfg.PrimaryLLMAPIKey)
	}
	if cfg.SecondaryLLMAPIKey != "" {
		secondary = llm.NewOpenAIProvider("secondary", cfg.SecondaryLLMBaseURL, cfg.SecondaryLLMAPIKey)
	}
	return primary, secondary
}

// buildChain binds a stage to the first configured provider. A nil chain
// leaves the stage unconfigured; callers treat that as a recoverable failure.
func buildChain(logger zerolog.Logger, name string, first, second llm.Provider, models config.ChainConfig, backoff time.Duration, temperature float64) *llm.Chain {
	chain, err := llm.NewChain(name, []llm.Tier{
		{Provider: first, Models: models.Primary},
		{Provider: second, Models: models.Secondary},
	}, llm.ChainOptions{
		Backoff:     backoff,
		Temperature: temperature,
		Logger:      logger,
	})
	if err != nil {
		logger.Warn().Str("chain", name).Msg("No language model provider configured for stage")
		return nil
	}
	return chain
}
