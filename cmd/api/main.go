package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"visual-spec-compiler/internal/agent"
	"visual-spec-compiler/internal/config"
	"visual-spec-compiler/internal/handler"
	"visual-spec-compiler/internal/history"
	"visual-spec-compiler/internal/imagegen"
	"visual-spec-compiler/internal/service"
	"visual-spec-compiler/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// ── History store (postgres, sqlite or mongodb by DATABASE_URL scheme) ───
	store, err := history.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "failed to open history store", err)
	}
	defer store.Close()
	logger.Info("history store ready", "backend", storeKind(store))

	// ── Image generation (stub until a real FIBO key is configured) ───────────
	var generator imagegen.Generator
	if cfg.UseImageStub() {
		generator = imagegen.NewStub(logger)
		logger.Warn("FIBO_API_KEY not configured, using stub image generator")
	} else {
		generator, err = imagegen.NewClient(cfg.FIBOBaseURL, cfg.FIBOAPIKey, cfg.FIBOTimeout, logger)
		if err != nil {
			fatal(logger, "failed to create image client", err)
		}
		logger.Info("using FIBO image provider", "base_url", cfg.FIBOBaseURL)
	}

	// ── Patch agent ───────────────────────────────────────────────────────────
	proposer, err := newProposer(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "failed to create patch agent", err)
	}

	// ── Storage (optional mirror of provider images) ──────────────────────────
	// Stub URLs point nowhere, so there is nothing to mirror in stub mode.
	var mirror service.ImageMirror
	fileStorage, err := newStorage(ctx, cfg)
	if err != nil {
		fatal(logger, "failed to configure storage", err)
	}
	if fileStorage != nil && !cfg.UseImageStub() {
		mirror = storage.NewMirror(fileStorage)
		logger.Info("mirroring generated images", "storage", cfg.StorageType)
	}

	// ── Services & Handlers ───────────────────────────────────────────────────
	generationService := service.NewGenerationService(generator, store, mirror, logger)
	specHandler := &handler.SpecHandler{
		Service: generationService,
		Agent:   proposer,
		Logger:  logger,
	}

	// ── Router ────────────────────────────────────────────────────────────────
	r := mux.NewRouter()

	// Health check for load balancers and liveness probes
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	specHandler.Routes(r.PathPrefix("/api/v1").Subrouter())

	if cfg.StorageType == config.StorageLocal {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))),
		)
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	var h http.Handler = cors(r)
	h = handlers.CombinedLoggingHandler(os.Stdout, h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)))(h)

	// ── HTTP Server with timeouts ──────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	// ── Graceful Shutdown ──────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("visual spec compiler running", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server error", err)
		}
	}()

	<-quit
	logger.Info("shutdown signal received, draining requests")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
		return
	}
	logger.Info("server stopped cleanly")
}

// writeTimeout covers the slowest handler: a generation call followed by the
// image mirror, or a patch proposal. Persistence gets the fixed margin.
func writeTimeout(cfg *config.Config) time.Duration {
	return max(cfg.FIBOTimeout+storage.MirrorTimeout, cfg.LLMTimeout) + 15*time.Second
}

func newProposer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (agent.Proposer, error) {
	if cfg.UseAgentStub() {
		logger.Warn("LLM_API_KEY not configured, using stub patch agent")
		return agent.NewStub(logger), nil
	}

	var (
		llm agent.LLMClient
		err error
	)
	switch cfg.LLMProvider {
	case config.LLMProviderOpenAI:
		llm, err = agent.NewOpenAILLM(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL)
	default:
		llm, err = agent.NewGeminiLLM(ctx, cfg.LLMAPIKey, cfg.LLMModel)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("using LLM patch agent", "provider", cfg.LLMProvider, "model", cfg.LLMModel)
	return agent.NewAgent(llm, cfg.LLMTimeout, logger)
}

// newStorage returns nil when STORAGE_TYPE=none.
func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case config.StorageS3:
		return storage.NewS3Storage(ctx, cfg.AWSBucket, cfg.AWSRegion, cfg.AWSPublicBaseURL)
	case config.StorageLocal:
		return storage.NewLocalStorage(cfg.UploadDir, cfg.BaseURL)
	default:
		return nil, nil
	}
}

func storeKind(s history.Store) string {
	switch s.(type) {
	case *history.MongoStore:
		return "mongodb"
	case *history.SQLStore:
		return "sql"
	default:
		return "unknown"
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
