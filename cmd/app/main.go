// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"interview-intel/internal/config"
	"interview-intel/internal/domain/ports/adapter"
	aiAdapters "interview-intel/internal/infra/adapters/ai"
	"interview-intel/internal/infra/api"
	"interview-intel/internal/infra/api/apiv1"
	pg "interview-intel/internal/infra/db/postgres"
	"interview-intel/internal/infra/logging"
	"interview-intel/internal/infra/metrics"
	"interview-intel/internal/infra/queue"
	red "interview-intel/internal/infra/redis"
	"interview-intel/internal/infra/sched"
	"interview-intel/internal/infra/scheduler"
	"interview-intel/internal/infra/worker"
	"interview-intel/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, open API)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	postRepo := pg.NewPostRepoCacheDecorator(pg.NewPostRepo(pool, txm), redisClient)
	intelRepo := pg.NewIntelligenceRepo(pool)

	// ---- AI providers ----
	chat, embedder, err := buildAI(ctx, cfg.AI, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("ai provider")
	}

	// ---- Queue + worker ----
	jobQueue := queue.New(red.NewJobBroker(redisClient, cfg.Queue.Prefix), queue.Options{
		MaxAttempts:      cfg.Queue.MaxAttempts,
		BackoffBase:      cfg.Queue.BackoffBase,
		KeepCompleted:    cfg.Queue.KeepCompleted,
		CompletedMaxAge:  cfg.Queue.CompletedMaxAge,
		KeepFailed:       cfg.Queue.KeepFailed,
		DefaultBatchSize: cfg.Queue.DefaultBatchSize,
	}, logger)

	processor := worker.NewEmbeddingProcessor(jobQueue, postRepo, txm, embedder, worker.ProcessorConfig{
		Concurrency:     cfg.Worker.Concurrency,
		RateLimitMax:    cfg.Worker.RateLimitMax,
		RateLimitWindow: cfg.Worker.RateLimitWindow,
		PollInterval:    cfg.Worker.PollInterval,
		MaxPostRetries:  cfg.Worker.MaxPostRetries,
	}, logger)
	processor.Start(ctx)

	// ---- Use cases ----
	retrievalUC := usecase.NewRetrievalUseCase(postRepo, embedder, logger)
	ragUC := usecase.NewRAGUseCase(retrievalUC, embedder, chat, cfg.AI.ChatModel, cfg.Analysis, logger)
	comparativeUC := usecase.NewComparativeUseCase(postRepo, cfg.Analysis, logger)
	intelUC := usecase.NewIntelligenceUseCase(intelRepo, cfg.Analysis, logger)
	embeddingUC := usecase.NewEmbeddingUseCase(jobQueue, postRepo, logger)

	// ---- Background jobs ----
	cronSched := scheduler.New(jobQueue, red.NewLocker(redisClient), cfg.Scheduler.EnqueueSpec, cfg.Scheduler.BatchSize, cfg.Scheduler.LockTTL, logger)
	if err := cronSched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scheduler")
	}
	reclaimer := sched.NewStaleReclaimer(cfg.Worker.StaleAfter/3, cfg.Worker.StaleAfter, postRepo, logger)
	go func() { _ = reclaimer.Run(ctx) }()
	janitor := sched.NewQueueJanitor(cfg.Queue.JanitorInterval, cfg.Queue.StalledAfter, jobQueue, logger)
	go func() { _ = janitor.Run(ctx) }()

	// ---- HTTP ----
	auth := apiv1.NewAuthenticator(cfg.API.JWTSecret)
	if !auth.Enabled() && !cfg.Runtime.Dev {
		logger.Warn().Msg("api.jwt_secret is empty; /api/v1 is unauthenticated")
	}
	limiter := red.NewRateLimiter(redisClient)
	guards := apiv1.Guards{
		Auth:      auth.Middleware,
		RateLimit: api.RateLimit(limiter, cfg.API.RateLimit, time.Minute, apiv1.ClientKey, "analysis", logger),
	}

	r := chi.NewRouter()
	r.Use(api.TraceID(), api.Recover(logger), api.RequestLog(logger), api.Timeout(cfg.API.RequestTimeout))
	r.Get("/healthz", healthz(pool.Ping, redisClient.Ping))
	r.Handle("/metrics", promhttp.Handler())
	srv := apiv1.NewServer(retrievalUC, ragUC, comparativeUC, intelUC, embeddingUC, logger)
	apiv1.RegisterAPIV1(r, srv, guards)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	_ = server.Shutdown(shutdownCtx)
	cronSched.Stop()
	processor.Stop()
	cancel()
}

// buildAI constructs every provider that has credentials. Chat is routed by
// model name across them; embeddings always come from cfg.Provider so that
// stored vectors share one space.
func buildAI(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.AIServiceAdapter, adapter.Embedder, error) {
	byProvider := map[string]adapter.AIServiceAdapter{}
	embedders := map[string]adapter.Embedder{}

	if cfg.GeminiKey != "" {
		g, err := aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.ChatModel, cfg.EmbeddingModel, cfg.EmbeddingDims)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider["gemini"], embedders["gemini"] = g, g
	}
	if cfg.OpenAIKey != "" {
		o, err := aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.ChatModel, cfg.EmbeddingModel, cfg.EmbeddingDims)
		if err != nil {
			return nil, nil, fmt.Errorf("openai adapter: %w", err)
		}
		byProvider["openai"], embedders["openai"] = o, o
	}
	noop := aiAdapters.NewNoopAIAdapter(cfg.EmbeddingDims)
	byProvider["noop"], embedders["noop"] = noop, noop

	provider := strings.ToLower(cfg.Provider)
	embedder, ok := embedders[provider]
	if !ok {
		return nil, nil, fmt.Errorf("ai.provider=%s has no credentials configured", cfg.Provider)
	}
	logger.Info().
		Str("provider", provider).
		Str("chat_model", cfg.ChatModel).
		Str("embedding_model", embedder.Model()).
		Int("dims", embedder.Dimensions()).
		Msg("AI adapter configured")

	chat := aiAdapters.NewLimitedAI(aiAdapters.NewMultiAIAdapter(provider, byProvider, nil), cfg.ConcurrentLimit)
	return chat, aiAdapters.NewThrottledEmbedder(embedder, cfg.EmbedRPS), nil
}

func healthz(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				http.Error(w, "unhealthy: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
