// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-bulk-ops/internal/config"
	"telegram-bulk-ops/internal/domain/ports/adapter"
	aiAdapters "telegram-bulk-ops/internal/infra/adapters/ai"
	tele "telegram-bulk-ops/internal/infra/adapters/telegram"
	"telegram-bulk-ops/internal/infra/cache"
	pg "telegram-bulk-ops/internal/infra/db/postgres"
	"telegram-bulk-ops/internal/infra/logging"
	"telegram-bulk-ops/internal/infra/metrics"
	"telegram-bulk-ops/internal/infra/ratelimit"
	red "telegram-bulk-ops/internal/infra/redis"
	"telegram-bulk-ops/internal/infra/sched"
	"telegram-bulk-ops/internal/infra/web"
	"telegram-bulk-ops/internal/infra/worker"
	"telegram-bulk-ops/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (simulate outbound bulk calls)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] outbound bulk calls are simulated")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	jobRepo := pg.NewJobRepo(pool)
	contactRepo := pg.NewContactRepo(pool)
	groupRepo := pg.NewGroupRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	cmdLimiter := red.NewRateLimiter(redisClient)

	// ---- Telegram ----
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, contactRepo, groupRepo, txManager, cmdLimiter, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}

	// In dev mode batch work goes through the simulated bot; the real bot
	// still polls so the command surface stays usable.
	var batchBot adapter.ChatBotAdapter = botAdapter
	if cfg.Runtime.Dev {
		batchBot = tele.NewNoopBotAdapter()
	}

	// ---- Engine core ----
	limiter := ratelimit.New(cfg.Limits.Actions)
	classifier := usecase.NewErrorClassifier()
	executor := usecase.NewRetryExecutor(limiter, classifier, cfg.Retry, logger)
	targets := usecase.NewTargetProvider(contactRepo, groupRepo, logger)
	notifier := tele.NewProgressNotifier(botAdapter, cfg.Bot.NotifyChat, logger)

	runner := usecase.NewBatchRunner(
		jobRepo, contactRepo, groupRepo,
		targets, executor, batchBot, notifier,
		locker, cfg.Redis.LockTTL,
		cfg.Batch, logger,
	)

	jobPool := worker.NewPool(cfg.Bot.Workers, logger)
	jobPool.Start(ctx)
	defer jobPool.Stop()

	control := usecase.NewJobControl(jobRepo, runner, jobPool, logger)

	// ---- Content generation (OpenAI -> Gemini failover) ----
	var providers []adapter.ContentGenerator
	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBase, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		providers = append(providers, oa)
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("content provider: OpenAI")
	}
	if cfg.AI.GeminiKey != "" {
		gm, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, "")
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		providers = append(providers, gm)
		logger.Info().Msg("content provider: Gemini")
	}
	var gen adapter.ContentGenerator
	if len(providers) > 0 {
		gen = aiAdapters.NewFailoverGenerator(logger, providers...)
	} else {
		logger.Warn().Msg("no content provider configured; using placeholder generator")
		gen = aiAdapters.NewNoopGenerator()
	}

	contentCache := cache.New(cfg.Cache, logger)
	contentUC := usecase.NewContentUseCase(gen, contentCache, logger)

	botAdapter.BindControl(control, contentUC)

	// ---- Recover jobs a previous process left unfinished ----
	if n, err := control.ResumeActive(ctx); err != nil {
		logger.Error().Err(err).Msg("could not resume unfinished jobs")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("re-queued unfinished jobs")
	}

	// ---- Background workers ----
	sweeper := sched.NewSweepWorker(cfg.Cache.SweepInterval, contentCache, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// re-check at lock TTL: by then a dead runner's lock has expired
	resumer := sched.NewResumeWorker(cfg.Redis.LockTTL, control, logger)
	go func() { _ = resumer.Run(ctx) }()

	scheduler := sched.NewCampaignScheduler(control, contentUC, logger)
	scheduler.Register(cfg.Campaigns)
	scheduler.Start()
	defer scheduler.Stop()

	// ---- Admin HTTP API ----
	adminSrv := web.NewServer(control, cfg.Admin.APIKey, cfg.Admin.JWTSecret, !cfg.Runtime.Dev, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           adminSrv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("admin API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin API server error")
		}
	}()

	// ---- Telegram polling ----
	go func() {
		if err := botAdapter.StartPolling(ctx); err != nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	botAdapter.StopPolling()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	cancel()
}
