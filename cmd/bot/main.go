package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/homebox-bot/internal/bot"
	"github.com/Proton-105/homebox-bot/internal/database"
	"github.com/Proton-105/homebox-bot/internal/domain"
	"github.com/Proton-105/homebox-bot/internal/health"
	"github.com/Proton-105/homebox-bot/internal/homebox"
	"github.com/Proton-105/homebox-bot/internal/i18n"
	"github.com/Proton-105/homebox-bot/internal/idempotency"
	"github.com/Proton-105/homebox-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/homebox-bot/internal/jobs/handlers"
	"github.com/Proton-105/homebox-bot/internal/lifecycle"
	"github.com/Proton-105/homebox-bot/internal/middleware"
	"github.com/Proton-105/homebox-bot/internal/ratelimit"
	"github.com/Proton-105/homebox-bot/internal/settings"
	"github.com/Proton-105/homebox-bot/internal/staging"
	"github.com/Proton-105/homebox-bot/internal/state"
	"github.com/Proton-105/homebox-bot/internal/usercache"
	"github.com/Proton-105/homebox-bot/internal/vision"
	"github.com/Proton-105/homebox-bot/internal/workflow"
	"github.com/Proton-105/homebox-bot/pkg/config"
	"github.com/Proton-105/homebox-bot/pkg/graceful"
	"github.com/Proton-105/homebox-bot/pkg/logger"
	"github.com/Proton-105/homebox-bot/pkg/metrics"
	redisclient "github.com/Proton-105/homebox-bot/pkg/redis"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "homebox-bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	appLog := logger.New(*cfg)
	defer appLog.Close()
	log := appLog.Logger
	slog.SetDefault(log)

	flushSentry, err := logger.InitSentry(*cfg)
	if err != nil {
		log.Warn("sentry disabled", slog.Any("error", err))
	}
	defer flushSentry()

	config.Watch(v, cfg.AppEnv, log, func(next *config.Config) {
		appLog.SetLevel(next.Logger.Level)
	})

	log.Info("starting homebox bot",
		slog.String("mode", cfg.Bot.Mode),
		slog.String("storage", cfg.Storage.Driver),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.String("model", cfg.AI.DefaultModel),
	)

	shutdown := lifecycle.NewShutdown(log)

	db, err := database.Open(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	shutdown.Register(lifecycle.StageClose, "database", func(context.Context) error { return db.Close() })

	if err := database.Migrate(db, log); err != nil {
		_ = db.Close()
		return err
	}

	var rdb *redisclient.Client
	if cfg.Redis.Enabled {
		rdb, err = redisclient.New(ctx, cfg.Redis.Config)
		if err != nil {
			_ = db.Close()
			return err
		}
		shutdown.Register(lifecycle.StageClose, "redis", func(context.Context) error { return rdb.Close() })
	}

	translations, err := i18n.Load(cfg.I18n.Dir, cfg.I18n.DefaultLanguage)
	if err != nil {
		_ = db.Close()
		return err
	}

	var cache *usercache.Cache
	if rdb != nil {
		cache = usercache.NewCache(rdb.Client, 0)
	}
	store := settings.NewStore(db, cache, settings.Defaults{
		Language:    cfg.I18n.DefaultLanguage,
		GenLanguage: domain.DefaultGenLanguage,
		Model:       cfg.AI.DefaultModel,
		FilterMode:  domain.FilterMode(cfg.HomeBox.DefaultFilterMode),
		Models:      cfg.AI.AvailableModels,
	}, log)
	shutdown.Register(lifecycle.StageFlush, "settings", store.Close)

	stager, err := staging.New(cfg.Storage.PhotoDir, cfg.Storage.MaxPhotoBytes, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	if removed, err := stager.SweepOlderThan(cfg.Storage.StagedTTL); err != nil {
		log.Warn("startup photo sweep failed", slog.Any("error", err))
	} else if removed > 0 {
		log.Info("orphaned staged photos removed", slog.Int("count", removed))
	}

	inventory := homebox.New(cfg.HomeBox, log)
	visionClient := vision.New(cfg.AI, log)

	tb, err := bot.NewTelebot(cfg.Bot, log)
	if err != nil {
		_ = db.Close()
		return err
	}

	presenter := bot.NewPresenter(tb, inventory, store, translations, log)
	engine := workflow.New(workflow.Deps{
		Store:          store,
		Inventory:      inventory,
		Vision:         visionClient,
		Stager:         stager,
		Notify:         presenter.Notify,
		Logger:         log,
		GatewayTimeout: gatewayTimeout(cfg),
	})
	shutdown.Register(lifecycle.StageIntake, "workflow", engine.Shutdown)

	memoryLimiter := ratelimit.NewMemoryLimiter(log)
	var limiter ratelimit.Limiter = memoryLimiter
	var idem idempotency.Manager
	if rdb != nil {
		limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), memoryLimiter, log)
		idem = idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), 0, log)
	}
	rules, err := ratelimit.NewRules(cfg.RateLimit)
	if err != nil {
		_ = db.Close()
		return err
	}

	b := bot.New(tb, *cfg, log, bot.Deps{
		Engine:      engine,
		Presenter:   presenter,
		Store:       store,
		I18n:        translations,
		Idempotency: idem,
		RateLimit:   middleware.NewRateLimitMiddleware(limiter, rules, log),
	})

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))
	checker.AddCheck("homebox", health.NewHomeBoxChecker(inventory))
	if rdb != nil {
		checker.AddCheck("redis", health.NewRedisChecker(rdb))
	}
	probes := lifecycle.NewProbes(checker, log)
	ops := graceful.NewServer(cfg.Server.Port, lifecycle.NewOpsRouter(probes, log), cfg.Server.ShutdownTimeout, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ops.ListenAndServe(gctx) })
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error {
		store.RunFlusher(gctx, cfg.Session.FlushInterval)
		return nil
	})
	g.Go(func() error {
		metrics.NewStateCollector(engine).Run(gctx)
		return nil
	})
	g.Go(func() error {
		ratelimit.NewCleaner(memoryLimiter, time.Hour, 10*time.Minute, log).Run(gctx)
		return nil
	})

	if rdb != nil {
		if err := startHousekeepingJobs(rdb, cfg, stager, engine, shutdown, log); err != nil {
			log.Error("failed to start housekeeping jobs", slog.Any("error", err))
		}
	} else {
		g.Go(func() error {
			jobs.Every(gctx, cfg.Session.SweepInterval, jobs.TaskTypePhotoSweep, func(context.Context) error {
				_, err := stager.SweepOlderThan(cfg.Storage.StagedTTL)
				return err
			}, log)
			return nil
		})
		g.Go(func() error {
			state.NewCleaner(engine, log, cfg.Session.IdleTTL, cfg.Session.SweepInterval).Run(gctx)
			return nil
		})
	}

	log.Info("homebox bot started")

	runErr := g.Wait()
	if runErr != nil {
		log.Error("bot stopped with error", slog.Any("error", runErr))
	}

	probes.MarkStopping()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("homebox bot stopped")
	return runErr
}

// startHousekeepingJobs runs the staged photo sweep and session expiry through asynq.
// Worker and scheduler stop on the process signal or through the shutdown hooks.
func startHousekeepingJobs(rdb *redisclient.Client, cfg *config.Config, stager *staging.Stager, engine *workflow.Engine, shutdown *lifecycle.Shutdown, log *slog.Logger) error {
	opt := rdb.AsynqOpt()

	worker := jobs.NewWorker(opt, log)
	worker.RegisterHandler(jobs.TaskTypePhotoSweep, jobhandlers.NewPhotoSweepHandler(stager, log))
	worker.RegisterHandler(jobs.TaskTypeSessionExpire, jobhandlers.NewSessionExpireHandler(engine, log))

	scheduler := jobs.NewScheduler(opt, log)
	if err := scheduler.RegisterTasks(jobs.Schedule{
		PhotoSweepEvery: cfg.Session.SweepInterval,
		StagedTTL:       cfg.Storage.StagedTTL,
		SessionEvery:    cfg.Session.SweepInterval,
		IdleTTL:         cfg.Session.IdleTTL,
	}); err != nil {
		return err
	}

	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker stopped", slog.Any("error", err))
		}
	}()
	go func() {
		if err := scheduler.Run(); err != nil {
			log.Error("jobs scheduler stopped", slog.Any("error", err))
		}
	}()

	shutdown.Register(lifecycle.StageIntake, "jobs", func(context.Context) error {
		scheduler.Shutdown()
		worker.Shutdown()
		return nil
	})
	return nil
}

func gatewayTimeout(cfg *config.Config) time.Duration {
	if cfg.AI.Timeout > cfg.HomeBox.Timeout {
		return cfg.AI.Timeout
	}
	return cfg.HomeBox.Timeout
}
