package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskpilot/backend/api/handler"
	"github.com/taskpilot/backend/internal/ai"
	"github.com/taskpilot/backend/internal/config"
	"github.com/taskpilot/backend/internal/google"
	"github.com/taskpilot/backend/internal/infrastructure/inbox"
	"github.com/taskpilot/backend/internal/infrastructure/monitor"
	pgInfra "github.com/taskpilot/backend/internal/infrastructure/postgres"
	redisInfra "github.com/taskpilot/backend/internal/infrastructure/redis"
	"github.com/taskpilot/backend/internal/middleware"
	"github.com/taskpilot/backend/internal/retry"
	"github.com/taskpilot/backend/internal/router"
	"github.com/taskpilot/backend/internal/services"
	"github.com/taskpilot/backend/internal/services/lifecycle"
	"github.com/taskpilot/backend/internal/services/scheduler"
	"github.com/taskpilot/backend/internal/telegram"
	"github.com/taskpilot/backend/pkg/httpcontext"
	"github.com/taskpilot/backend/pkg/logger"
	"github.com/taskpilot/backend/repository/postgres"
	redisRepo "github.com/taskpilot/backend/repository/redis"
	chatUC "github.com/taskpilot/backend/usecase/chat"
	meetingUC "github.com/taskpilot/backend/usecase/meeting"
	reconcileUC "github.com/taskpilot/backend/usecase/reconcile"
	summaryUC "github.com/taskpilot/backend/usecase/summary"
	taskUC "github.com/taskpilot/backend/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if cfg.Migrations.Enabled {
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.RegisterCloser("redis", redisClient)

	inboxStore, err := inbox.Open(cfg.Inbox.Path)
	if err != nil {
		zapLogger.Fatal("failed to open inbox store", zap.Error(err))
	}
	manager.RegisterCloser("inbox", inboxStore)

	mon := monitor.New(pool, redisClient, inboxStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	taskRepo := postgres.NewTaskRepository(pool)
	subRepo := postgres.NewSubscriptionRepository(pool)
	dedupCache := redisRepo.NewDedupCache(redisClient, 24*time.Hour)

	mailService, err := google.NewMailService(appCtx, cfg.Mail, zapLogger)
	if err != nil {
		zapLogger.Fatal("gmail setup failed", zap.Error(err))
	}
	calendarService, err := google.NewCalendarService(appCtx, cfg.Calendar, zapLogger)
	if err != nil {
		zapLogger.Fatal("calendar setup failed", zap.Error(err))
	}

	analyzer := ai.NewClient(cfg.Analysis, zapLogger)
	tgClient := telegram.NewClient(cfg.Telegram, zapLogger)
	notifier := telegram.NewNotifier(tgClient, cfg.Telegram.ChatID)

	taskUseCase := taskUC.New(taskRepo, notifier, cfg.Tasks.SoftCap, zapLogger)
	reconciler := reconcileUC.New(analyzer, taskUseCase, taskRepo, zapLogger)
	chatProcessor := chatUC.New(taskUseCase, analyzer, calendarService, tgClient, dedupCache, zapLogger)
	meetingUseCase := meetingUC.New(taskRepo, notifier, zapLogger)
	summaryUseCase := summaryUC.New(taskRepo, notifier, cfg.Location(), zapLogger)

	watchPolicy := retry.NewPolicy(3, 2*time.Second, zapLogger)
	watcher := services.NewWatcher(mailService, subRepo, reconciler, dedupCache, watchPolicy, zapLogger)

	backup := services.NewBackup(taskRepo, subRepo, services.BackupConfig{
		Directory:     cfg.Backup.Directory,
		RetentionDays: cfg.Backup.RetentionDays,
	}, zapLogger)

	processor := services.NewInboxProcessor(
		inboxStore,
		chatProcessor,
		watcher,
		meetingUseCase,
		services.InboxConfig{
			BatchSize:  cfg.Inbox.BatchSize,
			MaxRetries: cfg.Inbox.MaxRetries,
		},
		zapLogger,
	)

	if err := watcher.EnsureAll(appCtx); err != nil {
		zapLogger.Warn("mail watch registration incomplete", zap.Error(err))
	}

	sched := scheduler.New(cfg.Location(), zapLogger)
	jobs := []struct {
		name string
		spec string
		job  scheduler.Job
	}{
		{"inbox_drain", fmt.Sprintf("@every %s", cfg.Inbox.DrainInterval), processor.Drain},
		{"mail_renewal", "@every 2h", watcher.RenewExpiring},
		{"daily_summary", "0 7 * * *", summaryUseCase.Send},
		{"backup", "0 2 * * *", backup.Run},
	}
	for _, j := range jobs {
		if err := sched.Add(j.name, j.spec, j.job); err != nil {
			zapLogger.Fatal("scheduler setup failed", zap.String("job", j.name), zap.Error(err))
		}
	}
	sched.Start()
	manager.Register("scheduler", func(ctx context.Context) error {
		sched.Stop(ctx)
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
		Webhook:  apiHandler.NewWebhookHandler(processor, ctxAdapter, zapLogger),
		Task:     apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Summary:  apiHandler.NewSummaryHandler(summaryUseCase, cfg.Cron.Token, ctxAdapter, zapLogger),
		Backup:   apiHandler.NewBackupHandler(backup, ctxAdapter, zapLogger),
		Calendar: apiHandler.NewCalendarHandler(calendarService, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	telegramSecret := middleware.TelegramSecret(cfg.Telegram.WebhookSecret, zapLogger)
	r := router.New(handlers, authMiddleware, telegramSecret)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
