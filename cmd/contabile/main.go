package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucafranzi/contabile/internal/config"
	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/handler"
	"github.com/lucafranzi/contabile/internal/infra/cache"
	"github.com/lucafranzi/contabile/internal/infra/observability"
	"github.com/lucafranzi/contabile/internal/infra/queue"
	"github.com/lucafranzi/contabile/internal/infra/resilience"
	"github.com/lucafranzi/contabile/internal/infra/sqlite"
	"github.com/lucafranzi/contabile/internal/infra/telegram"
	"github.com/lucafranzi/contabile/internal/infra/templatestore"
	"github.com/lucafranzi/contabile/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_path", cfg.DBPath),
		zap.String("templates_dir", cfg.TemplatesDir),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("reminder_interval", cfg.ReminderInterval),
		zap.Int("reminder_window_days", cfg.ReminderWindowDays),
		zap.Bool("amqp_enabled", cfg.AMQPUrl != ""),
		zap.Bool("auth_enabled", cfg.JWTSecret != ""),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "contabile")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Storage ---
	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	files, err := templatestore.New(cfg.TemplatesDir)
	if err != nil {
		logger.Fatal("failed to open template store", zap.Error(err))
	}

	// --- Cache ---
	statsCache := cache.New[*domain.DashboardStats](cfg.CacheTTL)

	// --- Resilience & external clients ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("telegram")
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	notifier := telegram.NewClient(httpClient, cfg.TelegramAPIURL, cb, resilienceCfg, logger)

	// --- Services ---
	registrySvc := service.NewRegistryService(store, metrics, logger)
	billingSvc := service.NewBillingService(store, store, files, statsCache, metrics, logger)
	ledgerSvc := service.NewLedgerService(store, metrics, logger)
	dashboardSvc := service.NewDashboardService(store, statsCache, metrics, logger)
	templateSvc := service.NewTemplateService(store, files, logger)
	agendaSvc := service.NewAgendaService(store, logger)
	notifySvc := service.NewNotifyService(store, dashboardSvc, notifier, metrics, logger)
	authSvc := service.NewAuthService(store, cfg.JWTSecret, cfg.JWTAccessTTL, logger)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Reminder dispatch ---
	// With AMQP configured, reminders go through the broker and a consumer
	// goroutine delivers them. Otherwise dispatch calls Deliver directly.
	if cfg.AMQPUrl != "" {
		amqpClient, err := queue.NewClient(cfg.AMQPUrl, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Fatal("failed to connect to AMQP broker", zap.Error(err))
		}
		defer amqpClient.Close()
		notifySvc.SetDispatcher(amqpClient)

		go func() {
			if err := amqpClient.Consume(rootCtx, notifySvc.Deliver); err != nil {
				logger.Error("reminder consumer stopped", zap.Error(err))
			}
		}()
		logger.Info("reminder dispatch via AMQP",
			zap.String("exchange", cfg.AMQPExchange),
			zap.String("queue", cfg.AMQPQueue),
		)
	} else {
		notifySvc.SetDispatcher(queue.NewInline(notifySvc.Deliver))
		logger.Info("reminder dispatch inline (no AMQP broker configured)")
	}

	go notifySvc.RunReminderLoop(rootCtx, cfg.ReminderInterval, cfg.ReminderWindowDays)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Registry:  registrySvc,
		Billing:   billingSvc,
		Ledger:    ledgerSvc,
		Dashboard: dashboardSvc,
		Templates: templateSvc,
		Agenda:    agendaSvc,
		Notify:    notifySvc,
		Auth:      authSvc,
		DB:        store,
		Metrics:   metrics,
		Logger:    logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
