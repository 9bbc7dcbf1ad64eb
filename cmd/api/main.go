package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthcontroller "github.com/wawire/rentpulse-backend/api/controllers/health"
	remindercontrollers "github.com/wawire/rentpulse-backend/api/controllers/reminders"
	webhookcontrollers "github.com/wawire/rentpulse-backend/api/controllers/webhooks"
	"github.com/wawire/rentpulse-backend/api/routes"
	"github.com/wawire/rentpulse-backend/internal/payments"
	"github.com/wawire/rentpulse-backend/internal/reminders"
	"github.com/wawire/rentpulse-backend/internal/tenants"
	"github.com/wawire/rentpulse-backend/internal/transactions"
	"github.com/wawire/rentpulse-backend/pkg/config"
	"github.com/wawire/rentpulse-backend/pkg/db"
	"github.com/wawire/rentpulse-backend/pkg/enums"
	"github.com/wawire/rentpulse-backend/pkg/logger"
	"github.com/wawire/rentpulse-backend/pkg/metrics"
	"github.com/wawire/rentpulse-backend/pkg/migrate"
	"github.com/wawire/rentpulse-backend/pkg/mpesa"
	"github.com/wawire/rentpulse-backend/pkg/redis"
	"github.com/wawire/rentpulse-backend/pkg/sms"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if cfg.App.IsProd() && !cfg.Webhook.HasAllowlist() {
		logg.Warn(context.Background(), "webhook IP allowlist is empty in prod, every source is accepted")
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	mpesaClient, err := mpesa.NewClient(context.Background(), cfg.Mpesa, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mpesa client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	smsClient, err := sms.NewClient(context.Background(), cfg.SMS, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sms client", err)
		os.Exit(1)
	}

	tenantRepo := tenants.NewRepository(dbClient.DB())
	transactionRepo := transactions.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())
	reminderRepo := reminders.NewRepository(dbClient.DB())
	settingsRepo := reminders.NewSettingsRepository(dbClient.DB())
	preferenceRepo := reminders.NewPreferenceRepository(dbClient.DB())

	materializer, err := payments.NewMaterializer(payments.MaterializerParams{
		Repo:         paymentRepo,
		Tenancies:    tenantRepo,
		Transactions: transactionRepo,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment materializer", err)
		os.Exit(1)
	}

	transactionService, err := transactions.NewService(transactions.ServiceParams{
		Repo:         transactionRepo,
		Tenants:      tenantRepo,
		Materializer: materializer,
		Gateway:      mpesaClient,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction service", err)
		os.Exit(1)
	}

	webhookController, err := webhookcontrollers.NewController(webhookcontrollers.ControllerParams{
		Ingestor:     transactionService,
		Idempotency:  redisClient,
		DedupeWindow: cfg.Webhook.IdempotencyTTL,
		Logger:       logg,
		Metrics:      webhookMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook controller", err)
		os.Exit(1)
	}

	scheduler, err := reminders.NewScheduler(reminders.SchedulerParams{
		Repo:        reminderRepo,
		Settings:    settingsRepo,
		Preferences: preferenceRepo,
		Tenancies:   tenantRepo,
		Payments:    paymentRepo,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder scheduler", err)
		os.Exit(1)
	}

	dispatcher, err := reminders.NewDispatcher(reminders.DispatcherParams{
		Repo:        reminderRepo,
		Settings:    settingsRepo,
		Preferences: preferenceRepo,
		Tenancies:   tenantRepo,
		Payments:    paymentRepo,
		Senders:     map[enums.ReminderChannel]reminders.Sender{enums.ReminderChannelSMS: smsClient},
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder dispatcher", err)
		os.Exit(1)
	}

	reminderController, err := remindercontrollers.NewController(remindercontrollers.ControllerParams{
		Dispatcher: dispatcher,
		Canceller:  scheduler,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reminders controller", err)
		os.Exit(1)
	}

	healthController := healthcontroller.NewController(logg, map[string]healthcontroller.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:    cfg,
			Logger:    logg,
			Health:    healthController,
			Webhooks:  webhookController,
			Reminders: reminderController,
			Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		logg.Info(ctx, "shutting down api server")
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(timeoutCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
