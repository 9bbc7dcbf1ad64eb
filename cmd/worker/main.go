package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/wawire/rentpulse-backend/internal/cron"
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

const lockKeyFormat = "worker:%s:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	reconciler, err := transactions.NewReconciler(transactions.ReconcilerParams{
		Repo:    transactionRepo,
		Service: transactionService,
		Gateway: mpesaClient,
		Config:  cfg.Reconciler,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
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

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	reconcileJob, err := cron.NewReconcileJob(reconciler)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}
	scheduleJob, err := cron.NewReminderScheduleJob(scheduler)
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder schedule job", err)
		os.Exit(1)
	}
	dispatchJob, err := cron.NewReminderDispatchJob(dispatcher)
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder dispatch job", err)
		os.Exit(1)
	}

	services := []struct {
		name     string
		job      cron.Job
		interval time.Duration
		lockTTL  time.Duration
	}{
		{"reconcile", reconcileJob, cfg.Reconciler.PollInterval, cfg.Reconciler.PollInterval * 3},
		{"reminder-schedule", scheduleJob, cfg.Reminders.SchedulerInterval, cfg.Reminders.SchedulerInterval},
		{"reminder-dispatch", dispatchJob, cfg.Reminders.DispatcherInterval, cfg.Reminders.DispatcherInterval * 3},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting worker")

	group, groupCtx := errgroup.WithContext(ctx)
	for _, svc := range services {
		lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env, svc.name)), svc.lockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create cycle lock", err)
			os.Exit(1)
		}
		cronService, err := cron.NewService(cron.ServiceParams{
			Name:     svc.name,
			Logger:   logg,
			Registry: cron.NewRegistry(svc.job),
			Lock:     lock,
			Metrics:  jobMetrics,
			Interval: svc.interval,
		})
		if err != nil {
			logg.Error(ctx, "failed to create cron service", err)
			os.Exit(1)
		}
		group.Go(func() error {
			return cronService.Run(groupCtx)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func lockName(env, service string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, service)
}
