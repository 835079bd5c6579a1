package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/mailer"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/worker"
	"github.com/spec-kit/support-desk/migrations"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := observability.SetupTracing(ctx, cfg.App, cfg.Telemetry, logger)
	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrations.FS, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("invalid redis configuration", zap.Error(err))
	}
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	ledger := repository.NewRedisReminderLedger(redis.Client, cfg.SLA.ReminderTTL())

	bus := events.NewMemoryBus(events.Options{
		DeliveryTimeout: cfg.Realtime.DeliveryTimeout(),
		DefaultBuffer:   cfg.Realtime.SubscriberBuffer,
		OnDrop: func(_ *events.Subscription, evt events.Event) {
			metrics.EventDropped()
			logger.Warn("slow subscriber dropped", zap.String("event_type", string(evt.Type)))
		},
	})
	if cfg.Realtime.RedisRelay {
		relay := events.NewRedisRelay(redis.Client, bus, cfg.Realtime.RedisChannel, uuid.NewString(), logger)
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("event relay stopped", zap.Error(err))
			}
		}()
	}

	workers := worker.NewPool(cfg.Notification.Workers, cfg.Notification.QueueSize, cfg.Notification.Timeout(), logger)
	go workers.MonitorErrors(ctx, func(worker.TaskError) { metrics.BestEffortFailure() })

	notifier := service.NewNotificationService(service.NotificationDependencies{
		UserRepo: userRepo,
		Sender:   mailer.New(cfg.Notification, logger),
		Pool:     workers,
		BaseURL:  cfg.App.BaseURL,
		Logger:   logger,
		Metrics:  metrics,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		HistoryRepo: historyRepo,
		UserRepo:    userRepo,
		Bus:         bus,
		Notifier:    notifier,
		Logger:      logger,
		Metrics:     metrics,
	})
	reminderService := service.NewReminderService(service.ReminderDependencies{
		TicketRepo: ticketRepo,
		Ledger:     ledger,
		Sender:     notifier,
		BatchLimit: cfg.SLA.SweepBatchLimit,
		Logger:     logger,
		Metrics:    metrics,
	})
	authService := service.NewAuthService(cfg.Auth, userRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	gateway := realtime.NewGateway(bus, realtime.Options{
		MaxConnectionsPerUser: cfg.Realtime.MaxConnectionsPerUser,
		Heartbeat:             cfg.Realtime.Heartbeat(),
		Buffer:                cfg.Realtime.SubscriberBuffer,
		OnActiveChange:        metrics.SetActiveConnections,
	}, logger)

	if interval := cfg.SLA.SweepInterval(); interval > 0 {
		go runSweeps(ctx, reminderService, interval, logger)
	}

	app := httptransport.NewApp(httptransport.AppConfig{
		Name:           cfg.App.Name,
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Reports:        handlers.NewReportsHandler(service.NewReportService(ticketRepo)),
		Stream:         handlers.NewStreamHandler(gateway, logger),
		Sweep:          handlers.NewSweepHandler(reminderService, cfg.SLA.SweepSecret),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// streams first, otherwise the server waits on them forever
	gateway.Shutdown()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	if err := workers.Stop(shutdownCtx); err != nil {
		logger.Warn("worker pool did not drain", zap.Error(err))
	}
	bus.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func runSweeps(ctx context.Context, reminders *service.ReminderService, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := reminders.Sweep(ctx, now); err != nil {
				logger.Warn("scheduled sweep failed", zap.Error(err))
			}
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
