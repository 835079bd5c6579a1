// deskctl is the operator CLI: it runs one reminder sweep or provisions an
// account against the same database the API uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/mailer"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
)

const usage = `usage: deskctl <command> [flags]

commands:
  sweep         send due deadline reminders once
  create-user   provision an account
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "sweep":
		return runSweep(args[1:])
	case "create-user":
		return runCreateUser(args[1:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", args[0])
}

type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
	redis  *persistence.Redis
}

func (e *env) close() {
	e.redis.Close()
	e.pg.Close()
	_ = e.logger.Sync()
}

func connect(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &env{cfg: cfg, logger: logger, pg: pg, redis: rdb}, nil
}

func runSweep(args []string) error {
	var at string
	flagSet := pflag.NewFlagSet("sweep", pflag.ContinueOnError)
	flagSet.StringVar(&at, "at", "", "evaluate deadlines as of this RFC 3339 time (default: now)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	now := time.Now()
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		now = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	pool := e.pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	notifier := service.NewNotificationService(service.NotificationDependencies{
		UserRepo: repository.NewUserRepository(pool),
		Sender:   mailer.New(e.cfg.Notification, e.logger),
		BaseURL:  e.cfg.App.BaseURL,
		Logger:   e.logger,
	})
	reminders := service.NewReminderService(service.ReminderDependencies{
		TicketRepo: ticketRepo,
		Ledger:     repository.NewRedisReminderLedger(e.redis.Client, e.cfg.SLA.ReminderTTL()),
		Sender:     notifier,
		BatchLimit: e.cfg.SLA.SweepBatchLimit,
		Logger:     e.logger,
	})

	result, err := reminders.Sweep(ctx, now)
	if err != nil {
		return err
	}
	fmt.Printf("scanned=%d sent=%d skipped=%d failed=%d\n", result.Scanned, result.Sent, result.Skipped, result.Failed)
	if result.Failed > 0 {
		return fmt.Errorf("%d reminders failed", result.Failed)
	}
	return nil
}

func runCreateUser(args []string) error {
	var name, email, password, role string
	flagSet := pflag.NewFlagSet("create-user", pflag.ContinueOnError)
	flagSet.StringVar(&name, "name", "", "display name")
	flagSet.StringVar(&email, "email", "", "login email")
	flagSet.StringVar(&password, "password", "", "initial password (default: $DESKCTL_PASSWORD)")
	flagSet.StringVar(&role, "role", string(domain.RoleUser), "ADMIN, TECH or USER")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if password == "" {
		password = os.Getenv("DESKCTL_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	authService := service.NewAuthService(e.cfg.Auth, repository.NewUserRepository(e.pg.PoolHandle()))
	user, err := authService.CreateUser(ctx, name, email, password, domain.Role(role))
	if err != nil {
		return err
	}
	fmt.Printf("created %s %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}
