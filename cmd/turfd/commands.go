package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/turf-reservation/internal/config"
	"github.com/iliyamo/turf-reservation/internal/database"
	"github.com/iliyamo/turf-reservation/internal/handler"
	"github.com/iliyamo/turf-reservation/internal/logger"
	"github.com/iliyamo/turf-reservation/internal/middleware"
	"github.com/iliyamo/turf-reservation/internal/migration"
	"github.com/iliyamo/turf-reservation/internal/queue"
	"github.com/iliyamo/turf-reservation/internal/repository"
	"github.com/iliyamo/turf-reservation/internal/router"
	"github.com/iliyamo/turf-reservation/internal/service"
)

// ServeCmd runs the HTTP API.
type ServeCmd struct {
	Migrate bool `help:"Apply pending migrations before serving." default:"true" negatable:""`
	Consume bool `help:"Also run the audit consumer in-process (requires QUEUE_ENABLED)."`
}

func (c *ServeCmd) Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Info("database connected", "dialect", db.Dialect.Name)

	if c.Migrate {
		if err := migrate(ctx, db); err != nil {
			return err
		}
	}

	rdb, err := config.NewRedisClient()
	if err != nil {
		logger.Warn("redis unavailable, rate limiting and report cache disabled", "err", err)
	} else {
		defer rdb.Close()
	}

	cacheCfg := config.LoadCacheConfig()
	var inv service.Invalidator
	if ci := middleware.NewCacheInvalidator(cacheCfg, rdb); ci != nil {
		inv = ci
	}

	var notifier service.Notifier
	if cfg.QueueEnabled {
		notifier = service.NewQueuePublisher(cfg.AMQPURL)
		if c.Consume {
			out, err := logger.RotatingFile(cfg.AuditLogFile)
			if err != nil {
				return fmt.Errorf("open audit log: %w", err)
			}
			defer out.Close()
			// registered after out.Close, so the consumer stops first
			defer startAuditConsumer(ctx, cfg.AMQPURL, out)()
		}
	}

	slots := repository.NewSlotRepo(db)
	users := repository.NewUserRepo(db)
	bookings := service.NewBookingManager(db, slots, repository.NewReservationRepo(db), users, service.BookingOptions{
		MaxAttempts: cfg.BookingMaxAttempts,
		Notifier:    notifier,
		Invalidator: inv,
	})
	maintenance := service.NewMaintenanceManager(db, slots, service.MaintenanceOptions{
		MaxAttempts: cfg.BookingMaxAttempts,
		Notifier:    notifier,
		Invalidator: inv,
	})

	e := router.New(router.Handlers{
		Health:   handler.Health(db),
		Auth:     handler.NewAuthHandler(*cfg, repository.NewAdminRepo(db)),
		Users:    handler.NewUserHandler(users, inv, cfg.RequestTimeout),
		Bookings: handler.NewBookingHandler(bookings, cfg.RequestTimeout),
		Slots:    handler.NewSlotHandler(slots, maintenance, cfg.RequestTimeout),
		Reports:  handler.NewReportHandler(repository.NewReportRepo(db), cfg.RequestTimeout),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     cacheCfg,
		Redis:     rdb,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}

// startAuditConsumer runs the event consumer in the background.  The
// returned func stops it and waits until it no longer writes to out.
func startAuditConsumer(ctx context.Context, url string, out io.Writer) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := queue.NewConsumer(url, out).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("audit consumer stopped", "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// MigrateCmd applies the embedded migrations and exits.
type MigrateCmd struct{}

func (c *MigrateCmd) Run(cfg *config.Config) error {
	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return migrate(context.Background(), db)
}

func migrate(ctx context.Context, db *database.DB) error {
	runner, err := migration.ForDialect(db)
	if err != nil {
		return err
	}
	n, err := runner.Apply(ctx, logger.Info)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied", "dialect", db.Dialect.Name, "count", n)
	return nil
}

// ConsumeCmd runs the audit consumer until interrupted.
type ConsumeCmd struct {
	Out string `help:"Audit log path; defaults to AUDIT_LOG_FILE." type:"path"`
}

func (c *ConsumeCmd) Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := c.Out
	if path == "" {
		path = cfg.AuditLogFile
	}
	out, err := logger.RotatingFile(path)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer out.Close()

	logger.Info("consuming events", "out", path)
	err = queue.NewConsumer(cfg.AMQPURL, out).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
