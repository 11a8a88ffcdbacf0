package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"

	"github.com/example/erp-automation/internal/application"
	"github.com/example/erp-automation/internal/auth"
	"github.com/example/erp-automation/internal/config"
	httptransport "github.com/example/erp-automation/internal/http"
	"github.com/example/erp-automation/internal/jobs"
	"github.com/example/erp-automation/internal/logging"
	"github.com/example/erp-automation/internal/notify"
	"github.com/example/erp-automation/internal/persistence/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to build logger", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("erp automation service stopped", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains the HTTP server, the job
// runner and the notification queue within cfg.ShutdownTimeout.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	svc, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	svc.notifier.Start(ctx)
	svc.runner.Start(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           svc.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("erp automation API listening", "addr", server.Addr, "db_driver", cfg.DBDriver, "jobs", svc.runner.Names())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("failed to notify systemd", "error", err)
	} else if ok {
		logger.Debug("systemd notified of readiness")
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("serve http: %w", err)
		}
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to shutdown server", "error", err)
	}
	svc.runner.Stop(shutdownCtx)
	svc.notifier.Stop(shutdownCtx)
	sent, failed := svc.notifier.Stats()
	logger.Info("shutdown complete", "notifications_sent", sent, "notifications_failed", failed)

	return runErr
}

// service holds the wired components of the process.
type service struct {
	store    *sqlstore.Store
	notifier *notify.Service
	runner   *jobs.Runner
	handler  http.Handler
	logger   *slog.Logger
}

func (s *service) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close storage", "error", err)
	}
}

// build opens and migrates the store and wires the services, jobs and
// router. Nothing is started.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*service, error) {
	store, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	now := time.Now
	notifier := notify.New(notify.Config{
		Enabled:    cfg.NotifyEnabled,
		RatePerSec: cfg.NotifyRate,
		RetryMax:   3,
	}, newSender(cfg, logger), logger)

	meetings := application.NewMeetingScheduler(store, application.MeetingSchedulerOptions{
		IDGenerator:     uuid.NewString,
		Now:             now,
		Location:        cfg.Location,
		SecondaryOffset: cfg.SecondaryOffset,
		Logger:          logger,
	})
	rollover := application.NewTaskRollover(store, now, cfg.Location, logger)
	cascade := application.NewEngineeringCascade(store, notifier, uuid.NewString, now, logger)
	canceller := application.NewDocumentCanceller(store, now, logger)
	conflicts := application.NewConflictChecker(store, cfg.Location, logger)

	runner := jobs.NewRunner(cfg.Location, cfg.JobTimeout, logger)
	definitions := jobs.Definitions(jobs.Services{
		Rollover:  rollover,
		Meetings:  meetings,
		Conflicts: conflicts,
	}, cfg.JobSpecs)
	if err := jobs.RegisterAll(runner, definitions); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	authenticator := &auth.Authenticator{
		Tokens:     auth.NewTokenIssuer([]byte(cfg.JWTSecret), now),
		APIKeyHash: cfg.APIKeyHash,
		KeySubject: cfg.SystemUser,
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Schedules:   httptransport.NewScheduleHandler(meetings, logger),
		Engineering: httptransport.NewEngineeringHandler(cascade, logger),
		Documents:   httptransport.NewDocumentHandler(canceller, conflicts, logger),
		Jobs:        httptransport.NewJobsHandler(runner, logger),
		Auth:        authenticator,
		Health:      store.Ping,
		Logger:      logger,
	})

	return &service{
		store:    store,
		notifier: notifier,
		runner:   runner,
		handler:  handler,
		logger:   logger,
	}, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	return logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
}

// newSender posts to the configured webhook, or logs each message when
// there is none.
func newSender(cfg config.Config, logger *slog.Logger) notify.Sender {
	if cfg.NotifyWebhook == "" {
		return notify.LogSender{Logger: logger.With("component", "notify.log")}
	}
	return notify.WebhookSender{
		URL:    cfg.NotifyWebhook,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}
