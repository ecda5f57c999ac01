package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reminder-mailer/config"
	"reminder-mailer/database"
	"reminder-mailer/handlers"
	"reminder-mailer/services"
	"reminder-mailer/trigger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration from .env and the environment
	cfg, err := config.LoadConfig()
	if err != nil {
		stdlog.Fatalf("Error loading configuration: %v", err)
	}

	log := setupLogger(cfg.Debug)
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Errorw("Service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := database.InitDB(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.ApplyMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
		return err
	}

	// SMTP settings are only checked per record so that a misconfiguration is
	// visible on the records rather than crashing the process.
	if _, err := cfg.SMTP.Resolve(); err != nil {
		log.Warnw("SMTP configuration incomplete; queued emails will be marked as errors", "error", err)
	}

	store := database.NewQueueStore(db)
	processor := services.NewProcessor(cfg.SMTP, services.NewSMTPTransport(log.Named("smtp")), log.Named("processor"))
	dispatcher := trigger.NewDispatcher(store, processor.SendQueuedEmail, log.Named("trigger"), cfg.QueueWorkers)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(handlers.NewAPI(store, log.Named("api"))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(ctx, cfg.DatabaseURL)
	})
	g.Go(func() error {
		log.Infof("Server starting on port %s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupLogger(debug bool) *zap.SugaredLogger {
	var zlog *zap.Logger
	var err error
	if debug {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return zlog.Sugar()
}
