package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"claimflow/auth"
	"claimflow/claim"
	"claimflow/config"
	"claimflow/db"
	"claimflow/document"
	"claimflow/lecturer"
	"claimflow/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("claimflow exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", os.Getenv("CLAIMFLOW_CONFIG"), "path to the TOML configuration file")
	migrate := pflag.Bool("migrate", false, "apply database migrations before serving")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DB.URL, cfg.DB.MaxConns)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	if *migrate || *migrateOnly {
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", slog.Any("files", applied))
		if *migrateOnly {
			return nil
		}
	}

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	claimRepo := claim.NewRepository(pool)
	server := &Server{
		authService: auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret).
			WithTokenTTL(cfg.Auth.TokenTTL.Duration),
		claimService: claim.NewService(pool, claimRepo).
			WithLogger(logger).
			WithRetry(cfg.Lifecycle.MaxAttempts, cfg.Lifecycle.BulkConcurrency),
		documentService: document.NewService(document.NewRepository(pool), store, claimRepo).
			WithLogger(logger),
		lecturerService: lecturer.NewService(lecturer.NewRepository(pool), cfg.Lifecycle.LecturerCache),
		logger:          logger,
		bodyLimit:       cfg.HTTP.BodyLimit,
		readTimeout:     cfg.HTTP.ReadTimeout.Duration,
		writeTimeout:    cfg.HTTP.WriteTimeout.Duration,
	}
	app := server.App()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
		errCh <- app.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newStore(ctx context.Context, cfg config.StorageConfig) (document.Store, error) {
	switch cfg.Driver {
	case config.StorageS3:
		return document.NewS3Store(ctx, document.S3Options{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Prefix:    cfg.Prefix,
		})
	default:
		return document.NewDiskStore(cfg.Dir)
	}
}
