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

	httpadapter "github.com/couchcryptid/reasoning-cache-service/internal/adapter/http"
	"github.com/couchcryptid/reasoning-cache-service/internal/bootstrap"
	"github.com/couchcryptid/reasoning-cache-service/internal/config"
	"github.com/couchcryptid/reasoning-cache-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.TracingExporter)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	app, err := bootstrap.New(ctx, cfg, clockwork.NewRealClock(), logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}()
	svc := app.Service

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, svc, logger,
		httpadapter.WithDevelopmentErrors(cfg.Development()),
		httpadapter.WithWriteTimeout(cfg.RequestTimeout+cfg.ShutdownTimeout),
	)

	logger.Info("reasoning service starting",
		"backend", cfg.CacheBackend,
		"credential_source", cfg.CredentialSource,
		"model", cfg.GeminiModel,
		"ttl", cfg.CacheTTL,
	)

	g, gctx := errgroup.WithContext(ctx)

	if pg, ok := app.Purger(); ok {
		g.Go(func() error {
			pg.RunPurger(gctx, cfg.PostgresPurgeInterval)
			return nil
		})
	}

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		svc.Wait()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
