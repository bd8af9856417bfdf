// Command lunchd serves the lunch locator API.
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

	"github.com/couchcryptid/lunch-locator-service/internal/adapter/filestore"
	httpadapter "github.com/couchcryptid/lunch-locator-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/lunch-locator-service/internal/adapter/kafka"
	"github.com/couchcryptid/lunch-locator-service/internal/adapter/location"
	"github.com/couchcryptid/lunch-locator-service/internal/adapter/mapbox"
	redisadapter "github.com/couchcryptid/lunch-locator-service/internal/adapter/redis"
	"github.com/couchcryptid/lunch-locator-service/internal/config"
	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/couchcryptid/lunch-locator-service/internal/geo"
	"github.com/couchcryptid/lunch-locator-service/internal/observability"
	"github.com/couchcryptid/lunch-locator-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("lunchd exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// snapshotStore is a pipeline loader that can also restore the last snapshot.
type snapshotStore interface {
	pipeline.SnapshotLoader
	Restore(ctx context.Context) (domain.Snapshot, bool, error)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	rankBy, err := domain.ParseRankBy(cfg.RankBy)
	if err != nil {
		return err
	}

	searcher, geocoder := mapbox.FromConfig(cfg, logger, metrics)
	locator := location.FromConfig(cfg, geocoder, logger)

	var closers []func() error
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("close error", "error", err)
			}
		}
	}()

	var loaders []pipeline.SnapshotLoader
	var checks readiness
	opts := []geo.Option{geo.WithLogger(logger), geo.WithMetrics(metrics), geo.WithRankBy(rankBy)}

	store, err := openSnapshotStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		loaders = append(loaders, store)
		if c, ok := store.(interface{ Close() error }); ok {
			closers = append(closers, c.Close)
		}
		if r, ok := store.(sharedobs.ReadinessChecker); ok {
			checks = append(checks, r)
		}

		snap, ok, err := store.Restore(ctx)
		switch {
		case err != nil:
			logger.Warn("snapshot restore failed; starting empty", "store", store.Name(), "error", err)
		case ok:
			logger.Info("restored snapshot", "store", store.Name(), "snapshot_id", snap.ID, "saved_at", snap.SavedAt)
			opts = append(opts, geo.WithInitialState(snap.State))
		}
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, writer)
		closers = append(closers, writer.Close)
	}

	p := pipeline.New(loaders, logger, metrics)
	checks = append(checks, p)

	orchestrator := geo.New(ctx, locator, searcher, opts...)
	unsubscribe := orchestrator.Subscribe(p.Offer)
	defer unsubscribe()

	srv := httpadapter.NewServer(cfg.HTTPAddr, orchestrator, checks, cfg.APIRateLimit, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return p.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		if err := orchestrator.Wait(shutdownCtx); err != nil {
			logger.Error("geo work did not stop in time", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func openSnapshotStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (snapshotStore, error) {
	switch cfg.SnapshotBackend {
	case config.SnapshotRedis:
		return redisadapter.NewStore(ctx, cfg.RedisAddr, cfg.RedisKey, logger)
	case config.SnapshotFile:
		return filestore.NewStore(cfg.SnapshotFile, logger)
	default:
		return nil, nil //nolint:nilnil // no persistence configured
	}
}

// readiness is ready when every check passes.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
