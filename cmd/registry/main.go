package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/police-records/registry/internal/app"
	"github.com/police-records/registry/internal/cases"
	"github.com/police-records/registry/internal/integration"
	"github.com/police-records/registry/internal/jurisdiction"
	"github.com/police-records/registry/internal/observability"
	"github.com/police-records/registry/internal/personnel"
	"github.com/police-records/registry/internal/platform/blob"
	"github.com/police-records/registry/internal/platform/cache"
	"github.com/police-records/registry/internal/platform/db"
	"github.com/police-records/registry/internal/platform/httpx"
	"github.com/police-records/registry/internal/stations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, tree cache disabled", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Error("init blob store", slog.Any("error", err))
		os.Exit(1)
	}
	if blobs != nil {
		logger.Info("photo references checked", slog.String("driver", string(blobs.Driver())))
	}

	// Validated by LoadConfig.
	policy, _ := cfg.DeletePolicy()

	metrics := observability.NewMetrics()
	validate := httpx.NewValidator()

	jurisdictionService := jurisdiction.NewService(
		jurisdiction.NewRepository(pool),
		cache.NewCache(redisClient, "registry:jurisdiction", cfg.CacheTTL),
		policy,
		logger,
	)

	profileSync := integration.NewProfileSync(metrics, logger)
	personnelService := personnel.NewService(personnel.NewRepository(pool), profileSync, blobs, logger).
		WithPasswordCost(cfg.PasswordHashCost)

	stationsService := stations.NewService(stations.NewRepository(pool), logger)
	casesService := cases.NewService(cases.NewRepository(pool), blobs, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		JurisdictionHandler: jurisdiction.NewHandler(logger, jurisdictionService, validate),
		PersonnelHandler:    personnel.NewHandler(logger, personnelService, validate),
		StationsHandler:     stations.NewHandler(logger, stationsService, validate),
		CasesHandler:        cases.NewHandler(logger, casesService, validate),
		Database:            pool,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// newBlobStore returns nil for the none driver.
func newBlobStore(ctx context.Context, cfg *app.Config) (blob.Store, error) {
	driver, err := cfg.BlobStoreDriver()
	if err != nil {
		return nil, err
	}
	switch driver {
	case blob.DriverS3:
		return blob.NewS3Store(ctx, cfg.S3())
	case blob.DriverMemory:
		return blob.NewMemoryStore(), nil
	default:
		return nil, nil
	}
}
