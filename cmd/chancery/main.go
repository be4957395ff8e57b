// Package main is the entry point for the Chancery BFF server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/builder"
	"github.com/kingscribe/chancery/internal/catalog"
	"github.com/kingscribe/chancery/internal/config"
	"github.com/kingscribe/chancery/internal/configstore"
	"github.com/kingscribe/chancery/internal/display"
	"github.com/kingscribe/chancery/internal/entity"
	"github.com/kingscribe/chancery/internal/observability"
	"github.com/kingscribe/chancery/internal/transport"
	"github.com/kingscribe/chancery/internal/wizard"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "chancery-bff", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Connect the content backend: gateway, entity registry, and
	// metadata projected from the backend's OpenAPI document.
	gateway := entity.NewGateway(cfg.Backend, logger)
	registry := gateway.Registry()

	var metadata entity.MetadataProvider
	specLoaded := false
	if cfg.Backend.SpecFile != "" {
		provider, err := entity.NewOpenAPIMetadataProvider(cfg.Backend.SpecFile, cfg.Backend.Entities)
		if err != nil {
			logger.Error("backend spec load failed",
				zap.String("spec_file", cfg.Backend.SpecFile),
				zap.Error(err))
			return 1
		}
		metadata = provider
		specLoaded = true
	} else {
		logger.Warn("no backend spec configured, relationship classification degrades to name heuristics")
		metadata = entity.NewStaticMetadataProvider()
	}

	// Step 5: Load catalogs.
	catalogs, err := catalog.NewService(cfg.Catalog, logger)
	if err != nil {
		logger.Error("catalog load failed", zap.Error(err))
		return 1
	}

	// Step 6: Initialize configuration and progress stores.
	formStore, displayStore, progressStore, storeCloser, err := buildStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return 1
	}

	// Step 7: Build the domain services.
	engine := wizard.NewEngine(formStore, progressStore, registry, metadata, logger)
	renderer := display.NewRenderer(displayStore, registry, display.RecoveryHints{}, logger)
	hotEditor := display.NewHotEditor(registry, logger)
	forms := builder.NewFormService(formStore, metadata, logger)
	displays := builder.NewDisplayService(displayStore, metadata, logger)

	// Step 8: Build HTTP router.
	jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, logger)

	readinessChecks := observability.ReadinessChecks{
		BackendSpecLoaded: func() bool { return specLoaded },
		CatalogsLoaded:    func() bool { return len(catalogs.Catalogs()) > 0 },
	}
	if hc, ok := formStore.(observability.HealthChecker); ok {
		readinessChecks.ConfigurationStore = hc
	}
	if hc, ok := progressStore.(observability.HealthChecker); ok {
		readinessChecks.ProgressStore = hc
	}

	var metricsHandler http.Handler
	if cfg.Observability.Metrics.Enabled {
		metricsHandler = observability.Handler()
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:         cfg,
		Log:            logger,
		Authenticate:   transport.JWTAuthenticator(cfg.Identity, jwks),
		Engine:         engine,
		Renderer:       renderer,
		HotEditor:      hotEditor,
		Forms:          forms,
		Displays:       displays,
		Catalogs:       catalogs,
		Metrics:        metrics,
		Health:         observability.HandleHealth(),
		Ready:          observability.HandleReady(readinessChecks),
		MetricsHandler: metricsHandler,
	})

	handler := metrics.MetricsMiddleware(observability.TracingMiddleware(router))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 9: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Int("catalogs", len(catalogs.Catalogs())),
		zap.Int("entity_types", len(registry.EntityTypes())),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if storeCloser != nil {
		storeCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildStores creates the configuration and progress stores based on the
// storage driver. The returned closer releases the shared pool, if any.
func buildStores(
	ctx context.Context,
	cfg config.StorageConfig,
	logger *zap.Logger,
) (configstore.FormStore, configstore.DisplayStore, wizard.ProgressStore, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory configuration and progress stores")
		return configstore.NewMemoryFormStore(), configstore.NewMemoryDisplayStore(), wizard.NewMemoryProgressStore(), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, nil, nil, fmt.Errorf("storage: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("storage: parse DSN: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			poolCfg.MinConns = int32(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("storage: create pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, nil, fmt.Errorf("storage: ping: %w", err)
		}

		logger.Info("using postgres configuration and progress stores")
		return configstore.NewPgFormStore(pool), configstore.NewPgDisplayStore(pool), wizard.NewPgProgressStore(pool), pool.Close, nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("storage: driver %q is not supported", cfg.Driver)
	}
}
