package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/catalog"
	rediscache "github.com/utafrali/storefront/internal/catalog/cache/redis"
	"github.com/utafrali/storefront/internal/config"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/recommendation"
	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

// App wires together all dependencies and runs the storefront widget.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	session        *storefront.Session
	refresher      *recommendation.Refresher
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "storefront",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Backend client with retries and a circuit breaker.
	cbCfg := cfg.CircuitBreakerConfig()
	cbClient := httpclient.NewCircuitBreakerClient(httpclient.New(cfg.HTTPClientConfig()), cbCfg, logger).
		WithFallback(backend.CircuitOpenFallback)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
	)
	backendClient := backend.NewClient(cbClient, cfg.BackendURL, logger,
		backend.WithSlowThreshold(cfg.BackendSlowCallThreshold()),
	)

	healthHandler := health.NewHandler()

	// Optional Redis catalog cache. An unreachable Redis only degrades
	// readiness; catalog loads fall through to the backend.
	var catalogOpts []catalog.Option
	var rdb *redis.Client
	if cfg.CatalogCacheEnabled() {
		rdb, err = rediscache.NewClient(ctx, rediscache.Config{
			Addr:     cfg.CatalogCacheRedisAddr,
			Password: cfg.CatalogCacheRedisPass,
			DB:       cfg.CatalogCacheRedisDB,
		})
		if err != nil {
			logger.Warn("catalog cache unreachable, continuing without it until it recovers",
				slog.String("addr", cfg.CatalogCacheRedisAddr),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("connected to Redis",
				slog.String("addr", cfg.CatalogCacheRedisAddr),
				slog.Int("db", cfg.CatalogCacheRedisDB),
			)
		}
		if err := rediscache.RegisterPoolMetrics(prometheus.DefaultRegisterer, rdb); err != nil {
			logger.Warn("register catalog cache pool metrics", slog.String("error", err.Error()))
		}
		productCache := rediscache.NewProductCache(rdb, cfg.CatalogCacheTTLDuration())
		catalogOpts = append(catalogOpts, catalog.WithCache(productCache))
		healthHandler.RegisterOptional("catalog_cache", productCache.Ping)
	}

	// Build the dependency graph.
	catalogStore := catalog.NewStore(backendClient, logger, catalogOpts...)
	cartStore := cart.NewStore(catalogStore, logger)
	refresher := recommendation.NewRefresher(
		recommendation.NewClient(backendClient, logger),
		logger,
		recommendation.WithTimeout(cfg.RecommendationTimeout()),
	)
	session := storefront.NewSession(catalogStore, cartStore, refresher, logger)

	healthHandler.Register("catalog", catalogStore.Ready)

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(session, healthHandler, logger, handler.RouterConfig{
		CORS:       corsCfg,
		PprofCIDRs: cfg.PprofAllowedCIDRs,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		session:        session,
		refresher:      refresher,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run loads the catalog, starts the HTTP server and blocks until the context
// is canceled.
func (a *App) Run(ctx context.Context) error {
	loadCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.HTTPClientTimeoutSeconds+5)*time.Second)
	a.session.Start(loadCtx)
	cancel()

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("session_id", a.session.ID()),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Stop recommendation refreshes and wait for in-flight requests.
	a.session.Close()
	a.refresher.Close()

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
