package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/lab-portal-api/internal/app"
	"github.com/jwalitptl/lab-portal-api/internal/config"
	"github.com/jwalitptl/lab-portal-api/internal/handler/admin"
	"github.com/jwalitptl/lab-portal-api/internal/handler/cart"
	"github.com/jwalitptl/lab-portal-api/internal/handler/catalog"
	"github.com/jwalitptl/lab-portal-api/internal/handler/health"
	orionHandler "github.com/jwalitptl/lab-portal-api/internal/handler/orion"
	"github.com/jwalitptl/lab-portal-api/internal/middleware"
	"github.com/jwalitptl/lab-portal-api/internal/orion"
	"github.com/jwalitptl/lab-portal-api/internal/repository/postgres"
	"github.com/jwalitptl/lab-portal-api/internal/router"
	cartService "github.com/jwalitptl/lab-portal-api/internal/service/cart"
	catalogService "github.com/jwalitptl/lab-portal-api/internal/service/catalog"
	contentService "github.com/jwalitptl/lab-portal-api/internal/service/content"
	tariffService "github.com/jwalitptl/lab-portal-api/internal/service/tariff"
	"github.com/jwalitptl/lab-portal-api/pkg/auth"
	"github.com/jwalitptl/lab-portal-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := app.NewLogger(cfg.Log)
	logger.SetGlobal()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		logger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	// An empty registry is served when monitoring is off.
	registry := prometheus.NewRegistry()
	m := metrics.NewNop()
	var registerer prometheus.Registerer
	if cfg.Monitoring.PrometheusEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(cfg.Monitoring.Namespace, registry)
		registerer = registry
	}

	// Initialize repositories and services
	repos := app.NewRepositories(db)
	resolver := app.NewResolver(*cfg, repos, m, logger)
	migrator := app.NewMigrator(*cfg, repos, m, logger)

	store, redisClient, err := app.NewCartStore(ctx, *cfg)
	if err != nil {
		logger.Fatal(err, "failed to open cart store")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	tariffSvc := tariffService.NewService(repos.References, repos.Tariffs, repos.Exams, resolver, migrator, cfg.Pricing.MigrationBatch, logger)
	contentSvc := contentService.NewService(repos.Categories, repos.Articles, logger)
	catalogSvc := catalogService.NewService(repos.Exams, resolver)
	cartSvc := cartService.NewService(store, resolver, repos.Exams, app.NewNotifier(cfg.Email), cartService.Config{
		MerchantPhone: cfg.Payment.MerchantPhone,
		Message:       cfg.Payment.Message,
	}, m, logger)

	orionClient, err := orion.NewClient(cfg.Orion, m, logger)
	if err != nil {
		logger.Fatal(err, "failed to create orion client")
	}

	// Initialize handlers
	deps := map[string]health.Pinger{"database": db}
	if redisClient != nil {
		deps["redis"] = health.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	r, err := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer), cfg.Auth.AdminRole),
		router.Handlers{
			Health:  health.NewHandler(deps, registry),
			Catalog: catalog.NewHandler(catalogSvc, contentSvc),
			Cart:    cart.NewHandler(cartSvc),
			Orion:   orionHandler.NewHandler(orionClient),
			Admin:   admin.NewHandler(tariffSvc, contentSvc),
		},
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit: middleware.RateLimiterConfig{
				Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
				Burst: cfg.RateLimit.Burst,
			},
			CORSConfig: middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins...),
			SizeLimit: middleware.SizeLimitConfig{
				MaxBodySize:   cfg.Server.MaxBodyBytes,
				MaxHeaderSize: middleware.DefaultSizeLimitConfig().MaxHeaderSize,
			},
			Security:         middleware.DefaultSecurityConfig(),
			CatalogMaxAge:    int(cfg.Cache.DirectoryTTL.Seconds()),
			MetricsNamespace: cfg.Monitoring.Namespace,
			Registerer:       registerer,
		},
	)
	if err != nil {
		logger.Fatal(err, "failed to build router")
	}
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "server failed")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "server forced to shutdown")
		return
	}

	logger.Info("server exited properly")
}
