package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	deliveryapp "github.com/deliverysync/backend/internal/application/delivery"
	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/auth"
	"github.com/deliverysync/backend/internal/infrastructure/browser"
	"github.com/deliverysync/backend/internal/infrastructure/config"
	"github.com/deliverysync/backend/internal/infrastructure/driver"
	"github.com/deliverysync/backend/internal/infrastructure/lock"
	"github.com/deliverysync/backend/internal/infrastructure/logger"
	"github.com/deliverysync/backend/internal/infrastructure/migration"
	"github.com/deliverysync/backend/internal/infrastructure/persistence"
	"github.com/deliverysync/backend/internal/infrastructure/persistence/models"
	"github.com/deliverysync/backend/internal/infrastructure/scheduler"
	"github.com/deliverysync/backend/internal/infrastructure/storage"
	"github.com/deliverysync/backend/internal/infrastructure/telemetry"
	"github.com/deliverysync/backend/internal/infrastructure/vault"
	"github.com/deliverysync/backend/internal/interfaces/http/handler"
	"github.com/deliverysync/backend/internal/interfaces/http/middleware"
	"github.com/deliverysync/backend/internal/interfaces/http/router"
	"github.com/deliverysync/backend/migrations"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Service:    cfg.App.Name,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Disabled signals keep the global no-op providers
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Traces:            cfg.Telemetry.Enabled,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		Metrics:           cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		Logs:              cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	if providers.LogsEnabled() {
		// rebuild the logger so every entry is also shipped to the collector
		log, err = logger.New(logCfg, providers.ZapCore(logger.ParseLevel(cfg.Log.Level)))
		if err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting delivery sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithParams(!cfg.App.IsProduction() && cfg.Log.Level == "debug"),
	)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	dbSystem := "postgresql"
	if cfg.Database.Driver == "sqlite" {
		dbSystem = "sqlite"
	}
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         providers.TracesEnabled() && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		if err := migrate(&cfg.Database, db, log); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// Per-key lock, shared through Redis when several instances run
	locker, err := lock.NewFactory(cfg.Redis, lock.WithLogger(log)).Create()
	if err != nil {
		log.Fatal("Failed to create locker", zap.Error(err))
	}
	defer func() {
		if err := locker.Close(); err != nil {
			log.Error("Error closing locker", zap.Error(err))
		}
	}()

	cipher, err := vault.NewCipher(cfg.Vault.Secret)
	if err != nil {
		log.Fatal("Failed to initialize credential cipher", zap.Error(err))
	}

	var artifacts delivery.ArtifactStore = storage.NopArtifactStore{}
	if cfg.Storage.Enabled {
		store, err := storage.NewS3ArtifactStore(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			log.Fatal("Failed to initialize artifact storage", zap.Error(err))
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Warn("Artifact bucket check failed", zap.Error(err))
		}
		artifacts = store
	}

	meter := providers.Meter(telemetry.TracerName)
	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	runtime := browser.NewRuntime(browser.Config{
		RemoteURL:    cfg.Browser.RemoteURL,
		ExecPath:     cfg.Browser.ExecPath,
		NoSandbox:    cfg.Browser.NoSandbox,
		DisableGPU:   cfg.Browser.DisableGPU,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		UserAgent:    cfg.Browser.UserAgent,
		Logger:       log,
	})
	driverOpts := driver.Options{
		ActionsPerSecond: cfg.Sync.ActionsPerSecond,
		Logger:           log,
	}
	drivers := driver.NewRegistry(driver.NewDoorDash(driverOpts), driver.NewUberEats(driverOpts))

	// Repositories and application services
	credentialRepo := persistence.NewGormCredentialRepository(db.DB)
	deps := deliveryapp.Dependencies{
		Credentials: credentialRepo,
		Sessions:    persistence.NewGormSessionRepository(db.DB),
		SyncLogs:    persistence.NewGormSyncLogRepository(db.DB),
		SyncStates:  persistence.NewGormSyncStateRepository(db.DB),
		Menu:        persistence.NewGormMenuReader(db.DB),
		Drivers:     drivers,
		Browser:     runtime,
		Locker:      locker,
		Cipher:      cipher,
		Audit:       persistence.NewGormAuditLogger(db.DB),
		Artifacts:   artifacts,
		Metrics:     syncMetrics,
		Logger:      log,
	}
	appCfg := serviceConfig(cfg)

	sessionService := deliveryapp.NewSessionService(deps, deliveryapp.NewCredentialReader(credentialRepo, cipher), appCfg)
	credentialService := deliveryapp.NewCredentialService(deps, sessionService)
	syncService := deliveryapp.NewSyncService(deps, appCfg)

	// Set Gin mode based on environment
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Logger - Log requests with a request-scoped logger
	// 3. Recovery - Catch panics
	// 4. Tracing - Server span per request, error status on 4xx/5xx
	// 5. Metrics - Request count, duration and in-flight gauge
	// 6. Security - Add security headers
	// 7. CORS - Handle cross-origin requests
	// 8. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log, logger.WithQuietPaths("/health")))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(httpMetrics)
	engine.Use(middleware.Secure(cfg.HTTP.HSTS))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning and auth)
	engine.GET("/health", handler.NewHealthHandler(db, version).Health)

	// Delivery API: restaurant context from the token, or from the header
	// when no JWT secret is configured
	var apiMiddleware []gin.HandlerFunc
	if cfg.JWT.Secret != "" {
		apiMiddleware = append(apiMiddleware, middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
			Validator: auth.NewTokenValidator(cfg.JWT),
			Logger:    log,
		}))
	} else {
		log.Warn("JWT secret not configured, restaurant context is taken from the X-Restaurant-ID header")
	}
	apiMiddleware = append(apiMiddleware,
		middleware.RequireRestaurant(cfg.JWT.Secret == ""),
		middleware.SpanAttributes(),
	)

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimit > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst, 10*time.Minute)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Float64("rps", cfg.HTTP.RateLimit),
			zap.Int("burst", cfg.HTTP.RateBurst),
		)
	}

	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithDomain("delivery"),
		router.WithMiddleware(apiMiddleware...),
	)
	r.Register(handler.NewSessionHandler(sessionService)).
		Register(handler.NewCredentialHandler(credentialService)).
		Register(handler.NewSyncHandler(syncService))
	r.Setup()

	// Background jobs: expired session cleanup and scheduled auto sync
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(scheduler.Config{JobTimeout: cfg.Scheduler.JobTimeout}, log)
		if err := scheduler.RegisterJobs(sched, cfg.Scheduler.CleanupCron, cfg.Scheduler.AutoSyncCron, sessionService, syncService); err != nil {
			log.Fatal("Failed to register scheduled jobs", zap.Error(err))
		}
		if rateLimiter != nil {
			if err := sched.Register("ratelimit-sweep", "@every 10m", func(context.Context) error {
				if n := rateLimiter.Sweep(); n > 0 {
					log.Debug("Dropped idle rate limit buckets", zap.Int("count", n))
				}
				return nil
			}); err != nil {
				log.Fatal("Failed to register rate limit sweep", zap.Error(err))
			}
		}
		if err := sched.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler did not stop cleanly", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// serviceConfig maps the session and sync sections onto the service budgets
func serviceConfig(cfg *config.Config) deliveryapp.Config {
	return deliveryapp.Config{
		LoginWait:    cfg.Session.LoginWait,
		PollInterval: cfg.Session.PollInterval,
		TestTimeout:  cfg.Session.TestTimeout,
		ProbeTimeout: cfg.Session.ProbeTimeout,
		SyncTimeout:  cfg.Sync.Timeout,
		MaxAgeDays:   cfg.Session.MaxAgeDays,
		Concurrency:  cfg.Sync.Concurrency,
		Retry: delivery.RetryPolicy{
			MaxAttempts:        cfg.Sync.RetryMaxAttempts,
			NavigationAttempts: cfg.Sync.RetryNavigationAttempts,
			InitialInterval:    cfg.Sync.RetryInitialInterval,
			MaxInterval:        cfg.Sync.RetryMaxInterval,
		},
	}
}

// migrate brings the schema up to date. Postgres runs the embedded SQL
// migrations on a dedicated connection because the migrator closes it;
// sqlite uses gorm AutoMigrate.
func migrate(cfg *config.DatabaseConfig, db *persistence.Database, log *zap.Logger) error {
	if cfg.Driver == "sqlite" {
		return db.DB.AutoMigrate(models.All()...)
	}

	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}()
	return m.Up()
}
