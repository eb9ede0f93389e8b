package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	benchmarkapp "github.com/vectorcraft/tuner/internal/application/benchmark"
	monitoringapp "github.com/vectorcraft/tuner/internal/application/monitoring"
	optimizationapp "github.com/vectorcraft/tuner/internal/application/optimization"
	"github.com/vectorcraft/tuner/internal/domain/benchmark"
	"github.com/vectorcraft/tuner/internal/domain/metric"
	"github.com/vectorcraft/tuner/internal/domain/optimization"
	"github.com/vectorcraft/tuner/internal/infrastructure/auth"
	"github.com/vectorcraft/tuner/internal/infrastructure/config"
	"github.com/vectorcraft/tuner/internal/infrastructure/cooldown"
	"github.com/vectorcraft/tuner/internal/infrastructure/loadclient"
	"github.com/vectorcraft/tuner/internal/infrastructure/logger"
	"github.com/vectorcraft/tuner/internal/infrastructure/persistence"
	"github.com/vectorcraft/tuner/internal/infrastructure/sysmetrics"
	"github.com/vectorcraft/tuner/internal/infrastructure/telemetry"
	"github.com/vectorcraft/tuner/internal/interfaces/http/handler"
	"github.com/vectorcraft/tuner/internal/interfaces/http/middleware"
	"github.com/vectorcraft/tuner/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting VectorCraft tuner",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Request and query statistics feed the collector's derived metrics.
	// QueryStats is created before the GORM logger so every statement
	// the ORM executes lands in the db_query_time aggregate.
	requestStats := monitoringapp.NewRequestStats()
	queryStats := monitoringapp.NewQueryStats()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel, logger.WithQueryObserver(queryStats.Observe))

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to access connection pool", zap.Error(err))
	}

	// Initialize OpenTelemetry providers
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	tunerMetrics, err := telemetry.NewTunerMetrics(telemetry.TunerMetricsConfig{
		Meter:  meterProvider.Meter("tuner"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create tuner metrics", zap.Error(err))
	}

	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}

	if cfg.Telemetry.DBTraceEnabled {
		traceCfg := telemetry.DefaultDBTracingConfig()
		traceCfg.Enabled = true
		traceCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		traceCfg.DBSystem = cfg.Database.Driver
		if err := telemetry.NewDBTracingPlugin(traceCfg, log).RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to enable database tracing", zap.Error(err))
		}
	}

	// Initialize repositories
	sampleRepo := persistence.NewGormSampleRepository(db.DB)
	resultRepo := persistence.NewGormOptimizationResultRepository(db.DB)
	benchDefRepo := persistence.NewGormBenchmarkDefinitionRepository(db.DB)
	benchResultRepo := persistence.NewGormBenchmarkResultRepository(db.DB)

	// Metric store: bounded in-memory window with database write-through
	window := metric.NewWindow(cfg.Monitor.WindowCapacity)
	store := monitoringapp.NewStore(window, sampleRepo, metric.NewDefaultThresholdRegistry(), log)

	// Metrics collector samples host and application state on a fixed cadence
	probe := sysmetrics.NewHostProbe()
	collector := monitoringapp.NewCollector(store, probe, monitoringapp.CollectorConfig{
		CollectionInterval: cfg.Monitor.CollectionInterval,
		CleanupEnabled:     cfg.Monitor.CleanupEnabled,
		Retention:          cfg.Monitor.Retention,
		CleanupInterval:    cfg.Monitor.CleanupInterval,
	}, log,
		monitoringapp.WithRequestStats(requestStats),
		monitoringapp.WithQueryStats(queryStats),
		monitoringapp.WithPoolStats(sqlDB.Stats, dbMetrics),
		monitoringapp.WithTunerMetrics(tunerMetrics),
	)
	if cfg.Monitor.Enabled {
		collector.Start(context.Background())
		defer func() {
			if err := collector.Stop(context.Background()); err != nil {
				log.Error("Error stopping metrics collector", zap.Error(err))
			}
		}()
		log.Info("Metrics collector started",
			zap.Duration("interval", cfg.Monitor.CollectionInterval),
			zap.Int("window_capacity", cfg.Monitor.WindowCapacity),
		)
	}

	// Cooldown store keeps per-action cooldowns; Redis-backed when available
	cooldownStore, err := cooldown.NewStoreFactory(cfg.Redis, cooldown.WithLogger(log)).CreateStore()
	if err != nil {
		log.Fatal("Failed to create cooldown store", zap.Error(err))
	}
	defer func() {
		if err := cooldownStore.Close(); err != nil {
			log.Error("Error closing cooldown store", zap.Error(err))
		}
	}()

	// Optimization pipeline: detector -> recommender -> gate -> executor
	handlers := optimizationapp.DefaultHandlers(sqlDB, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, log)
	executor := optimizationapp.NewExecutor(store, handlers, resultRepo, cooldownStore, optimizationapp.ExecutorConfig{
		Cooldown: cfg.Optimizer.CooldownPeriod,
	}, log, optimizationapp.WithExecutorMetrics(tunerMetrics))
	detector := optimizationapp.NewDetector(store, nil, optimizationapp.DetectorConfig{
		SlopeThreshold:    cfg.Optimizer.TrendSlopeThreshold,
		VarianceThreshold: cfg.Optimizer.VarianceThreshold,
	}, log)
	recommender := optimizationapp.NewRecommender(optimization.DefaultCatalog(), cooldownStore, store, optimizationapp.RecommenderConfig{
		Cooldown: cfg.Optimizer.CooldownPeriod,
	}, log)
	gate := optimizationapp.NewSafetyGate(store, executor.History(), executor, optimizationapp.GateConfig{
		MinConfidence:      cfg.Optimizer.MinConfidence,
		MaxActive:          cfg.Optimizer.MaxConcurrent,
		StabilityErrorRate: cfg.Optimizer.StabilityErrorRate,
		StabilityWindow:    cfg.Optimizer.StabilityWindow,
		FailureWindow:      cfg.Optimizer.FailureWindow,
		MaxRecentFailures:  cfg.Optimizer.MaxRecentFailures,
	}, log)
	rollbackMonitor := optimizationapp.NewRollbackMonitor(executor, store, optimizationapp.RollbackPolicy{
		DegradationThreshold: cfg.Optimizer.DegradationThreshold,
		MaxSideEffects:       cfg.Optimizer.MaxSideEffects,
	}, log)
	optimizer := optimizationapp.NewOptimizer(detector, recommender, gate, executor, rollbackMonitor, optimizationapp.OptimizerConfig{
		Interval: cfg.Optimizer.Interval,
	}, log, optimizationapp.WithOptimizerMetrics(tunerMetrics))
	if cfg.Optimizer.Enabled {
		optimizer.Start(context.Background())
		defer func() {
			if err := optimizer.Stop(context.Background()); err != nil {
				log.Error("Error stopping optimizer", zap.Error(err))
			}
		}()
		log.Info("Optimization loop started",
			zap.Duration("interval", cfg.Optimizer.Interval),
			zap.Int("max_concurrent", cfg.Optimizer.MaxConcurrent),
		)
	}

	// Authentication services
	jwtService := auth.NewJWTService(cfg.JWT)
	var revocations auth.RevocationStore
	if cfg.Redis.Enabled {
		redisRevocations, err := auth.NewRedisRevocationStore(auth.RedisRevocationConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis revocation store unavailable, using in-memory fallback", zap.Error(err))
			revocations = auth.NewMemoryRevocationStore()
		} else {
			revocations = redisRevocations
			defer func() {
				if err := redisRevocations.Close(); err != nil {
					log.Error("Error closing revocation store", zap.Error(err))
				}
			}()
		}
	} else {
		revocations = auth.NewMemoryRevocationStore()
	}

	// Benchmark runner drives load against the configured target
	loadClient, err := loadclient.NewClient(loadclient.Config{
		BaseURL: cfg.Benchmark.TargetBaseURL,
		Timeout: cfg.Benchmark.RequestTimeout,
	})
	if err != nil {
		log.Fatal("Failed to create benchmark load client", zap.Error(err))
	}
	runner := benchmarkapp.NewRunner(benchDefRepo, benchResultRepo, loadClient, probe, benchmarkapp.RunnerConfig{
		RequestTimeout: cfg.Benchmark.RequestTimeout,
		MaxDuration:    cfg.Benchmark.MaxDuration,
		Weights: benchmark.ScoreWeights{
			ResponseTimePenaltyMax: cfg.Benchmark.Score.ResponseTimePenaltyMax,
			ResponseTimeDivisorMS:  cfg.Benchmark.Score.ResponseTimeDivisorMS,
			ThroughputBonusMax:     cfg.Benchmark.Score.ThroughputBonusMax,
			ThroughputDivisorRPS:   cfg.Benchmark.Score.ThroughputDivisorRPS,
			ErrorPenaltyMax:        cfg.Benchmark.Score.ErrorPenaltyMax,
			ErrorMultiplier:        cfg.Benchmark.Score.ErrorMultiplier,
			ResourcePenaltyMax:     cfg.Benchmark.Score.ResourcePenaltyMax,
		},
	}, log, benchmarkapp.WithRunnerMetrics(tunerMetrics))
	if err := runner.EnsureDefaults(context.Background()); err != nil {
		log.Warn("Failed to seed default benchmark definitions", zap.Error(err))
	}
	defer func() {
		if err := runner.Stop(context.Background()); err != nil {
			log.Error("Error stopping benchmark runner", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	monitoringHandler := handler.NewMonitoringHandler(collector)
	optimizationHandler := handler.NewOptimizationHandler(optimizer)
	benchmarkHandler := handler.NewBenchmarkHandler(runner)
	authHandler := handler.NewAuthHandler(jwtService, revocations)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Per-request telemetry and traffic statistics for every API route.
	// RequestStats feeds the collector's response-time and error-rate
	// metrics, so it stays last: it should time the handler, not the
	// instrumentation above it.
	r.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	r.Use(middleware.SpanRequestID())
	r.Use(middleware.SpanErrorMarker())
	r.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       meterProvider.IsEnabled(),
	}))
	r.Use(middleware.RequestStats(requestStats))

	// Mutating endpoints require a valid token when JWT is enabled.
	// Read endpoints stay open so dashboards can poll without credentials.
	var authGuard gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.JWT.Enabled {
		authGuard = middleware.RequireAuthWithConfig(middleware.AuthConfig{
			JWTService:  jwtService,
			Revocations: revocations,
			Logger:      log,
		})
		log.Info("JWT authentication enabled for mutating endpoints")
	}

	// Monitoring domain (live metrics, history)
	monitoringRoutes := router.NewDomainGroup("monitoring", "/monitoring")
	monitoringRoutes.GET("/metrics", monitoringHandler.GetRealTimeMetrics)
	monitoringRoutes.GET("/history", monitoringHandler.GetMetricsHistory)

	// Optimization domain (status, recommendations, manual tuning, rollback)
	optimizationRoutes := router.NewDomainGroup("optimization", "/optimization")
	optimizationRoutes.GET("/status", optimizationHandler.GetStatus)
	optimizationRoutes.GET("/recommendations", optimizationHandler.GetRecommendations)
	optimizationRoutes.POST("/tuning", authGuard, optimizationHandler.ApplyTuning)
	optimizationRoutes.POST("/actions/:id/rollback", authGuard, optimizationHandler.RollbackAction)

	// Benchmark domain (definitions, runs, history, comparison)
	benchmarkRoutes := router.NewDomainGroup("benchmark", "/benchmarks")
	benchmarkRoutes.GET("/tests", benchmarkHandler.ListTests)
	benchmarkRoutes.POST("/run", authGuard, benchmarkHandler.RunBenchmark)
	benchmarkRoutes.GET("/active", benchmarkHandler.GetActiveTests)
	benchmarkRoutes.GET("/history", benchmarkHandler.GetHistory)
	benchmarkRoutes.GET("/compare", benchmarkHandler.CompareResults)

	// Auth domain (login, logout)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	authRoutes := router.NewDomainGroup("auth", "/auth")
	authRoutes.POST("/login", middleware.AuthRateLimit(authLimiter), authHandler.Login)
	authRoutes.POST("/logout", authGuard, authHandler.Logout)

	// Register all domain groups
	r.Register(monitoringRoutes).
		Register(optimizationRoutes).
		Register(benchmarkRoutes).
		Register(authRoutes)

	// System routes
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
