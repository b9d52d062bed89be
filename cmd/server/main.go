package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	appboard "github.com/agencyboard/backend/internal/application/board"
	appmigration "github.com/agencyboard/backend/internal/application/migration"
	"github.com/agencyboard/backend/internal/infrastructure/auth"
	"github.com/agencyboard/backend/internal/infrastructure/config"
	"github.com/agencyboard/backend/internal/infrastructure/logger"
	"github.com/agencyboard/backend/internal/infrastructure/persistence"
	"github.com/agencyboard/backend/internal/infrastructure/storage"
	"github.com/agencyboard/backend/internal/infrastructure/telemetry"
	"github.com/agencyboard/backend/internal/infrastructure/trello"
	"github.com/agencyboard/backend/internal/interfaces/http/handler"
	"github.com/agencyboard/backend/internal/interfaces/http/middleware"
	"github.com/agencyboard/backend/internal/interfaces/http/router"
)

func main() {
	// .env is optional; real deployments set ABOARD_* variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting AgencyBoard migration backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry providers are no-ops when telemetry is disabled
	ctx := context.Background()
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	metrics, err := telemetry.NewMigrationMetrics()
	if err != nil {
		log.Fatal("Failed to initialize migration metrics", zap.Error(err))
	}

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := db.EnableTracing(); err != nil {
			log.Warn("Failed to enable database tracing", zap.Error(err))
		}
	}
	log.Info("Database connected")

	jobRepo := persistence.NewGormJobRepository(db.DB)
	mappingRepo := persistence.NewGormEntityMappingRepository(db.DB)
	boardRepo := persistence.NewGormBoardRepository(db.DB)
	cardRepo := persistence.NewGormCardRepository(db.DB)

	store, err := newObjectStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	sourceFactory, err := trello.NewFactory(trello.ConfigFromApp(&cfg.Trello), log)
	if err != nil {
		log.Fatal("Failed to initialize source client factory", zap.Error(err))
	}

	importer := appmigration.NewImporter(sourceFactory, jobRepo, mappingRepo, boardRepo, cardRepo, store,
		appmigration.WithImporterLogger(log),
		appmigration.WithImporterMetrics(metrics),
		appmigration.WithProgressBatchSize(cfg.Migration.ProgressBatchSize),
	)
	hub := appmigration.NewHub()
	orchestrator := appmigration.NewOrchestrator(jobRepo, importer, hub,
		appmigration.WithMaxConcurrentBoards(cfg.Migration.MaxConcurrentBoards),
		appmigration.WithOrchestratorLogger(log),
		appmigration.WithOrchestratorMetrics(metrics),
	)
	jobService := appmigration.NewJobService(jobRepo, sourceFactory, orchestrator,
		appmigration.WithJobServiceLogger(log),
	)
	boardService := appboard.NewQueryService(boardRepo, cardRepo,
		appboard.WithQueryServiceLogger(log),
	)

	// Jobs interrupted by a previous shutdown are still marked running in
	// the store; re-dispatch them before serving traffic
	if resumed, err := orchestrator.Recover(ctx); err != nil {
		log.Warn("Failed to recover interrupted migration jobs", zap.Error(err))
	} else if resumed > 0 {
		log.Info("Resumed interrupted migration jobs", zap.Int("jobs", resumed))
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	blacklist := newTokenBlacklist(cfg, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		perSecond := float64(cfg.HTTP.RateLimitRequests) / cfg.HTTP.RateLimitWindow.Seconds()
		rateLimiter := middleware.NewRateLimiter(perSecond, cfg.HTTP.RateLimitRequests)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.TokenBlacklist = blacklist
	jwtConfig.Logger = log

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))
	r.Register(handler.NewSystemHandler(db)).
		Register(handler.NewMigrationJobHandler(jobService,
			handler.WithMigrationJobLogger(log),
		)).
		Register(handler.NewMigrationStreamHandler(jobService,
			handler.WithStreamLogger(log),
			handler.WithStreamHeartbeat(cfg.Migration.HeartbeatInterval),
		)).
		Register(handler.NewBoardHandler(boardService,
			handler.WithBoardLogger(log),
		))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Interrupted imports stay in the running state and are picked up again
	// after restart, so waiting here is best effort
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Warn("Import workers did not drain in time", zap.Error(err))
	}

	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newObjectStorage builds the attachment store named by storage.provider
func newObjectStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.ObjectStorage, error) {
	switch cfg.Storage.Provider {
	case "s3":
		s3Store, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, err
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		log.Info("S3 object storage ready", zap.String("bucket", cfg.Storage.Bucket))
		return s3Store, nil
	default:
		log.Warn("Using local stub storage; attachments are written to disk",
			zap.String("dir", cfg.Storage.StubDir))
		return storage.NewLocalObjectStorage(cfg.Storage.StubDir)
	}
}

// newTokenBlacklist connects to Redis, falling back to the in-process
// blacklist when Redis is unreachable
func newTokenBlacklist(cfg *config.Config, log *zap.Logger) auth.TokenBlacklist {
	blacklist, err := auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, token revocation is process-local", zap.Error(err))
		return auth.NewInMemoryTokenBlacklist()
	}
	return blacklist
}

// gormLogLevel maps the application log level onto GORM's logger levels
func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "warn", "warning", "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
