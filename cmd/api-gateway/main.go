package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/mentormatch-api/api/swagger"
	"github.com/noah-isme/mentormatch-api/internal/handler"
	internalmiddleware "github.com/noah-isme/mentormatch-api/internal/middleware"
	"github.com/noah-isme/mentormatch-api/internal/repository"
	"github.com/noah-isme/mentormatch-api/internal/service"
	"github.com/noah-isme/mentormatch-api/pkg/cache"
	"github.com/noah-isme/mentormatch-api/pkg/config"
	"github.com/noah-isme/mentormatch-api/pkg/database"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	"github.com/noah-isme/mentormatch-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mentormatch-api/pkg/middleware/cors"
	"github.com/noah-isme/mentormatch-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/mentormatch-api/pkg/middleware/requestid"
	"github.com/noah-isme/mentormatch-api/pkg/tracing"
)

const version = "1.0.0"

// @title MentorMatch API
// @version 1.0.0
// @description Student partnership, co-supervision and supervisor application workflows.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg, version)
	if err != nil {
		logr.Fatal("failed to init tracing", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	var db *sqlx.DB
	storeOpts := []docstore.Option{
		docstore.WithMaxAttempts(cfg.Store.TxMaxAttempts),
		docstore.WithRetryDelay(cfg.Store.TxRetryDelay),
		docstore.WithObserver(metrics.ObserveTransaction),
	}
	var store docstore.Store
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logr.Warn("using in-memory document store; data is lost on restart")
		store = docstore.NewMemoryStore(storeOpts...)
	default:
		db, err = database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to postgres", zap.Error(err))
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db, logr); err != nil {
				logr.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = docstore.NewPostgresStore(db, storeOpts...)
		checks["postgres"] = db.PingContext
	}
	defer store.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	validate := validator.New()
	repos := service.NewRepositories(store)

	var mailer service.Mailer = service.NewLogMailer(logr)
	if cfg.Mail.Host != "" {
		mailer = service.NewSMTPMailer(service.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	}
	var appOpts []service.ApplicationWorkflowOption
	appOpts = append(appOpts, service.WithApplicationObserver(metrics))
	if cfg.Notifications.Enabled {
		notifier := service.NewNotificationService(mailer, metrics, service.NotificationConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
		}, logr)
		notifier.Start(ctx)
		defer notifier.Stop()
		appOpts = append(appOpts, service.WithApplicationPublisher(notifier))
	}

	authSvc := service.NewAuthService(repos.Users, repos.Audit, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	requests := service.NewPartnershipRequestService(repos, logr)
	pairing := service.NewPartnershipPairingService(repos, logr, service.WithPairingObserver(metrics))
	partnerships := service.NewPartnershipWorkflowService(repos, requests, pairing, logr, service.WithPartnershipObserver(metrics))
	coSupervision := service.NewSupervisorPartnershipService(repos, requests, logr, service.WithSupervisorPartnershipObserver(metrics))
	applications := service.NewApplicationWorkflowService(repos, validate, logr, appOpts...)
	capacity := service.NewSupervisorCapacityService(repos, validate, cacheSvc, logr)
	dashboards := service.NewDashboardService(repos, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	exports := service.NewExportService(repos, logr)

	if cfg.Reconciler.Enabled {
		reconciler, err := service.NewAvailabilityReconciler(capacity, cfg.Reconciler.Schedule, logr)
		if err != nil {
			logr.Fatal("invalid reconciler schedule", zap.Error(err))
		}
		reconciler.Start()
		defer reconciler.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(tracing.GinMiddleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routeMW := handler.RouteMiddleware{Auth: internalmiddleware.JWT(authSvc)}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		routeMW.RateLimit = limiter.Middleware()
		go sweepLimiter(ctx, limiter, logr)
	}

	handler.Router{
		Auth:                   handler.NewAuthHandler(authSvc),
		Partnerships:           handler.NewPartnershipHandler(partnerships, requests, pairing),
		SupervisorPartnerships: handler.NewSupervisorPartnershipHandler(coSupervision, requests),
		Applications:           handler.NewApplicationHandler(applications),
		Supervisors:            handler.NewSupervisorHandler(capacity),
		Dashboard:              handler.NewDashboardHandler(dashboards),
		Reports:                handler.NewReportHandler(exports),
		Metrics:                metricsHandler,
	}.Register(r.Group(cfg.APIPrefix), routeMW)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logr.Warn("tracer shutdown failed", zap.Error(err))
	}
}

func sweepLimiter(ctx context.Context, limiter *ratelimit.Limiter, logr *zap.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := limiter.Sweep(10 * time.Minute); removed > 0 {
				logr.Debug("rate limiter buckets swept", zap.Int("removed", removed))
			}
		}
	}
}
