package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
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

	_ "github.com/noah-isme/train4best-api/api/swagger"
	"github.com/noah-isme/train4best-api/internal/handler"
	"github.com/noah-isme/train4best-api/internal/middleware"
	"github.com/noah-isme/train4best-api/internal/models"
	"github.com/noah-isme/train4best-api/internal/repository"
	"github.com/noah-isme/train4best-api/internal/service"
	"github.com/noah-isme/train4best-api/pkg/cache"
	"github.com/noah-isme/train4best-api/pkg/config"
	"github.com/noah-isme/train4best-api/pkg/database"
	"github.com/noah-isme/train4best-api/pkg/events"
	"github.com/noah-isme/train4best-api/pkg/jobs"
	"github.com/noah-isme/train4best-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/train4best-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/train4best-api/pkg/middleware/requestid"
	"github.com/noah-isme/train4best-api/pkg/storage"
)

// @title Train4Best API
// @version 1.0.0
// @description Course registration and payment bootstrap for Train4Best
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const exportCleanupInterval = time.Hour

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	classRepo := repository.NewClassRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	bankAccountRepo := repository.NewBankAccountRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.BankAccounts.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	identitySvc := service.NewIdentityService(userRepo, participantRepo, validate, logr, service.IdentityConfig{
		AllowAnonymous: cfg.Registration.AllowAnonymous,
	})
	bankAccountSvc := service.NewBankAccountService(bankAccountRepo, cacheSvc, cfg.BankAccounts.CacheTTL, logr)

	publisher := events.NewPublisher(cfg.Events, logr)
	defer publisher.Close() //nolint:errcheck
	dispatcher := service.NewEventDispatcher(publisher, logr)

	var gateway service.PaymentGateway
	if midtrans := service.NewMidtransGateway(cfg.Gateway.ServerKey, cfg.Gateway.Production); midtrans != nil {
		gateway = midtrans
	}

	registrationSvc := service.NewRegistrationService(service.RegistrationServiceDeps{
		Store:        registrationRepo,
		Classes:      classRepo,
		Identities:   identitySvc,
		BankAccounts: bankAccountSvc,
		Audit:        userRepo,
		Notifier:     dispatcher,
		Gateway:      gateway,
		Cache:        cacheSvc,
		Metrics:      metrics,
		Validator:    validate,
		Logger:       logr,
	}, service.RegistrationConfig{
		DefaultPaymentMethod: cfg.Registration.DefaultPaymentMethod,
		GatewayPaymentMethod: cfg.Gateway.PaymentMethod,
	})
	expirySvc := service.NewExpiryService(registrationRepo, dispatcher, userRepo, cacheSvc, metrics, logr, service.ExpiryConfig{
		UnpaidTTL: cfg.Registration.UnpaidTTL,
		BatchSize: cfg.Registration.ExpiryBatchSize,
	})

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("export storage unavailable", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(registrationRepo, classRepo, exportStore, signer, userRepo, logr, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
	})

	dispatcher.UseExpirer(expirySvc)
	dispatcher.UseCleaner(exportSvc)
	queue := jobs.NewQueue("background", dispatcher.Handle, jobs.QueueConfig{
		Workers:    2,
		BufferSize: 256,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	dispatcher.UseQueue(queue)

	if expirySvc.Enabled() {
		if err := queue.Every(cfg.Registration.ExpiryInterval, service.JobExpireUnpaid); err != nil {
			logr.Warn("unpaid expiry schedule disabled", zap.Error(err))
		}
	}
	if err := queue.Every(exportCleanupInterval, service.JobCleanupExports); err != nil {
		logr.Warn("export cleanup schedule disabled", zap.Error(err))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)
	bankAccountHandler := handler.NewBankAccountHandler(bankAccountSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/me", middleware.JWT(authSvc), authHandler.Me)

	api.POST("/course/register", middleware.OptionalJWT(authSvc), registrationHandler.Register)
	api.GET("/course/my-courses", middleware.JWT(authSvc), registrationHandler.MyCourses)
	api.GET("/bank-accounts", bankAccountHandler.List)

	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.POST("/course-schedules/:id/registrations/export", exportHandler.ExportRoster)
	api.GET("/exports/download", middleware.OptionalJWT(authSvc), middleware.Audit(userRepo, models.AuditActionExportDownload, "exports"), exportHandler.Download)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
