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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/foi-request-api/api/swagger"
	"github.com/noah-isme/foi-request-api/internal/handler"
	"github.com/noah-isme/foi-request-api/internal/models"
	"github.com/noah-isme/foi-request-api/internal/repository"
	"github.com/noah-isme/foi-request-api/internal/service"
	"github.com/noah-isme/foi-request-api/pkg/cache"
	"github.com/noah-isme/foi-request-api/pkg/caseref"
	"github.com/noah-isme/foi-request-api/pkg/config"
	"github.com/noah-isme/foi-request-api/pkg/database"
	"github.com/noah-isme/foi-request-api/pkg/logger"
)

// @title FOI & Data Request API
// @version 1.0.0
// @description Tracks Freedom of Information, audit and ad-hoc data requests with working-day deadlines.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
		logr.Info("database migrations applied")
	}

	var redisClient *redis.Client
	if cfg.Dashboard.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, cache.KeyPrefix, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	validate := validator.New()
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SignupRoles:        signupRoles(cfg.Signup.AllowedRoles),
	})
	requestSvc := service.NewRequestService(requestRepo, caseref.NewGenerator(), cacheSvc, metricsSvc, validate, logr, service.RequestServiceConfig{
		StrictTransitions:  cfg.Requests.StrictTransitions,
		MaxPageSize:        cfg.Requests.MaxPageSize,
		MaxAttachments:     cfg.Requests.MaxAttachments,
		MaxAttachmentBytes: cfg.Requests.MaxAttachmentBytes,
	})
	userSvc := service.NewUserService(userRepo, cacheSvc, logr)
	exportSvc := service.NewExportService(requestSvc, logr, nil, nil)

	deps := routeDeps{
		apiPrefix:  cfg.APIPrefix,
		docs:       cfg.Env != config.EnvProduction,
		corsOrigin: cfg.CORS.AllowedOrigins,
		maxUpload:  cfg.Requests.MaxAttachmentBytes,
		logger:     logr,
		metricsSvc: metricsSvc,
		tokens:     authSvc,
		audit:      userRepo,
		auth:       handler.NewAuthHandler(authSvc),
		requests:   handler.NewRequestHandler(requestSvc, exportSvc),
		users:      handler.NewUserHandler(userSvc),
		metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
			"database": db,
			"cache":    handler.PingFunc(cacheRepo.Ping),
		}),
	}
	if cfg.Dashboard.Enabled {
		deps.dashboard = handler.NewDashboardHandler(service.NewDashboardService(requestRepo, cacheSvc, logr, service.DashboardServiceConfig{
			CacheTTL: cfg.Dashboard.CacheTTL,
		}))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.Bool("strict_transitions", cfg.Requests.StrictTransitions))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logr.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func signupRoles(raw []string) []models.UserRole {
	roles := make([]models.UserRole, 0, len(raw))
	for _, r := range raw {
		role := models.UserRole(r)
		if role.Valid() {
			roles = append(roles, role)
		}
	}
	return roles
}
