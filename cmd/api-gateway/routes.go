package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/foi-request-api/internal/handler"
	"github.com/noah-isme/foi-request-api/internal/middleware"
	"github.com/noah-isme/foi-request-api/internal/models"
	"github.com/noah-isme/foi-request-api/internal/service"
	"github.com/noah-isme/foi-request-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/foi-request-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/foi-request-api/pkg/middleware/requestid"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type routeDeps struct {
	apiPrefix  string
	docs       bool
	corsOrigin []string
	maxUpload  int64
	logger     *zap.Logger
	metricsSvc *service.MetricsService
	tokens     tokenValidator
	audit      auditWriter

	auth      *handler.AuthHandler
	requests  *handler.RequestHandler
	dashboard *handler.DashboardHandler
	users     *handler.UserHandler
	metrics   *handler.MetricsHandler
}

func newRouter(d routeDeps) *gin.Engine {
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	r := gin.New()
	if d.maxUpload > 0 {
		r.MaxMultipartMemory = d.maxUpload
	}
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger, userField))
	r.Use(corsmiddleware.New(d.corsOrigin))
	r.Use(middleware.Metrics(d.metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", d.metrics.Health)
	r.GET("/ready", d.metrics.Ready)
	r.GET("/metrics", d.metrics.Prometheus)
	if d.docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(d.apiPrefix)

	auth := api.Group("/auth")
	auth.POST("/signup", d.auth.SignUp)
	auth.POST("/signin", d.auth.SignIn)
	auth.POST("/refresh", d.auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.tokens))
	secured.POST("/auth/logout", d.auth.Logout)
	secured.POST("/auth/change-password", d.auth.ChangePassword)
	secured.GET("/auth/me", d.auth.Me)

	requests := secured.Group("/requests")
	requests.GET("", d.requests.List)
	requests.POST("", d.requests.Create)
	requests.GET("/export", middleware.Audit(d.audit, d.logger, models.AuditActionExport, "requests"), d.requests.Export)
	requests.PATCH("/bulk", middleware.RequireStaff(), middleware.Audit(d.audit, d.logger, models.AuditActionStatusChange, "requests"), d.requests.BulkUpdateStatus)
	requests.GET("/:id", d.requests.Get)
	requests.GET("/:id/history", d.requests.History)
	requests.GET("/:id/attachments", d.requests.Attachments)
	requests.GET("/:id/attachments/:attachmentId", d.requests.DownloadAttachment)
	requests.PATCH("/:id", middleware.RequireStaff(), middleware.Audit(d.audit, d.logger, models.AuditActionStatusChange, "requests"), d.requests.UpdateStatus)
	requests.PATCH("/:id/details", d.requests.UpdateDetails)

	if d.dashboard != nil {
		secured.GET("/dashboard", d.dashboard.Summary)
	}

	admin := secured.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdministrator))
	admin.GET("/users", d.users.List)
	admin.GET("/users/:id", d.users.Get)
	admin.DELETE("/users/:id", d.users.Delete)
	admin.GET("/system/metrics", d.metrics.System)

	return r
}

func userField(c *gin.Context) []zap.Field {
	if claims := middleware.Claims(c); claims != nil {
		return []zap.Field{zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role))}
	}
	return nil
}
