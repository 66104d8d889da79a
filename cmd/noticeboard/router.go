package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/noticeboard/api/swagger"
	"github.com/noah-isme/noticeboard/internal/handler"
	"github.com/noah-isme/noticeboard/internal/middleware"
	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/internal/session"
	"github.com/noah-isme/noticeboard/internal/web"
	"github.com/noah-isme/noticeboard/pkg/config"
	"github.com/noah-isme/noticeboard/pkg/logger"
	corsmiddleware "github.com/noah-isme/noticeboard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/noticeboard/pkg/middleware/requestid"
)

// newRouter mounts the ops endpoints, the JSON API under the configured
// prefix and the server-rendered UI.
func newRouter(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, rdb redis.UniversalClient, svc *services) (*gin.Engine, error) {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(svc.metrics))

	ops := handler.NewMetricsHandler(svc.metrics, map[string]handler.Pinger{
		"postgres": handler.PingFunc(db.PingContext),
		"redis":    svc.cacheRepo,
	})
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerAPI(r.Group(cfg.APIPrefix), svc)

	ui, err := web.New(web.Dependencies{
		Announcements: svc.announcements,
		Categories:    svc.categories,
		Directory:     svc.directory,
		Auth:          svc.auth,
		Capabilities:  svc.capabilities,
		PageSizes:     svc.preferences,
		Sessions: session.NewRedisStore(rdb, session.Options{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.Secure,
		}),
		Logger: logr,
	})
	if err != nil {
		return nil, err
	}
	ui.Register(r)

	return r, nil
}

func registerAPI(api *gin.RouterGroup, svc *services) {
	auth := handler.NewAuthHandler(svc.auth)
	announcements := handler.NewAnnouncementHandler(svc.announcements, svc.reads, svc.preferences, svc.exports)
	reads := handler.NewReadStatusHandler(svc.reads, svc.preferences)
	categories := handler.NewCategoryHandler(svc.categories)
	directory := handler.NewDirectoryHandler(svc.directory)
	caps := svc.capabilities

	api.POST("/auth/login", auth.Login)
	api.POST("/auth/refresh", auth.Refresh)

	secured := api.Group("", middleware.JWT(svc.auth))
	secured.POST("/auth/logout", auth.Logout)
	secured.GET("/auth/me", auth.Me)

	// announcement capabilities are enforced by the service
	secured.GET("/announcements", announcements.List)
	secured.GET("/announcements/my_announcements", announcements.MyAnnouncements)
	secured.GET("/announcements/manage", announcements.Manage)
	secured.POST("/announcements", announcements.Create)
	secured.GET("/announcements/:id", announcements.Get)
	secured.PUT("/announcements/:id", announcements.Update)
	secured.PATCH("/announcements/:id", announcements.Patch)
	secured.DELETE("/announcements/:id", announcements.Delete)
	secured.POST("/announcements/:id/read", announcements.MarkRead)
	secured.DELETE("/announcements/:id/read", announcements.MarkUnread)
	secured.GET("/announcements/:id/receipts", announcements.Receipts)

	secured.GET("/read-status", reads.List)
	secured.POST("/read-status", reads.Create)
	secured.GET("/read-status/:id", reads.Get)
	secured.DELETE("/read-status/:id", reads.Delete)

	secured.GET("/categories", categories.List)
	secured.GET("/categories/:id", categories.Get)
	secured.POST("/categories", middleware.RequireCapability(caps, models.ActionCreate, models.ResourceCategory), categories.Create)
	secured.PUT("/categories/:id", middleware.RequireCapability(caps, models.ActionEdit, models.ResourceCategory), categories.Update)
	secured.DELETE("/categories/:id", middleware.RequireCapability(caps, models.ActionDelete, models.ResourceCategory), categories.Delete)

	secured.GET("/users", middleware.RequireCapability(caps, models.ActionView, models.ResourceUser), directory.Users)
	secured.GET("/groups", middleware.RequireCapability(caps, models.ActionView, models.ResourceGroup), directory.Groups)
}
