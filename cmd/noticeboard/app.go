package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/noticeboard/internal/repository"
	"github.com/noah-isme/noticeboard/internal/service"
	"github.com/noah-isme/noticeboard/pkg/cache"
	"github.com/noah-isme/noticeboard/pkg/config"
	"github.com/noah-isme/noticeboard/pkg/database"
	"github.com/noah-isme/noticeboard/pkg/logger"
)

// app holds the process-wide resources every command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client
}

// openApp loads configuration and connects to postgres. Redis is mandatory
// when requireRedis is set and best effort otherwise.
func openApp(requireRedis bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		_ = logr.Sync()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &app{cfg: cfg, logger: logr, db: db}
	rdb, err := cache.NewRedis(cfg.Redis)
	switch {
	case err == nil:
		a.redis = rdb
	case requireRedis:
		a.close()
		return nil, fmt.Errorf("connect redis: %w", err)
	default:
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
	}
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}

// services is the wired service layer shared by the API and the UI.
type services struct {
	metrics       *service.MetricsService
	cache         *service.CacheService
	capabilities  *service.CapabilityService
	announcements *service.AnnouncementService
	reads         *service.ReadStatusService
	categories    *service.CategoryService
	directory     *service.DirectoryService
	auth          *service.AuthService
	preferences   *service.PreferenceService
	exports       *service.ExportService
	bootstrap     *service.BootstrapService
	cacheRepo     *repository.CacheRepository
}

func newServices(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, rdb *redis.Client) *services {
	announcementRepo := repository.NewAnnouncementRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	readRepo := repository.NewReadStatusRepository(db)
	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	cacheRepo := repository.NewCacheRepository(rdb, logr)

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.CategoryTTL, logr, cfg.Cache.Enabled && rdb != nil)
	validate := service.NewValidator()

	capabilities := service.NewCapabilityService(groupRepo, cacheSvc, cfg.Cache.CapabilityTTL, logr)
	announcements := service.NewAnnouncementService(announcementRepo, service.AnnouncementTargets{
		Memberships: groupRepo,
		Users:       userRepo,
		Groups:      groupRepo,
		Categories:  categoryRepo,
	}, readRepo, capabilities, metrics, validate, logr)

	return &services{
		metrics:       metrics,
		cache:         cacheSvc,
		capabilities:  capabilities,
		announcements: announcements,
		reads:         service.NewReadStatusService(readRepo, announcements, metrics, logr),
		categories:    service.NewCategoryService(categoryRepo, cacheSvc, cfg.Cache.CategoryTTL, validate, logr),
		directory:     service.NewDirectoryService(userRepo, groupRepo),
		auth: service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
			AccessTokenSecret:  cfg.JWT.Secret,
			AccessTokenExpiry:  cfg.JWT.Expiration,
			RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
			Issuer:             cfg.JWT.Issuer,
		}),
		preferences: service.NewPreferenceService(cacheSvc, cfg.Cache.PreferenceTTL, cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize),
		exports:     service.NewExportService(announcements, readRepo, logr, nil, nil),
		bootstrap:   service.NewBootstrapService(userRepo, groupRepo, categoryRepo, capabilities, logr),
		cacheRepo:   cacheRepo,
	}
}
