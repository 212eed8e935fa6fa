package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"solemate/internal/cache"
	"solemate/internal/config"
	"solemate/internal/logger"
	custommiddleware "solemate/internal/middleware"
	"solemate/internal/repository"
	"solemate/internal/service"
	"solemate/internal/storage"
	"solemate/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config   *config.Config
	logger   *zap.Logger
	db       *sql.DB
	redis    *redis.Client
	store    storage.ImageStore
	sessions service.SessionService
}

func NewServer(cfg *config.Config, log *zap.Logger, db *sql.DB, redisClient *redis.Client, store storage.ImageStore) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(log))
	router.Use(custommiddleware.LoggingMiddleware(logger.Component(log, "http")))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", healthHandler(db, redisClient))

	repos := service.Repositories{
		Products:   repository.NewProductRepository(db),
		Images:     repository.NewImageRepository(db),
		Variants:   repository.NewVariantRepository(db),
		Placements: repository.NewPlacementRepository(db),
	}
	profileRepo := repository.NewProfileRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)

	catalogLog := logger.Component(log, "catalog")
	readCache := cache.NewCatalogCache(redisClient, cfg.Redis.CacheTTL, logger.Component(log, "cache"))

	catalogService := service.NewCatalogService(repos, store, readCache, catalogLog,
		service.WithKeyPrefix(cfg.Storage.KeyPrefix),
		service.WithPlaceholder(cfg.Catalog.PlaceholderImageURL),
	)
	catalogQuery := service.NewCatalogQuery(repos, readCache, cfg.Catalog.PlaceholderImageURL, cfg.Catalog.RecommendationLimit, catalogLog)
	sessionService := service.NewSessionService(profileRepo, refreshTokenRepo, cfg.JWT, logger.Component(log, "session"))

	authMiddleware := custommiddleware.AuthMiddleware(sessionService, log)
	adminStack := []func(http.Handler) http.Handler{
		authMiddleware,
		custommiddleware.RequireAdmin(log),
		custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:admin",
		}, log),
	}

	transport.NewSessionHandler(sessionService, log).RegisterRoutes(router, authMiddleware)
	transport.NewCatalogHandler(catalogService, catalogQuery, cfg.Catalog.MaxImageBytes, catalogLog).RegisterRoutes(router, adminStack...)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		config:   cfg,
		logger:   log,
		db:       db,
		redis:    redisClient,
		store:    store,
		sessions: sessionService,
	}
}

// SeedAdmin creates the configured admin profile on first start
func (s *Server) SeedAdmin(ctx context.Context) error {
	admin := s.config.Admin
	if admin.Email == "" {
		s.logger.Info("No admin email configured, skipping admin seed")
		return nil
	}
	if admin.Password == "" {
		return errors.New("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}

	profile, err := s.sessions.EnsureAdmin(ctx, admin.Email, admin.Password, admin.FullName)
	if err != nil {
		return err
	}
	s.logger.Info("Admin profile ready", zap.String("profile_id", profile.ID.String()), zap.String("email", profile.Email))
	return nil
}

func healthHandler(db *sql.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "database": "up", "redis": "up"}
		code := http.StatusOK

		if err := db.PingContext(ctx); err != nil {
			status["status"], status["database"] = "degraded", "down"
			code = http.StatusServiceUnavailable
		}
		// the catalog still serves reads without redis
		if err := redisClient.Ping(ctx).Err(); err != nil {
			status["status"], status["redis"] = "degraded", "down"
		}

		custommiddleware.RespondWithJSON(w, code, status)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if closer, ok := s.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("Failed to close image store", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
