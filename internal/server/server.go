package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stevengranter/wilderquest-sub002/internal/access"
	"github.com/stevengranter/wilderquest-sub002/internal/auth"
	"github.com/stevengranter/wilderquest-sub002/internal/config"
	"github.com/stevengranter/wilderquest-sub002/internal/progress"
	"github.com/stevengranter/wilderquest-sub002/internal/quest"
	"github.com/stevengranter/wilderquest-sub002/internal/share"
	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
	"github.com/stevengranter/wilderquest-sub002/internal/stream"
	"github.com/stevengranter/wilderquest-sub002/internal/taxa"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Log    *zap.Logger
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: apperr.NewErrorHandler(log),
	})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Log:    log,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authMiddleware := auth.Middleware(s.Cfg.JWTSecret)
	optionalAuth := auth.Optional(s.Cfg.JWTSecret)

	shareSvc := share.NewService(s.DB)
	questSvc := quest.NewService(s.DB, shareSvc, s.Stream)
	progressSvc := progress.NewService(s.DB)
	guard := access.NewGuard(shareSvc)
	taxaSvc := taxa.NewService(s.Cfg.TaxaBaseURL, s.Cfg.TaxaCacheTTL, s.Redis, s.Log)

	api := s.App.Group("/api")

	quests := api.Group("/quests")
	quest.RegisterRoutes(quests, questSvc, guard, authMiddleware, optionalAuth)
	share.RegisterRoutes(quests, shareSvc, authMiddleware)
	stream.RegisterEventStream(quests, s.Stream)

	sharing := api.Group("/quest-sharing")
	progressHandler := progress.NewHandler(progressSvc, questSvc, shareSvc, guard, s.Stream)
	progress.RegisterRoutes(sharing, progressHandler, authMiddleware, optionalAuth)

	taxa.RegisterRoutes(api.Group("/taxa"), taxaSvc)
	stream.RegisterRoutes(api.Group("/stream"), s.Stream)
}
