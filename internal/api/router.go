package api

import (
	"agro-search/docs"
	"agro-search/internal/api/handlers"
	"agro-search/internal/dto"
	"agro-search/pkg/auth"
	"agro-search/pkg/config"
	"agro-search/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Search  *handlers.SearchHandler
	Article *handlers.ArticleHandler
	Health  *handlers.HealthHandler
	// JWTManager is nil when the editor API is disabled.
	JWTManager *auth.JWTManager
	Server     *config.ServerConfig
}

func SetupRouter(rc RouterConfig, appLogger *zap.Logger) *fiber.App {
	fiberCfg := fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}
			return c.Status(code).JSON(dto.ErrorResponse{Error: msg})
		},
	}
	if rc.Server != nil {
		fiberCfg.ReadTimeout = rc.Server.ReadTimeout
		fiberCfg.WriteTimeout = rc.Server.WriteTimeout
	}
	app := fiber.New(fiberCfg)

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(middleware.RequestLogger(appLogger))

	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/search", rc.Search.Search)
	if rc.Health != nil {
		app.Get("/healthz", rc.Health.Health)
	}

	if rc.JWTManager != nil && rc.Article != nil {
		articles := app.Group("/api/v1/articles", middleware.EditorAuth(rc.JWTManager, appLogger))
		articles.Post("", rc.Article.CreateArticle)
		articles.Post("/reembed", rc.Article.Reembed)
		articles.Get("/:id", rc.Article.GetArticle)
	} else {
		appLogger.Info("Editor API disabled, JWT_SECRET_KEY not set")
	}

	return app
}
