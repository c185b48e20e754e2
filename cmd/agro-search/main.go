package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agro-search/internal/api"
	"agro-search/internal/api/handlers"
	"agro-search/internal/embedding"
	"agro-search/internal/repository"
	"agro-search/internal/service"
	"agro-search/pkg/auth"
	"agro-search/pkg/config"
	"agro-search/pkg/logger"
	"agro-search/pkg/postgres"

	"go.uber.org/zap"
)

// @title Agro Search API
// @version 1.0
// @description Semantic search over the agronomy knowledge base

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting agro-search",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("embedding_dimensions", cfg.Embedding.Dimensions),
	)

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	knowledgeRepo := repository.NewKnowledgeRepository(db, appLogger)

	embedder, err := embedding.New(ctx, &cfg.Embedding, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize embedding client", zap.Error(err))
	}
	defer embedder.Close()

	searchService := service.NewSearchService(embedder, knowledgeRepo, &cfg.Search, appLogger)
	ingestService := service.NewIngestService(embedder, knowledgeRepo, appLogger)

	rc := api.RouterConfig{
		Search:  handlers.NewSearchHandler(searchService, appLogger),
		Article: handlers.NewArticleHandler(ingestService, appLogger),
		Health:  handlers.NewHealthHandler(knowledgeRepo, appLogger),
		Server:  &cfg.Server,
	}
	if cfg.JWT.Enabled() {
		rc.JWTManager = auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Issuer)
	}

	app := api.SetupRouter(rc, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
