package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agro-search/internal/embedding"
	"agro-search/internal/repository"
	"agro-search/internal/service"
	"agro-search/pkg/auth"
	"agro-search/pkg/config"
	"agro-search/pkg/logger"
	"agro-search/pkg/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const loggerKey = "logger"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "kbctl: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "kbctl",
		Usage: "Manage the agronomy knowledge base",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: setupLogger,
		After: func(c *cli.Context) error {
			if l, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
				_ = l.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create the vector extension and the knowledge_articles table",
				Action: migrateCommand,
			},
			{
				Name:   "load",
				Usage:  "Embed and insert articles from a YAML seed file",
				Action: loadCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the seed YAML file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "cache",
						Usage: "Path to the cache of loaded entries; empty disables it",
						Value: ".kbctl_cache.json",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Embed articles with a missing or wrong-sized vector",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch",
						Usage: "Number of articles to fetch per batch",
						Value: service.DefaultReembedBatchSize,
					},
				},
			},
			{
				Name:   "token",
				Usage:  "Mint an editor token for the articles API",
				Action: tokenCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"s"},
						Usage:    "Who the token is issued to",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: 24 * time.Hour,
					},
					&cli.StringFlag{
						Name:     "secret",
						Usage:    "HMAC secret shared with the server",
						EnvVars:  []string{"JWT_SECRET_KEY"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "issuer",
						Usage:   "Token issuer",
						EnvVars: []string{"JWT_ISSUER"},
						Value:   "agro-search",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	config.LoadDotEnv()

	l, err := logger.New(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[loggerKey] = l
	return nil
}

func getLogger(c *cli.Context) *zap.Logger {
	if l, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// connect loads the full configuration and opens the pool.
func connect(c *cli.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewPool(c.Context, &cfg.Database, getLogger(c))
	if err != nil {
		return nil, nil, err
	}

	return cfg, db, nil
}

func newIngestService(c *cli.Context, cfg *config.Config, db *pgxpool.Pool) (*service.IngestService, func(), error) {
	log := getLogger(c)

	embedder, err := embedding.New(c.Context, &cfg.Embedding, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	repo := repository.NewKnowledgeRepository(db, log)
	return service.NewIngestService(embedder, repo, log), func() { _ = embedder.Close() }, nil
}

func migrateCommand(c *cli.Context) error {
	cfg, db, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	return repository.Migrate(c.Context, db, cfg.Embedding.Dimensions, getLogger(c))
}

func loadCommand(c *cli.Context) error {
	log := getLogger(c)

	entries, err := readSeedFile(c.String("file"))
	if err != nil {
		return err
	}

	cachePath := c.String("cache")
	cache, err := loadCache(cachePath)
	if err != nil {
		return err
	}

	cfg, db, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ingest, closeEmbedder, err := newIngestService(c, cfg, db)
	if err != nil {
		return err
	}
	defer closeEmbedder()

	summary, loadErr := loadSeed(c.Context, ingest, entries, cache, log)
	if err := saveCache(cachePath, cache); err != nil {
		log.Warn("Failed to save seed cache", zap.Error(err))
	}
	if loadErr != nil {
		return loadErr
	}

	log.Info("Seed load finished",
		zap.String("file", c.String("file")),
		zap.Int("loaded", summary.Loaded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg, db, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ingest, closeEmbedder, err := newIngestService(c, cfg, db)
	if err != nil {
		return err
	}
	defer closeEmbedder()

	report, err := ingest.Reembed(c.Context, c.Int("batch"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "scanned=%d updated=%d failed=%d\n", report.Scanned, report.Updated, report.Failed)
	return nil
}

func tokenCommand(c *cli.Context) error {
	ttl := c.Duration("ttl")
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	manager := auth.NewJWTManager(c.String("secret"), c.String("issuer"))
	token, err := manager.GenerateToken(c.String("subject"), auth.RoleEditor, ttl)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	fmt.Fprintln(c.App.Writer, token)
	return nil
}
