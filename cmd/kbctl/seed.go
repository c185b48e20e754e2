package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"agro-search/internal/dto"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document accepted by `kbctl load`.
type SeedFile struct {
	Articles []dto.CreateArticleRequest `yaml:"articles"`
}

type articleCreator interface {
	CreateArticle(ctx context.Context, req *dto.CreateArticleRequest) (*dto.ArticleResponse, error)
}

// LoadedEntry records a seed entry that made it into the knowledge base.
type LoadedEntry struct {
	ArticleID int64     `json:"article_id"`
	Title     string    `json:"title"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// SeedCache remembers loaded entries by content hash so reruns skip them.
type SeedCache struct {
	Entries map[string]LoadedEntry `json:"entries"`
}

type loadSummary struct {
	Loaded  int
	Skipped int
	Failed  int
}

func readSeedFile(path string) ([]dto.CreateArticleRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	if len(seed.Articles) == 0 {
		return nil, fmt.Errorf("seed file %s has no articles", path)
	}

	return seed.Articles, nil
}

func loadCache(path string) (*SeedCache, error) {
	cache := &SeedCache{Entries: make(map[string]LoadedEntry)}
	if path == "" {
		return cache, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return cache, nil
	}

	if err := json.Unmarshal(data, cache); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	if cache.Entries == nil {
		cache.Entries = make(map[string]LoadedEntry)
	}

	return cache, nil
}

func saveCache(path string, cache *SeedCache) error {
	if path == "" {
		return nil
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	return nil
}

// entryHash identifies a seed entry by the fields that end up embedded.
func entryHash(req *dto.CreateArticleRequest) string {
	h := sha256.New()
	for _, part := range []string{req.Title, req.Content, req.Category} {
		h.Write([]byte(strings.TrimSpace(part)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// loadSeed ingests entries one by one. Invalid or failing entries are logged
// and skipped; only context cancellation aborts the run.
func loadSeed(ctx context.Context, creator articleCreator, entries []dto.CreateArticleRequest, cache *SeedCache, logger *zap.Logger) (loadSummary, error) {
	var summary loadSummary

	for i := range entries {
		entry := &entries[i]
		hash := entryHash(entry)

		if _, ok := cache.Entries[hash]; ok {
			summary.Skipped++
			logger.Debug("Seed entry already loaded", zap.String("title", entry.Title))
			continue
		}

		article, err := creator.CreateArticle(ctx, entry)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			logger.Warn("Skipping seed entry",
				zap.Int("index", i),
				zap.String("title", entry.Title),
				zap.Error(err),
			)
			continue
		}

		cache.Entries[hash] = LoadedEntry{
			ArticleID: article.ID,
			Title:     article.Title,
			LoadedAt:  time.Now().UTC(),
		}
		summary.Loaded++
		logger.Info("Seed entry loaded", zap.Int64("id", article.ID), zap.String("title", article.Title))
	}

	return summary, nil
}
