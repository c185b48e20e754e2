package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"agro-search/internal/dto"
	"agro-search/internal/models"
	"agro-search/pkg/config"

	"go.uber.org/zap"
)

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type KnowledgeSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.ScoredArticle, error)
}

// SearchService answers free-text questions from the knowledge base. It holds
// no per-request state and is safe for concurrent use.
type SearchService struct {
	embedder     QueryEmbedder
	store        KnowledgeSearcher
	threshold    float64
	limit        int
	storeTimeout time.Duration
	logger       *zap.Logger
}

func NewSearchService(embedder QueryEmbedder, store KnowledgeSearcher, cfg *config.SearchConfig, logger *zap.Logger) *SearchService {
	return &SearchService{
		embedder:     embedder,
		store:        store,
		threshold:    cfg.Threshold,
		limit:        cfg.Limit,
		storeTimeout: cfg.StoreTimeout,
		logger:       logger,
	}
}

// Search returns at most limit articles whose similarity to query exceeds the
// threshold, most similar first. Equal scores come back in whatever order the
// store produces. An empty slice means nothing matched confidently.
func (s *SearchService) Search(ctx context.Context, query string) ([]dto.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	storeCtx := ctx
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	matches, err := s.store.SearchSimilar(storeCtx, vector, s.threshold, s.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}

	results := make([]dto.SearchResult, 0, len(matches))
	for _, m := range matches {
		if len(results) == s.limit {
			break
		}
		// pgvector scores an all-zero row as NaN
		if math.IsNaN(m.Similarity) {
			s.logger.Warn("Skipping article with undefined similarity", zap.Int64("id", m.ID))
			continue
		}
		// float rounding can push an exact match just past 1
		similarity := math.Min(1, math.Max(0, m.Similarity))
		if similarity <= s.threshold {
			continue
		}
		results = append(results, dto.SearchResult{
			ID:         m.ID,
			Title:      m.Title,
			Content:    m.Content,
			Category:   string(m.Category),
			Source:     m.Source,
			Similarity: similarity,
		})
	}

	s.logger.Debug("Knowledge search completed",
		zap.Int("query_length", len(query)),
		zap.Int("results", len(results)),
	)

	return results, nil
}
