package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agro-search/internal/dto"
	"agro-search/internal/embedding"
	"agro-search/internal/models"

	"go.uber.org/zap"
)

const DefaultReembedBatchSize = 50

type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, title, content string) ([]float32, error)
	Dimensions() int
}

type ArticleStore interface {
	Create(ctx context.Context, a *models.KnowledgeArticle) error
	GetByID(ctx context.Context, id int64) (*models.KnowledgeArticle, error)
	ListNeedingEmbedding(ctx context.Context, dimensions int, afterID int64, limit int) ([]*models.KnowledgeArticle, error)
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error
}

// IngestService writes articles into the knowledge base with embeddings of
// the configured dimensionality.
type IngestService struct {
	embedder DocumentEmbedder
	store    ArticleStore
	logger   *zap.Logger
}

func NewIngestService(embedder DocumentEmbedder, store ArticleStore, logger *zap.Logger) *IngestService {
	return &IngestService{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

func (s *IngestService) CreateArticle(ctx context.Context, req *dto.CreateArticleRequest) (*dto.ArticleResponse, error) {
	article, err := newArticle(req)
	if err != nil {
		return nil, err
	}

	vector, err := s.embed(ctx, article)
	if err != nil {
		return nil, err
	}
	article.Embedding = vector

	if err := s.store.Create(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to store article: %w", err)
	}

	s.logger.Info("Knowledge article created",
		zap.Int64("id", article.ID),
		zap.String("category", string(article.Category)),
		zap.Int("content_length", len(article.Content)),
	)

	return toArticleResponse(article), nil
}

func (s *IngestService) GetArticle(ctx context.Context, id int64) (*dto.ArticleResponse, error) {
	article, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toArticleResponse(article), nil
}

// Reembed embeds every article that has no vector or one of the wrong
// length. Individual failures are counted and skipped.
func (s *IngestService) Reembed(ctx context.Context, batchSize int) (*dto.ReembedResponse, error) {
	if batchSize <= 0 {
		batchSize = DefaultReembedBatchSize
	}

	report := &dto.ReembedResponse{}
	dims := s.embedder.Dimensions()
	var afterID int64

	for {
		batch, err := s.store.ListNeedingEmbedding(ctx, dims, afterID, batchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list articles: %w", err)
		}

		for _, article := range batch {
			afterID = article.ID
			report.Scanned++

			vector, err := s.embed(ctx, article)
			if err == nil {
				err = s.store.UpdateEmbedding(ctx, article.ID, vector)
			}
			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				report.Failed++
				s.logger.Warn("Failed to re-embed article", zap.Int64("id", article.ID), zap.Error(err))
				continue
			}
			report.Updated++
		}

		if len(batch) < batchSize {
			break
		}
	}

	s.logger.Info("Re-embedding finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}

func (s *IngestService) embed(ctx context.Context, article *models.KnowledgeArticle) ([]float32, error) {
	vector, err := s.embedder.EmbedDocument(ctx, article.Title, article.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed article: %w", err)
	}
	if dims := s.embedder.Dimensions(); len(vector) != dims {
		return nil, fmt.Errorf("%w: got %d, configured %d", embedding.ErrDimensionMismatch, len(vector), dims)
	}
	return vector, nil
}

func newArticle(req *dto.CreateArticleRequest) (*models.KnowledgeArticle, error) {
	// Postgres rejects invalid UTF-8 in text columns
	title := strings.TrimSpace(strings.ToValidUTF8(req.Title, ""))
	content := strings.TrimSpace(strings.ToValidUTF8(req.Content, ""))
	category := models.Category(strings.TrimSpace(req.Category))

	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArticle)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidArticle)
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidArticle, req.Category)
	}

	var source *string
	if req.Source != nil {
		if trimmed := strings.TrimSpace(strings.ToValidUTF8(*req.Source, "")); trimmed != "" {
			source = &trimmed
		}
	}

	return &models.KnowledgeArticle{
		Title:    title,
		Content:  content,
		Category: category,
		Source:   source,
	}, nil
}

func toArticleResponse(a *models.KnowledgeArticle) *dto.ArticleResponse {
	return &dto.ArticleResponse{
		ID:           a.ID,
		Title:        a.Title,
		Content:      a.Content,
		Category:     string(a.Category),
		Source:       a.Source,
		HasEmbedding: len(a.Embedding) > 0,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    a.UpdatedAt.Format(time.RFC3339),
	}
}
