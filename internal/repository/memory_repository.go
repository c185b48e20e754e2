package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"agro-search/internal/models"
)

// MemoryKnowledgeRepository keeps articles in process and scores them with the
// same cosine similarity the database computes. It backs service and API tests.
type MemoryKnowledgeRepository struct {
	mu       sync.RWMutex
	articles []*models.KnowledgeArticle
	nextID   int64
}

func NewMemoryKnowledgeRepository() *MemoryKnowledgeRepository {
	return &MemoryKnowledgeRepository{nextID: 1}
}

func (r *MemoryKnowledgeRepository) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.ScoredArticle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	results := []*models.ScoredArticle{}
	if limit < 1 {
		return results, nil
	}

	for _, a := range r.articles {
		if len(a.Embedding) == 0 {
			continue
		}
		similarity := cosineSimilarity(a.Embedding, embedding)
		if similarity <= threshold {
			continue
		}
		results = append(results, &models.ScoredArticle{
			ID:         a.ID,
			Title:      a.Title,
			Content:    a.Content,
			Category:   a.Category,
			Source:     a.Source,
			Similarity: similarity,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

func (r *MemoryKnowledgeRepository) Create(ctx context.Context, a *models.KnowledgeArticle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	a.ID = r.nextID
	a.CreatedAt = now
	a.UpdatedAt = now
	r.nextID++

	stored := *a
	r.articles = append(r.articles, &stored)
	return nil
}

func (r *MemoryKnowledgeRepository) GetByID(ctx context.Context, id int64) (*models.KnowledgeArticle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.articles {
		if a.ID == id {
			found := *a
			return &found, nil
		}
	}
	return nil, ErrArticleNotFound
}

func (r *MemoryKnowledgeRepository) ListNeedingEmbedding(ctx context.Context, dimensions int, afterID int64, limit int) ([]*models.KnowledgeArticle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.KnowledgeArticle
	for _, a := range r.articles {
		if a.ID <= afterID || len(a.Embedding) == dimensions {
			continue
		}
		found := *a
		out = append(out, &found)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryKnowledgeRepository) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.articles {
		if a.ID == id {
			a.Embedding = embedding
			a.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrArticleNotFound
}

func (r *MemoryKnowledgeRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// cosineSimilarity returns 0 for mismatched lengths or zero vectors, which
// never clears a positive threshold.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
