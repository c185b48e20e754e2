package service

import (
	"context"
	"sync"

	"agro-search/internal/models"
)

// mockEmbedder counts calls and delegates to embedFunc when set.
type mockEmbedder struct {
	mu        sync.Mutex
	calls     int
	dims      int
	vectors   map[string][]float32
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, vectors: map[string][]float32{}}
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.embedFunc != nil {
		return m.embedFunc(ctx, text)
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	v := make([]float32, m.dims)
	v[0] = 1
	return v, nil
}

func (m *mockEmbedder) EmbedDocument(ctx context.Context, title, content string) ([]float32, error) {
	return m.EmbedQuery(ctx, title)
}

func (m *mockEmbedder) Dimensions() int {
	return m.dims
}

func (m *mockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// stubSearcher returns canned matches or an error and records its calls.
type stubSearcher struct {
	matches []*models.ScoredArticle
	err     error
	block   bool
	calls   int
}

func (s *stubSearcher) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.ScoredArticle, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.matches, s.err
}
