package embedding

import (
	"context"
	"fmt"
	"strings"

	"agro-search/pkg/config"

	"github.com/sashabaranov/go-openai"
)

// openAIProvider also serves OpenAI-compatible endpoints via EMBEDDING_BASE_URL.
type openAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
}

func NewOpenAIProvider(cfg *config.EmbeddingConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingAPIKey)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	p := &openAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
	// only the text-embedding-3 family accepts a requested size
	if strings.HasPrefix(cfg.Model, "text-embedding-3") {
		p.dimensions = cfg.Dimensions
	}

	return p, nil
}

func (p *openAIProvider) Embed(ctx context.Context, req Request) ([]float32, error) {
	rsp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{req.Text},
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return rsp.Data[0].Embedding, nil
}
