package embedding

import (
	"context"
	"fmt"

	"agro-search/pkg/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type geminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, cfg *config.EmbeddingConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &geminiProvider{
		client: client,
		model:  cfg.Model,
	}, nil
}

func (p *geminiProvider) Embed(ctx context.Context, req Request) ([]float32, error) {
	model := p.client.EmbeddingModel(p.model)

	var (
		rsp *genai.EmbedContentResponse
		err error
	)
	if req.Task == TaskDocument {
		model.TaskType = genai.TaskTypeRetrievalDocument
		rsp, err = model.EmbedContentWithTitle(ctx, req.Title, genai.Text(req.Text))
	} else {
		model.TaskType = genai.TaskTypeRetrievalQuery
		rsp, err = model.EmbedContent(ctx, genai.Text(req.Text))
	}
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}

	if rsp == nil || rsp.Embedding == nil || len(rsp.Embedding.Values) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return rsp.Embedding.Values, nil
}

func (p *geminiProvider) Close() error {
	return p.client.Close()
}
