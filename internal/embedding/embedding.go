// Package embedding turns text into fixed-length vectors through an external
// provider. Client adds per-attempt timeouts, a bounded retry on transient
// failures and dimensionality checks on every vector it returns.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"agro-search/pkg/config"

	"go.uber.org/zap"
)

var (
	ErrMissingAPIKey     = errors.New("embedding provider API key is not configured")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	ErrEmptyEmbedding    = errors.New("embedding provider returned no vector")
	ErrDimensionMismatch = errors.New("embedding dimensionality mismatch")
	ErrEmptyText         = errors.New("nothing to embed")

	// ErrDegenerateEmbedding: pgvector scores cosine distance to such a vector as NaN.
	ErrDegenerateEmbedding = errors.New("embedding provider returned an all-zero or non-finite vector")
)

// Task tells the provider which side of a retrieval the text is on.
type Task int

const (
	TaskQuery Task = iota
	TaskDocument
)

func (t Task) String() string {
	if t == TaskDocument {
		return "document"
	}
	return "query"
}

type Request struct {
	Text  string
	Title string // documents only; providers without title support ignore it
	Task  Task
}

// Provider is a single remote embedding call with no retry or validation.
type Provider interface {
	Embed(ctx context.Context, req Request) ([]float32, error)
}

type Client struct {
	provider    Provider
	name        string
	dimensions  int
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// New builds the provider named in cfg and wraps it in a Client.
func New(ctx context.Context, cfg *config.EmbeddingConfig, logger *zap.Logger) (*Client, error) {
	var (
		provider Provider
		err      error
	)

	switch cfg.Provider {
	case config.ProviderGemini:
		provider, err = NewGeminiProvider(ctx, cfg)
	case config.ProviderOpenAI:
		provider, err = NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Embedding provider configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", cfg.Dimensions),
	)

	return NewClient(provider, cfg, logger), nil
}

func NewClient(provider Provider, cfg *config.EmbeddingConfig, logger *zap.Logger) *Client {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	return &Client{
		provider:    provider,
		name:        cfg.Provider,
		dimensions:  cfg.Dimensions,
		timeout:     cfg.Timeout,
		maxAttempts: maxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      logger,
	}
}

// Dimensions is the vector length every returned embedding has.
func (c *Client) Dimensions() int {
	return c.dimensions
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, Request{Text: text, Task: TaskQuery})
}

func (c *Client) EmbedDocument(ctx context.Context, title, content string) ([]float32, error) {
	return c.embed(ctx, Request{Text: title + "\n\n" + content, Title: title, Task: TaskDocument})
}

func (c *Client) embed(ctx context.Context, req Request) ([]float32, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	var vector []float32
	err := retryTransient(ctx, c.maxAttempts, c.retryDelay, func(attempt int) error {
		v, err := c.attempt(ctx, req)
		if err != nil {
			c.logger.Warn("Embedding attempt failed",
				zap.String("provider", c.name),
				zap.Stringer("task", req.Task),
				zap.Int("attempt", attempt),
				zap.Bool("transient", isTransient(err)),
				zap.Error(err),
			)
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if c.dimensions > 0 && len(vector) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, configured %d", ErrDimensionMismatch, len(vector), c.dimensions)
	}
	if degenerate(vector) {
		return nil, ErrDegenerateEmbedding
	}

	return vector, nil
}

func degenerate(v []float32) bool {
	nonZero := false
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
		if x != 0 {
			nonZero = true
		}
	}
	return !nonZero
}

func (c *Client) attempt(ctx context.Context, req Request) ([]float32, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.provider.Embed(ctx, req)
}

// Close releases provider resources, if the provider holds any.
func (c *Client) Close() error {
	if closer, ok := c.provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
