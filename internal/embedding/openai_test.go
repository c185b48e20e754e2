package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"agro-search/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func openAIClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := &config.EmbeddingConfig{
		Provider:    config.ProviderOpenAI,
		APIKey:      "sk-test",
		Model:       "text-embedding-3-large",
		BaseURL:     baseURL + "/v1",
		Dimensions:  3,
		Timeout:     2 * time.Second,
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
	}
	c, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestOpenAIProvider_Success(t *testing.T) {
	srv, hits := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model      string   `json:"model"`
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-large", body.Model)
		assert.Equal(t, []string{"soil pH for blueberries"}, body.Input)
		assert.Equal(t, 3, body.Dimensions)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"text-embedding-3-large","usage":{"prompt_tokens":4,"total_tokens":4}}`))
	})

	c := openAIClient(t, srv.URL)
	v, err := c.EmbedQuery(context.Background(), "soil pH for blueberries")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.EqualValues(t, 1, hits.Load())
}

func TestOpenAIProvider_ServerErrorIsRetriedOnce(t *testing.T) {
	srv, hits := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	})

	c := openAIClient(t, srv.URL)
	_, err := c.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestOpenAIProvider_ClientErrorIsNotRetried(t *testing.T) {
	srv, hits := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	c := openAIClient(t, srv.URL)
	_, err := c.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestOpenAIProvider_MalformedBody(t *testing.T) {
	srv, hits := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [`))
	})

	c := openAIClient(t, srv.URL)
	_, err := c.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestOpenAIProvider_WrongDimensions(t *testing.T) {
	srv, _ := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2]}]}`))
	})

	c := openAIClient(t, srv.URL)
	_, err := c.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
