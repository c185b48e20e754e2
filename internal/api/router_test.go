package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"agro-search/internal/api/handlers"
	"agro-search/internal/dto"
	"agro-search/internal/models"
	"agro-search/internal/repository"
	"agro-search/internal/service"
	"agro-search/pkg/auth"
	"agro-search/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var carrotVector = []float32{0.2, 0.7, 0.1, 0.4}

type fakeEmbedder struct {
	calls atomic.Int32
	err   error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if strings.Contains(text, "carrot") {
		return carrotVector, nil
	}
	return []float32{-1, 0, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedDocument(ctx context.Context, title, content string) ([]float32, error) {
	return f.EmbedQuery(ctx, strings.ToLower(title))
}

func (f *fakeEmbedder) Dimensions() int { return len(carrotVector) }

type testServer struct {
	app      *fiber.App
	embedder *fakeEmbedder
	store    *repository.MemoryKnowledgeRepository
	jwt      *auth.JWTManager
}

func newTestServer(t *testing.T, withEditor bool) *testServer {
	t.Helper()

	logger := zap.NewNop()
	store := repository.NewMemoryKnowledgeRepository()
	require.NoError(t, store.Create(context.Background(), &models.KnowledgeArticle{
		Title:     "Carrot spacing",
		Content:   "Thin seedlings to 5cm apart once they have two true leaves.",
		Category:  models.CategoryPlanting,
		Embedding: carrotVector,
	}))

	embedder := &fakeEmbedder{}
	searchCfg := &config.SearchConfig{Threshold: 0.55, Limit: 5, StoreTimeout: time.Second}
	searchService := service.NewSearchService(embedder, store, searchCfg, logger)
	ingestService := service.NewIngestService(embedder, store, logger)

	rc := RouterConfig{
		Search:  handlers.NewSearchHandler(searchService, logger),
		Article: handlers.NewArticleHandler(ingestService, logger),
		Health:  handlers.NewHealthHandler(store, logger),
	}

	ts := &testServer{embedder: embedder, store: store}
	if withEditor {
		ts.jwt = auth.NewJWTManager("test-secret", "agro-search")
		rc.JWTManager = ts.jwt
	}
	ts.app = SetupRouter(rc, logger)
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (ts *testServer) editorToken(t *testing.T, role string) string {
	t.Helper()
	token, err := ts.jwt.GenerateToken("editor@example.com", role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestSearchEndpoint_MissingQuery(t *testing.T) {
	ts := newTestServer(t, false)

	for _, target := range []string{"/search", "/search?q=", "/search?q=%20%20%20"} {
		resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, target)
		var errResp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(body, &errResp))
		assert.NotEmpty(t, errResp.Error)
	}
	assert.Zero(t, ts.embedder.calls.Load())
}

func TestSearchEndpoint_Match(t *testing.T) {
	ts := newTestServer(t, false)

	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/search?q=carrot%20spacing", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "null", string(raw["message"]))

	var sr dto.SearchResponse
	require.NoError(t, json.Unmarshal(body, &sr))
	assert.Equal(t, "carrot spacing", sr.Query)
	assert.True(t, sr.HasResults)
	require.Len(t, sr.Results, 1)
	assert.Equal(t, "Carrot spacing", sr.Results[0].Title)
	assert.Equal(t, "planting", sr.Results[0].Category)
	assert.Nil(t, sr.Results[0].Source)
	assert.InDelta(t, 1.0, sr.Results[0].Similarity, 1e-6)
}

func TestSearchEndpoint_NoMatch(t *testing.T) {
	ts := newTestServer(t, false)

	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/search?q=wheat+futures", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "[]", string(raw["results"]))

	var sr dto.SearchResponse
	require.NoError(t, json.Unmarshal(body, &sr))
	assert.Equal(t, "wheat futures", sr.Query)
	assert.False(t, sr.HasResults)
	require.NotNil(t, sr.Message)
	assert.Equal(t, dto.NoMatchMessage, *sr.Message)
}

func TestSearchEndpoint_UpstreamFailure(t *testing.T) {
	ts := newTestServer(t, false)
	ts.embedder.err = errors.New("api key rejected: sk-secret")

	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/search?q=carrots", nil))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.NotEmpty(t, errResp.Error)
	assert.NotContains(t, string(body), "sk-secret")
	assert.NotContains(t, string(body), "results")
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, false)

	resp, _ := ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestArticlesEndpoint_DisabledWithoutSecret(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/articles", strings.NewReader(`{}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, _ := ts.do(t, req)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestArticlesEndpoint_Auth(t *testing.T) {
	ts := newTestServer(t, true)

	resp, _ := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/articles/1", nil))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/articles/1", nil)
	req.Header.Set(fiber.HeaderAuthorization, ts.editorToken(t, "viewer"))
	resp, _ = ts.do(t, req)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestArticlesEndpoint_CreateThenSearch(t *testing.T) {
	ts := newTestServer(t, true)
	token := ts.editorToken(t, auth.RoleEditor)

	payload := `{"title":"Carrot fly","content":"Cover rows with fine mesh from sowing.","category":"pest_disease","source":"Grower handbook"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/articles", strings.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, token)
	resp, body := ts.do(t, req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	var created dto.ArticleResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.True(t, created.HasEmbedding)
	assert.Equal(t, "pest_disease", created.Category)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/articles/"+jsonNumber(created.ID), nil)
	req.Header.Set(fiber.HeaderAuthorization, token)
	resp, _ = ts.do(t, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, httptest.NewRequest(http.MethodGet, "/search?q=carrot", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var sr dto.SearchResponse
	require.NoError(t, json.Unmarshal(body, &sr))
	assert.Len(t, sr.Results, 2)
}

func TestArticlesEndpoint_Errors(t *testing.T) {
	ts := newTestServer(t, true)
	token := ts.editorToken(t, auth.RoleEditor)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/articles",
		strings.NewReader(`{"title":"Hail","content":"Insure early.","category":"weather"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, token)
	resp, _ := ts.do(t, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/articles/999", nil)
	req.Header.Set(fiber.HeaderAuthorization, token)
	resp, _ = ts.do(t, req)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/articles/abc", nil)
	req.Header.Set(fiber.HeaderAuthorization, token)
	resp, _ = ts.do(t, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestArticlesEndpoint_Reembed(t *testing.T) {
	ts := newTestServer(t, true)
	require.NoError(t, ts.store.Create(context.Background(), &models.KnowledgeArticle{
		Title: "Carrot storage", Content: "Keep in damp sand.", Category: models.CategoryHarvestStorage,
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/articles/reembed?batch=10", nil)
	req.Header.Set(fiber.HeaderAuthorization, ts.editorToken(t, auth.RoleEditor))
	resp, body := ts.do(t, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report dto.ReembedResponse
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, dto.ReembedResponse{Scanned: 1, Updated: 1}, report)
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
