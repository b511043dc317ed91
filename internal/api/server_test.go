package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/food"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubLLM answers requests whose prompt starts with a known prefix and fails
// everything else, so stages fall back unless a reply is scripted.
type stubLLM struct {
	mu       sync.Mutex
	disabled bool
	replies  map[string]string
	failWith error
	// gate, when set, holds every call until it is closed or ctx ends.
	gate  chan struct{}
	calls int
}

func (s *stubLLM) Enabled() bool { return !s.disabled }

func (s *stubLLM) Invoke(ctx context.Context, req ai.Request) (string, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.disabled {
		return "", ai.ErrUnavailable
	}
	for prefix, reply := range s.replies {
		if strings.HasPrefix(req.Prompt, prefix) {
			return reply, nil
		}
	}
	if s.failWith != nil {
		return "", s.failWith
	}
	return "", errors.New("provider offline")
}

func (s *stubLLM) Providers() []string { return []string{"stub"} }

type fakeArchive struct {
	mu     sync.Mutex
	stored []string
	err    error
}

func (f *fakeArchive) Store(_ context.Context, owner, filename, _ string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	uri := "s3://labels/" + owner + "/" + filename
	f.stored = append(f.stored, uri)
	return uri, nil
}

type testEnv struct {
	server *Server
	router *gin.Engine
}

func newTestEnv(t *testing.T, llm ai.Capability, mutate func(cfg *Config)) *testEnv {
	t.Helper()
	cfg := Config{
		DBPath:     filepath.Join(t.TempDir(), "data", "test.db"),
		SilentDB:   true,
		Capability: llm,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	server, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	router, err := server.Router()
	require.NoError(t, err)
	return &testEnv{server: server, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, path, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func TestNewServerRequiresCapability(t *testing.T) {
	_, err := NewServer(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)

	_, err = NewServer(Config{Capability: &stubLLM{}})
	assert.Error(t, err)
}

func TestHealthAndConfig(t *testing.T) {
	env := newTestEnv(t, &stubLLM{}, func(cfg *Config) { cfg.Archive = &fakeArchive{} })

	rec := env.do(t, http.MethodGet, "/api/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/config", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[ConfigResponse](t, rec)
	assert.True(t, cfg.AIEnabled)
	assert.Equal(t, []string{"stub"}, cfg.Providers)
	assert.Equal(t, 5, cfg.AgentMaxSteps)
	assert.Equal(t, 5, cfg.MaxTranslations)
	assert.True(t, cfg.ImageArchive)
}

func TestCORSAllowsUserHeader(t *testing.T) {
	env := newTestEnv(t, &stubLLM{}, func(cfg *Config) { cfg.AllowedOrigins = []string{"http://localhost:3000"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/history", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	req.Header.Set("Access-Control-Request-Headers", "X-User-ID")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFoodEndpoints(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cgi/search.pl" && r.URL.Query().Get("search_terms") == "nutella":
			_, _ = w.Write([]byte(`{"products":[{"code":"301","product_name":"Nutella","nutrition_grades":"e"}]}`))
		case r.URL.Path == "/cgi/search.pl":
			_, _ = w.Write([]byte(`{"products":[]}`))
		case r.URL.Path == "/api/v2/product/301":
			_, _ = w.Write([]byte(`{"status":1,"product":{"code":"301","product_name":"Nutella"}}`))
		case r.URL.Path == "/api/v2/product/500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`{"status":0}`))
		}
	}))
	defer upstream.Close()
	env := newTestEnv(t, &stubLLM{}, func(cfg *Config) { cfg.Food = food.Config{BaseURL: upstream.URL} })

	rec := env.do(t, http.MethodGet, "/api/food/search?q=nutella", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode[FoodResponse](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/api/food/search?q=zzz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[FoodResponse](t, rec)
	assert.Equal(t, "error", empty.Status)
	assert.Contains(t, empty.Message, "No products found for 'zzz'")

	rec = env.do(t, http.MethodGet, "/api/food/search", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/food/product/301", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode[FoodResponse](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/api/food/product/999", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Product not found.", decode[FoodResponse](t, rec).Message)

	rec = env.do(t, http.MethodGet, "/api/food/product/500", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "External API error: food database unavailable", errorOf(t, rec))
}
