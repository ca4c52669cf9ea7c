package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redcache/redcache"
	"github.com/redcache/redcache/internal/shared/logger"
	"github.com/redcache/redcache/internal/utils/metrics"
)

func newTestServer(t *testing.T) (*Server, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	m := metrics.NewWithRegisterer("test", prometheus.NewRegistry())
	manager := redcache.NewManager(client, &redcache.ManagerConfig{
		UsePrefix:  true,
		KeyCodec:   redcache.StringCodec{},
		ValueCodec: redcache.JSONCodec{},
		Metrics:    m,
	})
	log := logger.New(&logger.Config{Level: "error", Format: "json", Output: &bytes.Buffer{}})

	return New(manager, client, log, m), mr
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestServerEntryLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("put then get", func(t *testing.T) {
		w := doRequest(t, s, http.MethodPut, "/api/v1/caches/orders/entries/42", map[string]any{"value": "shipped"})
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doRequest(t, s, http.MethodGet, "/api/v1/caches/orders/entries/42", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Key   string `json:"key"`
			Value any    `json:"value"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "42", resp.Key)
		assert.Equal(t, "shipped", resp.Value)
	})

	t.Run("missing entry returns 404", func(t *testing.T) {
		w := doRequest(t, s, http.MethodGet, "/api/v1/caches/orders/entries/absent", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "NOT_FOUND")
	})

	t.Run("delete evicts", func(t *testing.T) {
		w := doRequest(t, s, http.MethodDelete, "/api/v1/caches/orders/entries/42", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doRequest(t, s, http.MethodGet, "/api/v1/caches/orders/entries/42", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/caches/orders/entries/42", bytes.NewReader([]byte("{not json")))
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServerClear(t *testing.T) {
	s, _ := newTestServer(t)

	for _, key := range []string{"1", "2"} {
		w := doRequest(t, s, http.MethodPut, "/api/v1/caches/orders/entries/"+key, map[string]any{"value": "v"})
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	w := doRequest(t, s, http.MethodPost, "/api/v1/caches/orders/clear", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	for _, key := range []string{"1", "2"} {
		w := doRequest(t, s, http.MethodGet, "/api/v1/caches/orders/entries/"+key, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
}

func TestServerListCaches(t *testing.T) {
	s, _ := newTestServer(t)

	doRequest(t, s, http.MethodPut, "/api/v1/caches/users/entries/1", map[string]any{"value": "v"})
	doRequest(t, s, http.MethodPut, "/api/v1/caches/orders/entries/1", map[string]any{"value": "v"})

	w := doRequest(t, s, http.MethodGet, "/api/v1/caches", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Caches []string `json:"caches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"orders", "users"}, resp.Caches)
}

func TestServerHealth(t *testing.T) {
	s, mr := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	mr.Close()

	w = doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServerStoreOutage(t *testing.T) {
	s, mr := newTestServer(t)

	// Prime the cache so the route exists, then take the store down.
	w := doRequest(t, s, http.MethodPut, "/api/v1/caches/orders/entries/42", map[string]any{"value": "v"})
	require.Equal(t, http.StatusNoContent, w.Code)
	mr.Close()

	w = doRequest(t, s, http.MethodGet, "/api/v1/caches/orders/entries/42", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "STORE_UNAVAILABLE")

	// Repeated failures trip the breaker; requests keep failing fast
	// with the same status.
	for i := 0; i < 6; i++ {
		w = doRequest(t, s, http.MethodGet, "/api/v1/caches/orders/entries/42", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	}
}

func TestServerMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("assigns an id", func(t *testing.T) {
		w := doRequest(t, s, http.MethodGet, "/health", nil)
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})

	t.Run("honors a client-supplied id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "my-id")
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)
		assert.Equal(t, "my-id", w.Header().Get(RequestIDHeader))
	})
}
