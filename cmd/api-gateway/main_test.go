package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	url string
	err error
}

func (r staticResolver) GetServiceURL(string) (string, error) {
	return r.url, r.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func backend(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", name)
		w.Header().Set("X-Path", r.URL.RequestURI())
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGatewayProxiesOrderRoutes(t *testing.T) {
	orders := backend(t, "orders")
	g := NewGateway(nil, map[string]string{orderService: orders.URL})
	router := g.Router()

	for _, path := range []string{"/orders", "/orders/3/total", "/clients/1/orders", "/orders?client_id=2"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "orders", w.Header().Get("X-Backend"), path)
		assert.Equal(t, path, w.Header().Get("X-Path"))
	}
}

func TestGatewayPrefersResolver(t *testing.T) {
	resolved := backend(t, "resolved")
	fallback := backend(t, "fallback")

	g := NewGateway(staticResolver{url: resolved.URL}, map[string]string{orderService: fallback.URL})
	w := httptest.NewRecorder()
	g.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, "resolved", w.Header().Get("X-Backend"))

	g = NewGateway(staticResolver{err: errors.New("no healthy instances")}, map[string]string{orderService: fallback.URL})
	w = httptest.NewRecorder()
	g.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, "fallback", w.Header().Get("X-Backend"))
}

func TestGatewayUnavailableBackend(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	g := NewGateway(nil, map[string]string{orderService: url})
	router := g.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/services", nil))
	assert.Contains(t, w.Body.String(), url)
}
