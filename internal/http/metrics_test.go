package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newRequestMetrics(reg)

	e := echo.New()
	e.Use(m.middleware)
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/documents/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})

	for _, path := range []string{"/health", "/api/v1/documents/a1", "/api/v1/documents/b2"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/documents/:id", "200")),
		"document ids must not become labels")
	assert.Equal(t, 2, testutil.CollectAndCount(m.requests))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestRequestMetrics_NilRegistry(t *testing.T) {
	m := newRequestMetrics(nil)

	e := echo.New()
	e.Use(m.middleware)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, testutil.CollectAndCount(m.requests))
}
