package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func() error

func (f pingerFunc) Ping() error { return f() }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		ping     error
		status   int
		success  bool
		database string
	}{
		{"database reachable", nil, http.StatusOK, true, "ok"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, false, "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(pingerFunc(func() error { return tt.ping }), "1.2.3")
			router := gin.New()
			router.GET("/health", h.Health)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.status, w.Code)
			var health HealthResponse
			resp := decode(t, w, &health)
			assert.Equal(t, tt.success, resp.Success)
			assert.Equal(t, tt.database, health.Database)
			assert.Equal(t, "1.2.3", health.Version)
		})
	}
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"context deadline", context.DeadlineExceeded, http.StatusRequestTimeout},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h BaseHandler
			router := gin.New()
			router.GET("/x", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			require.Equal(t, tt.status, w.Code)
			resp := decode(t, w, nil)
			assert.False(t, resp.Success)
			assert.NotContains(t, resp.Error.Message, "boom")
		})
	}
}
