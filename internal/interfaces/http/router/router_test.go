package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingRoutes struct {
	path string
}

func (p pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET(p.path, func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Equal(t, "/api/v1/delivery", r.BasePath())
	assert.Empty(t, r.registrars)
}

func TestRouterOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []RouterOption
		want string
	}{
		{"version", []RouterOption{WithAPIVersion("v2")}, "/api/v2/delivery"},
		{"domain", []RouterOption{WithDomain("ops")}, "/api/v1/ops"},
		{"no domain", []RouterOption{WithDomain("")}, "/api/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewRouter(gin.New(), tt.opts...).BasePath())
		})
	}
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.Register(pingRoutes{path: "/ping"}).Register(pingRoutes{path: "/other"})

	group := r.Setup()

	assert.Equal(t, "/api/v1/delivery", group.BasePath())
	w := serve(engine, "/api/v1/delivery/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, http.StatusOK, serve(engine, "/api/v1/delivery/other").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, "/api/v1/ping").Code)
}

func TestRouterMiddleware(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	var order []string
	r := NewRouter(engine, WithMiddleware(
		func(c *gin.Context) { order = append(order, "first"); c.Next() },
		func(c *gin.Context) {
			order = append(order, "second")
			if c.GetHeader("X-Block") != "" {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			c.Next()
		},
	))
	r.Register(pingRoutes{path: "/ping"}).Setup()

	assert.Equal(t, http.StatusOK, serve(engine, "/api/v1/delivery/ping").Code)
	assert.Equal(t, []string{"first", "second"}, order)

	order = nil
	req := httptest.NewRequest(http.MethodGet, "/api/v1/delivery/ping", nil)
	req.Header.Set("X-Block", "1")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	order = nil
	assert.Equal(t, http.StatusOK, serve(engine, "/health").Code)
	assert.Empty(t, order, "group middleware must not run outside the API group")
}
