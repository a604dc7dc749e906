package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/lab-portal-api/internal/middleware"
	"github.com/jwalitptl/lab-portal-api/pkg/auth"
)

const secret = "router-secret"

// routes registers one GET that echoes the caller.
type routes string

func (p routes) RegisterRoutes(r *gin.RouterGroup) {
	r.GET(string(p), func(c *gin.Context) {
		if id := middleware.UserID(c); id != nil {
			c.String(http.StatusOK, id.String())
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
}

func newRouter(t *testing.T, reg prometheus.Registerer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r, err := NewRouter(
		middleware.NewAuthMiddleware(auth.NewJWTService(secret, ""), "admin"),
		Handlers{
			Health:  routes("/health"),
			Catalog: routes("/catalog/exams"),
			Cart:    routes("/cart/:id"),
			Orion:   routes("/orion/orders"),
			Admin:   routes("/tariffs"),
		},
		RouterConfig{
			RateLimitEnabled: true,
			RateLimit:        middleware.RateLimiterConfig{Rate: rate.Inf, Burst: 1},
			CORSConfig:       middleware.DefaultCORSConfig(),
			SizeLimit:        middleware.DefaultSizeLimitConfig(),
			Security:         middleware.DefaultSecurityConfig(),
			CatalogMaxAge:    60,
			MetricsNamespace: "labportal",
			Registerer:       reg,
		},
	)
	require.NoError(t, err)
	r.Setup()
	return r.Engine()
}

func token(t *testing.T, role string) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		AppMetadata: auth.AppMetadata{Role: role},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func get(e *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestRouteGroups(t *testing.T) {
	e := newRouter(t, nil)

	w := get(e, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = get(e, "/api/catalog/exams", "")
	assert.Equal(t, "anonymous", w.Body.String())
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))

	w = get(e, "/api/catalog/exams", token(t, ""))
	assert.NotEqual(t, "anonymous", w.Body.String())
	assert.Equal(t, "private, no-cache", w.Header().Get("Cache-Control"))

	w = get(e, "/api/cart/abc", "")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	w = get(e, "/api/orion/orders", "")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestAdminRequiresRole(t *testing.T) {
	e := newRouter(t, nil)

	assert.Equal(t, http.StatusUnauthorized, get(e, "/api/admin/tariffs", "").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/api/admin/tariffs", token(t, "patient")).Code)
	assert.Equal(t, http.StatusOK, get(e, "/api/admin/tariffs", token(t, "admin")).Code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	e := newRouter(t, nil)

	w := get(e, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success": false, "error": "route not found"}`, w.Body.String())
}

func TestRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newRouter(t, reg)

	get(e, "/api/health", "")
	get(e, "/api/nope", "")

	families, err := reg.Gather()
	require.NoError(t, err)
	series := 0
	for _, mf := range families {
		if mf.GetName() == "labportal_http_requests_total" {
			series = len(mf.GetMetric())
		}
	}
	assert.Equal(t, 2, series, "one series per path and status")

	_, err = NewRouter(middleware.NewAuthMiddleware(auth.NewJWTService(secret, ""), "admin"), Handlers{}, RouterConfig{
		MetricsNamespace: "labportal",
		Registerer:       reg,
	})
	assert.Error(t, err, "collectors are registered once per registry")
}
