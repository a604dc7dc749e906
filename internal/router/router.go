package router

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/lab-portal-api/internal/middleware"
	"github.com/jwalitptl/lab-portal-api/pkg/httputil"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handlers are the route groups mounted under /api. Each group gets its own
// auth and caching policy.
type Handlers struct {
	Health  Handler
	Catalog Handler
	Cart    Handler
	Orion   Handler
	Admin   Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        middleware.RateLimiterConfig
	CORSConfig       middleware.CORSConfig
	SizeLimit        middleware.SizeLimitConfig
	Security         middleware.SecurityConfig
	// CatalogMaxAge is the Cache-Control max-age of catalog responses, in seconds.
	CatalogMaxAge    int
	MetricsNamespace string
	Registerer       prometheus.Registerer
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) (*Router, error) {
	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}

	metrics, err := initRouterMetrics(config.MetricsNamespace, config.Registerer)
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
		metrics:  metrics,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		r.metricsMiddleware(),
		middleware.Security(config.Security),
		middleware.CORS(config.CORSConfig),
	)
	if config.RateLimitEnabled {
		engine.Use(middleware.NewRateLimiter(config.RateLimit).RateLimit())
	}
	engine.Use(middleware.SizeLimit(config.SizeLimit))

	engine.NoRoute(func(c *gin.Context) {
		httputil.RespondWithMessage(c, http.StatusNotFound, "route not found")
	})
	return r, nil
}

func (r *Router) Setup() {
	api := r.engine.Group("/api")

	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(api)
	}

	// Anonymous callers see public prices; a valid token switches to the
	// caller's tariff, so those responses must not be shared.
	if r.handlers.Catalog != nil {
		catalog := api.Group("", r.auth.OptionalAuth(), middleware.PublicCache(r.config.CatalogMaxAge))
		r.handlers.Catalog.RegisterRoutes(catalog)
	}

	if r.handlers.Cart != nil {
		cart := api.Group("", r.auth.OptionalAuth(), middleware.NoStore())
		r.handlers.Cart.RegisterRoutes(cart)
	}

	if r.handlers.Orion != nil {
		r.handlers.Orion.RegisterRoutes(api.Group("", middleware.NoStore()))
	}

	if r.handlers.Admin != nil {
		admin := api.Group("/admin", r.auth.RequireAdmin(), middleware.NoStore())
		r.handlers.Admin.RegisterRoutes(admin)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(namespace string, reg prometheus.Registerer) (*routerMetrics, error) {
	m := &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.requestDuration, m.requestTotal} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register http metrics: %w", err)
		}
	}
	return m, nil
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// unmatched paths share one label
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
