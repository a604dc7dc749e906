package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/lab-portal-api/pkg/httputil"
)

// Pinger is a dependency readiness depends on (database, redis).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type Handler struct {
	deps    map[string]Pinger
	metrics http.Handler
	timeout time.Duration
}

// NewHandler serves metrics from gatherer; nil uses the default registry.
func NewHandler(deps map[string]Pinger, gatherer prometheus.Gatherer) *Handler {
	metrics := promhttp.Handler()
	if gatherer != nil {
		metrics = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return &Handler{
		deps:    deps,
		metrics: metrics,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("", h.Health)
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
		health.GET("/metrics", h.Metrics)
	}
}

func (h *Handler) Health(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{"status": "healthy"})
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{
		"status": "UP",
		"time":   time.Now().UTC(),
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	ready := true
	for name, dep := range h.deps {
		if err := dep.PingContext(ctx); err != nil {
			checks[name] = "DOWN"
			ready = false
			continue
		}
		checks[name] = "UP"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, httputil.Response{
			Success: false,
			Data:    gin.H{"status": "DOWN", "checks": checks},
			Error:   "dependency unavailable",
		})
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"status": "UP", "checks": checks})
}

func (h *Handler) Metrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}
