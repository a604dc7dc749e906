package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-portal-api/pkg/httputil"
	"github.com/jwalitptl/lab-portal-api/pkg/metrics"
)

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadiness(t *testing.T) {
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	w := serve(NewHandler(map[string]Pinger{"database": up, "redis": up}, nil), "/api/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(NewHandler(map[string]Pinger{"database": up, "redis": down}, nil), "/api/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	checks := resp.Data.(map[string]interface{})["checks"].(map[string]interface{})
	assert.Equal(t, "DOWN", checks["redis"])
	assert.Equal(t, "UP", checks["database"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("labportal", reg)
	m.PriceResolutions.WithLabelValues("tariff").Inc()

	w := serve(NewHandler(nil, reg), "/api/health/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `labportal_price_resolutions_total{source="tariff"} 1`)
}
