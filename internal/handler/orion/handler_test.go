package orion

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-portal-api/internal/config"
	orionClient "github.com/jwalitptl/lab-portal-api/internal/orion"
)

const order = `{"data": {
	"id": 981,
	"numero_orden": "A-1001",
	"detallesOrdenes": [{
		"seccion": "BIOQUIMICA",
		"nombre_examen": "GLUCOSA",
		"reportes": [{"detallesReportes": [{"nombre_parametro": "Glucosa basal", "resultado": "92", "unidad_medida": "mg/dL"}]}]
	}]
}}`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// upstream fakes the Orion endpoints the proxy calls.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ordenes", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("numero_orden") == "A-1001" {
			w.Write([]byte(`[{"id": 981, "numero_orden": "A-1001"}]`))
			return
		}
		w.Write([]byte(`{"data": []}`))
	})
	mux.HandleFunc("/ordenes/981", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(order))
	})
	mux.HandleFunc("/ordenes/982", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 982, "detallesOrdenes": []}`))
	})
	mux.HandleFunc("/ordenes/500", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database timeout", http.StatusBadGateway)
	})
	mux.HandleFunc("/ordenes/981/resultados/pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := upstream(t)
	t.Cleanup(srv.Close)

	client, err := orionClient.NewClient(config.OrionConfig{
		BaseURL:         srv.URL,
		Token:           "test-token",
		Timeout:         time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  time.Second,
	}, nil, nil)
	require.NoError(t, err)

	r := gin.New()
	NewHandler(client).RegisterRoutes(r.Group("/api"))
	return r
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestSearchOrders(t *testing.T) {
	r := newEngine(t)

	var found searchResponse
	w := get(t, r, "/api/orion/orders?by=numero_orden&value=A-1001")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &found)
	assert.True(t, found.Found)
	assert.Len(t, found.Orders, 1)

	var none searchResponse
	w = get(t, r, "/api/orion/orders?value=Z-0000")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &none)
	assert.False(t, none.Found, "no match is not an error")

	w = get(t, r, "/api/orion/orders?by=numero_orden")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "search value is required", decode(t, w, nil).Error)

	w = get(t, r, "/api/orion/orders?by=dni&value=1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetResults(t *testing.T) {
	r := newEngine(t)

	w := get(t, r, "/api/orion/orders/981/results")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Found    bool                         `json:"found"`
		Sections map[string][]json.RawMessage `json:"sections"`
	}
	decode(t, w, &body)
	assert.True(t, body.Found)
	assert.Len(t, body.Sections["BIOQUIMICA"], 2)

	w = get(t, r, "/api/orion/orders/982/results")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &body)
	assert.False(t, body.Found)

	w = get(t, r, "/api/orion/orders/404/results")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode(t, w, nil).Success)
}

func TestUpstreamFailurePassesStatus(t *testing.T) {
	r := newEngine(t)

	w := get(t, r, "/api/orion/orders/500")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	env := decode(t, w, nil)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestDownloadPDF(t *testing.T) {
	r := newEngine(t)

	w := get(t, r, "/api/orion/orders/981/pdf")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="resultados-981.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 fake", w.Body.String())

	w = get(t, r, "/api/orion/orders/404/pdf")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
