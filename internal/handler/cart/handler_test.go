package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-portal-api/internal/email"
	"github.com/jwalitptl/lab-portal-api/internal/middleware"
	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository/repotest"
	cartService "github.com/jwalitptl/lab-portal-api/internal/service/cart"
	"github.com/jwalitptl/lab-portal-api/internal/service/pricing"
)

const cartID = "browser-cart-42"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type stubNotifier struct {
	err  error
	sent []email.Payload
}

func (n *stubNotifier) Send(ctx context.Context, payload email.Payload) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, payload)
	return nil
}

type fixture struct {
	engine   *gin.Engine
	notifier *stubNotifier
	exam     *model.Exam
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())
	ctx := context.Background()

	store := repotest.NewStore()
	base := &model.Tariff{Name: "Base", Active: true}
	require.NoError(t, store.Tariffs().Create(ctx, base))
	require.NoError(t, store.References().Create(ctx, &model.Reference{Name: "Public", DefaultTariffID: &base.ID, Active: true}))

	f := &fixture{notifier: &stubNotifier{}}
	f.exam = store.AddExam(&model.Exam{Name: "Hemograma", Active: true})
	require.NoError(t, store.Tariffs().UpsertPrice(ctx, &model.TariffPrice{
		TariffID: base.ID,
		ExamID:   f.exam.ID,
		Price:    decimal.RequireFromString("27.50"),
	}))

	resolver := pricing.NewResolver(store.References(), store.Tariffs(), store.Exams(), pricing.Options{
		PublicReference: "Public",
		BaseTariff:      "Base",
	}, nil, nil)
	svc := cartService.NewService(cartService.NewMemoryStore(time.Hour), resolver, store.Exams(), f.notifier, cartService.Config{
		MerchantPhone: "987654321",
		Message:       "Pedido",
	}, nil, nil)

	f.engine = gin.New()
	f.engine.Use(func(c *gin.Context) {
		if id, err := uuid.Parse(c.GetHeader("X-Test-User")); err == nil {
			c.Set(middleware.ContextUserID, id)
		}
	})
	NewHandler(svc).RegisterRoutes(f.engine.Group("/api"))
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	return f.doAs(t, nil, method, path, body)
}

func (f *fixture) doAs(t *testing.T, user *uuid.UUID, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("X-Test-User", user.String())
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

var (
	patient = map[string]string{
		"full_name":       "Ana Quispe",
		"document_number": "45678912",
		"phone":           "987111222",
		"email":           "ana@example.pe",
	}
	schedule = map[string]string{
		"date":    "2026-10-20",
		"time":    "08:00",
		"address": "Av. Arequipa 123",
	}
)

func TestCartFlow(t *testing.T) {
	f := newFixture(t)
	base := "/api/cart/" + cartID

	status, env := f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status)
	var cart model.Cart
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	assert.Equal(t, model.CartEmpty, cart.State)

	status, _ = f.do(t, http.MethodPost, base+"/items", map[string]interface{}{"exam_id": f.exam.ID})
	require.Equal(t, http.StatusCreated, status)
	status, env = f.do(t, http.MethodPost, base, map[string]interface{}{
		"action": "add-item",
		"data":   map[string]interface{}{"exam_id": f.exam.ID},
	})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	status, _ = f.do(t, http.MethodPut, base+"/patient", patient)
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodPut, base+"/schedule", schedule)
	require.Equal(t, http.StatusOK, status)

	status, env = f.do(t, http.MethodPost, base+"/checkout", map[string]string{"payment_method": "yape"})
	require.Equal(t, http.StatusOK, status, env.Error)
	var result model.CheckoutResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, model.CartCompleted, result.State)
	assert.True(t, result.Total.Equal(decimal.RequireFromString("55")))
	assert.Contains(t, result.PaymentLink, "yape://transfer?phone=987654321&amount=55.00&message=Pedido%20LAB-")
	require.Len(t, f.notifier.sent, 1)

	_, env = f.do(t, http.MethodGet, base, nil)
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	assert.Empty(t, cart.Items, "completed carts are purged")
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	base := "/api/cart/" + cartID
	f.do(t, http.MethodPost, base+"/items", map[string]interface{}{"exam_id": f.exam.ID})
	f.notifier.err = errors.New("smtp down")

	status, env := f.do(t, http.MethodPost, base, map[string]interface{}{
		"action": "checkout",
		"data": map[string]interface{}{
			"payment_method": "plin",
			"patient":        patient,
			"schedule":       schedule,
		},
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "please try again")

	_, env = f.do(t, http.MethodGet, base, nil)
	var cart model.Cart
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	assert.Equal(t, model.CartPopulated, cart.State)
	assert.Len(t, cart.Items, 1)
}

func TestCartValidation(t *testing.T) {
	f := newFixture(t)
	base := "/api/cart/" + cartID

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"bad cart id", http.MethodGet, "/api/cart/x", nil, http.StatusBadRequest},
		{"missing exam id", http.MethodPost, base + "/items", map[string]string{}, http.StatusBadRequest},
		{"unknown exam", http.MethodPost, base + "/items", map[string]interface{}{"exam_id": uuid.New()}, http.StatusNotFound},
		{"bad payment method", http.MethodPost, base + "/checkout", map[string]string{"payment_method": "paypal"}, http.StatusBadRequest},
		{"invalid patient email", http.MethodPut, base + "/patient", map[string]string{
			"full_name": "Ana", "document_number": "1", "phone": "987111222", "email": "nope",
		}, http.StatusBadRequest},
		{"missing action", http.MethodPost, base, map[string]string{}, http.StatusBadRequest},
		{"unknown action", http.MethodPost, base, map[string]string{"action": "pay-now"}, http.StatusBadRequest},
		{"bad exam id in path", http.MethodDelete, base + "/items/123", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := f.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, status)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestCartIsScopedToItsUser(t *testing.T) {
	f := newFixture(t)
	base := "/api/cart/" + cartID
	owner, other := uuid.New(), uuid.New()

	status, _ := f.doAs(t, &owner, http.MethodPost, base+"/items", map[string]interface{}{"exam_id": f.exam.ID})
	require.Equal(t, http.StatusCreated, status)

	for _, user := range []*uuid.UUID{nil, &other} {
		status, _ = f.doAs(t, user, http.MethodGet, base, nil)
		assert.Equal(t, http.StatusNotFound, status)
		status, _ = f.doAs(t, user, http.MethodDelete, base, nil)
		assert.Equal(t, http.StatusNotFound, status)
		status, _ = f.doAs(t, user, http.MethodPost, base+"/checkout", map[string]string{"payment_method": "yape"})
		assert.Equal(t, http.StatusNotFound, status)
	}

	status, env := f.doAs(t, &owner, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status)
	var cart model.Cart
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	assert.Len(t, cart.Items, 1)
}
