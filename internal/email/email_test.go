package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/lab-portal-api/internal/config"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

func samplePayload() Payload {
	return Payload{
		FieldOrderReference: "LAB-ABC123",
		FieldPatientName:    "Ana Quispe",
		FieldPatientEmail:   "ana@example.com",
		FieldExams:          "Hemograma x1 - S/ 35.00",
		FieldTotal:          "35.00",
		FieldPaymentMethod:  "yape",
	}
}

func TestPayloadValidate(t *testing.T) {
	require.NoError(t, samplePayload().Validate())

	p := samplePayload()
	delete(p, FieldTotal)
	p[FieldPatientName] = "  "
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), FieldTotal)
	assert.Contains(t, err.Error(), FieldPatientName)
}

func TestPayloadRender(t *testing.T) {
	out := Payload{"b": "2", "a": "1", "c": ""}.Render()
	assert.Equal(t, "a: 1\nb: 2\n", out)
}

func TestTemplateNotifier_Send(t *testing.T) {
	var got templateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	n := NewTemplateNotifier(config.TemplateConfig{
		Endpoint:    srv.URL,
		ServiceID:   "service_lab",
		TemplateID:  "template_order",
		PublicKey:   "public-key",
		AccessToken: "private-key",
	}, "pedidos@lab.example", 0)

	require.NoError(t, n.Send(context.Background(), samplePayload()))
	assert.Equal(t, "service_lab", got.ServiceID)
	assert.Equal(t, "template_order", got.TemplateID)
	assert.Equal(t, "public-key", got.UserID)
	assert.Equal(t, "private-key", got.AccessToken)
	assert.Equal(t, "pedidos@lab.example", got.TemplateParams[FieldToEmail])
	assert.Equal(t, "LAB-ABC123", got.TemplateParams[FieldOrderReference])
}

func TestTemplateNotifier_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "The user ID is invalid", http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewTemplateNotifier(config.TemplateConfig{Endpoint: srv.URL}, "", 0)
	err := n.Send(context.Background(), samplePayload())
	require.Error(t, err)

	appErr, ok := apperrors.AsApp(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrUpstream, appErr.Kind)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Contains(t, err.Error(), "user ID is invalid")
}

func TestTemplateNotifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewTemplateNotifier(config.TemplateConfig{Endpoint: url}, "", 0).Send(context.Background(), samplePayload())
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrUpstream))
}

func TestTemplateNotifier_InvalidPayload(t *testing.T) {
	err := NewTemplateNotifier(config.TemplateConfig{Endpoint: "http://unused"}, "", 0).Send(context.Background(), Payload{})
	assert.True(t, apperrors.IsKind(err, apperrors.ErrBadRequest))
}

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSMTPNotifier_Send(t *testing.T) {
	sender := &fakeSender{}
	n := NewSMTPNotifier(config.SMTPConfig{From: "web@lab.example", Subject: "Pedido"}, "pedidos@lab.example").WithSender(sender)

	require.NoError(t, n.Send(context.Background(), samplePayload()))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"pedidos@lab.example"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"ana@example.com"}, msg.GetHeader("Cc"))
	assert.Equal(t, []string{"Pedido LAB-ABC123"}, msg.GetHeader("Subject"))
}

func TestSMTPNotifier_Failure(t *testing.T) {
	sender := &fakeSender{err: errors.New("dial tcp: connection refused")}
	n := NewSMTPNotifier(config.SMTPConfig{}, "pedidos@lab.example").WithSender(sender)

	err := n.Send(context.Background(), samplePayload())
	assert.True(t, apperrors.IsKind(err, apperrors.ErrUpstream))
}
