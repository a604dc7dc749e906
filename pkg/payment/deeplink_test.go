package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-portal-api/internal/model"
)

func TestDeepLink(t *testing.T) {
	tests := []struct {
		name    string
		method  model.PaymentMethod
		phone   string
		amount  string
		message string
		want    string
	}{
		{
			name:    "yape",
			method:  model.PaymentYape,
			phone:   "+51 987 654 321",
			amount:  "150",
			message: "Pedido LAB-123",
			want:    "yape://transfer?phone=51987654321&amount=150.00&message=Pedido%20LAB-123",
		},
		{
			name:    "plin rounds to cents",
			method:  model.PaymentPlin,
			phone:   "987654321",
			amount:  "80.505",
			message: "Análisis & perfil",
			want:    "plin://transfer?phone=987654321&amount=80.51&message=An%C3%A1lisis%20%26%20perfil",
		},
		{
			name:   "empty message",
			method: model.PaymentYape,
			phone:  "987-654-321",
			amount: "0",
			want:   "yape://transfer?phone=987654321&amount=0.00&message=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeepLink(tt.method, tt.phone, decimal.RequireFromString(tt.amount), tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeepLink_Invalid(t *testing.T) {
	_, err := DeepLink("visa", "987654321", decimal.NewFromInt(1), "")
	assert.Error(t, err)

	_, err = DeepLink(model.PaymentYape, "n/a", decimal.NewFromInt(1), "")
	assert.Error(t, err)

	_, err = DeepLink(model.PaymentYape, "987654321", decimal.NewFromInt(-1), "")
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(model.PaymentYape))
	assert.True(t, Valid(model.PaymentPlin))
	assert.False(t, Valid("YAPE"))
}
