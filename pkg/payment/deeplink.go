// Package payment builds the Yape and Plin deep links shown at checkout. No
// payment is processed; the link only opens the wallet app prefilled.
package payment

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/model"
)

// Methods lists the supported wallets in display order.
var Methods = []model.PaymentMethod{model.PaymentYape, model.PaymentPlin}

func Valid(method model.PaymentMethod) bool {
	for _, m := range Methods {
		if m == method {
			return true
		}
	}
	return false
}

// DeepLink returns scheme://transfer?phone=<digits>&amount=<0.00>&message=<escaped>.
// Non-digits are stripped from phone.
func DeepLink(method model.PaymentMethod, phone string, amount decimal.Decimal, message string) (string, error) {
	if !Valid(method) {
		return "", fmt.Errorf("unsupported payment method %q", method)
	}
	digits := Digits(phone)
	if digits == "" {
		return "", fmt.Errorf("merchant phone %q has no digits", phone)
	}
	if amount.IsNegative() {
		return "", fmt.Errorf("negative amount %s", amount)
	}

	var b strings.Builder
	b.WriteString(string(method))
	b.WriteString("://transfer?phone=")
	b.WriteString(digits)
	b.WriteString("&amount=")
	b.WriteString(amount.StringFixed(2))
	b.WriteString("&message=")
	b.WriteString(escape(message))
	return b.String(), nil
}

// Digits keeps only 0-9.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// escape percent-encodes like encodeURIComponent for the characters that
// matter here: spaces become %20 rather than '+'.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
