package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/pkg/payment"
)

// Register adds the custom tags and reports json field names in errors.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	custom := map[string]validator.Func{
		"payment_method": paymentMethod,
		"digits":         digits,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %q validator: %w", tag, err)
		}
	}
	return nil
}

func paymentMethod(fl validator.FieldLevel) bool {
	return payment.Valid(model.PaymentMethod(fl.Field().String()))
}

// digits accepts a phone-like string holding at least 6 digits once
// spaces, dashes and a leading + are dropped.
func digits(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return true
	}
	s = strings.TrimPrefix(s, "+")
	n := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			n++
		case r == ' ' || r == '-':
		default:
			return false
		}
	}
	return n >= 6
}

var messages = map[string]string{
	"required":       "is required",
	"email":          "must be a valid email",
	"min":            "is too small",
	"max":            "is too large",
	"uuid":           "must be a uuid",
	"oneof":          "has an unsupported value",
	"payment_method": "must be yape or plin",
	"digits":         "must be a phone number",
}

// Describe turns binding errors into one readable line, e.g.
// "email must be a valid email; phone is required".
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed %q validation", fe.Tag())
		}
		parts = append(parts, fe.Field()+" "+msg)
	}
	return strings.Join(parts, "; ")
}
