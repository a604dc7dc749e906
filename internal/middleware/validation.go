package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	labvalidator "github.com/jwalitptl/lab-portal-api/pkg/validator"
)

// RegisterValidators installs the custom binding tags (payment_method,
// digits) on gin's validator. Call once before serving.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator %T", binding.Validator.Engine())
	}
	return labvalidator.Register(v)
}
