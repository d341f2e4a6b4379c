package envelopedelivery

import (
	"github.com/go-playground/validator/v10"

	"github.com/go-petr/pet-budget/internal/domain"
	"github.com/go-petr/pet-budget/pkg/web"
)

// ValidEnvelopeName validates whether the trimmed name is non-empty and short enough.
var ValidEnvelopeName validator.Func = func(fl validator.FieldLevel) bool {
	if name, ok := fl.Field().Interface().(string); ok {
		_, err := domain.NormalizeName(name)
		return err == nil
	}

	return false
}

// RegisterValidators registers envelope validation tags and makes field errors use json names.
func RegisterValidators(v *validator.Validate) error {
	v.RegisterTagNameFunc(web.JSONFieldName)

	return v.RegisterValidation("envname", ValidEnvelopeName)
}
