package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/casadx/pedidos/pkg/errorbank"
)

// Validator adapts go-playground/validator to echo.Validator, reporting
// failures as validation errors that list the offending json fields.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a Validator that names fields by their json tag.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errorbank.Validation("Datos inválidos", errorbank.WithCause(err))
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(missing) > 0 {
		return errorbank.Validation("Faltan campos requeridos", errorbank.WithDetail("faltantes", missing))
	}
	return errorbank.Validation("Datos inválidos", errorbank.WithDetail("invalidos", invalid))
}
