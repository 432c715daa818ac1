package httpx

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/police-records/registry/internal/shared"
)

// NewValidator returns a validator reporting JSON field names and knowing the
// "phone" rule used by personnel and offender payloads.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return shared.PhonePattern.MatchString(fl.Field().String())
	})
	return v
}
