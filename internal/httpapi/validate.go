package httpapi

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"delivery-dispatch/internal/workers"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("in_phone", func(fl validator.FieldLevel) bool {
		return workers.ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("in_email", func(fl validator.FieldLevel) bool {
		return workers.ValidEmail(fl.Field().String())
	})
	return v
}

// firstInvalid returns the json name of the first field that failed validation.
func firstInvalid(err error) (string, bool) {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "", false
	}
	return errs[0].Field(), true
}

// validationMessage picks the client-facing message for the first failing
// field, falling back to def for fields without a dedicated message.
func validationMessage(err error, messages map[string]string, def string) string {
	field, ok := firstInvalid(err)
	if !ok {
		return def
	}
	if msg, ok := messages[field]; ok {
		return msg
	}
	return def
}
