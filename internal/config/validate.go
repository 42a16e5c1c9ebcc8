package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields under their configuration keys instead of Go names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"koanf", "yaml"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// ValidateStruct checks the validate tags of v, a struct or a pointer to one. Every failing
// field is reported under its dotted configuration key, relative to v.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}

	errs := make([]error, 0, len(fields))
	for _, fe := range fields {
		errs = append(errs, fmt.Errorf("%s: %s", fieldKey(fe), describe(fe)))
	}
	return errors.Join(errs...)
}

func fieldKey(fe validator.FieldError) string {
	if _, key, ok := strings.Cut(fe.Namespace(), "."); ok {
		return key
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte", "min":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q check, got %v", fe.Tag(), fe.Value())
	}
}
