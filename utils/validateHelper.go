package utils

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldViolation is one failed struct rule, addressed by its json path (e.g. "products[2].name").
type FieldViolation struct {
	Field string
	Tag   string
	Param string
}

func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs the `validate` tags of s and returns the violations in declaration order.
// A non-validation failure (e.g. s is not a struct) is returned as error.
func ValidateStruct(s any) ([]FieldViolation, error) {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil, nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, err
	}
	return ProcessValidationErrors(validationErrors), nil
}

func ProcessValidationErrors(validationErrors validator.ValidationErrors) []FieldViolation {
	out := make([]FieldViolation, 0, len(validationErrors))
	for _, ve := range validationErrors {
		field := ve.Namespace()
		// drop the root struct name
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, FieldViolation{
			Field: field,
			Tag:   ve.Tag(),
			Param: ve.Param(),
		})
	}
	return out
}
