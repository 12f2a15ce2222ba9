package auth

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	phonePattern          = regexp.MustCompile(`^[\d\s\-\+\(\)]{10,15}$`)
	businessNumberPattern = regexp.MustCompile(`^[A-Za-z0-9]{9,15}$`)
	obrNumberPattern      = regexp.MustCompile(`^[A-Za-z0-9]{5,20}$`)
)

// NewValidator returns a validator that knows the account field rules and
// reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("strong_password", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("business_number", func(fl validator.FieldLevel) bool {
		return businessNumberPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("obr_number", func(fl validator.FieldLevel) bool {
		return obrNumberPattern.MatchString(fl.Field().String())
	})
	return v
}

func isStrongPassword(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
