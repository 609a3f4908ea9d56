package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used to parse phone numbers written without a country code.
const DefaultRegion = "US"

// Validator wraps go-playground/validator with the portal's custom rules and
// converts its output into Errors keyed by JSON field name.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

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

	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})

	return &Validator{v: v}
}

// ValidPhone reports whether s parses as a valid phone number.
func ValidPhone(s string) bool {
	num, err := phonenumbers.Parse(s, DefaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// NormalizePhone formats s in E.164. Unparseable input is returned unchanged.
func NormalizePhone(s string) string {
	num, err := phonenumbers.Parse(s, DefaultRegion)
	if err != nil {
		return s
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// Struct validates s and returns every failure. Non-validation errors (for
// example a nil pointer) are reported on "base".
func (v *Validator) Struct(s interface{}) Errors {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{{Field: "base", Code: CodeInvalid, Message: err.Error()}}
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		code, msg := describe(fe)
		out.Add(fe.Field(), code, msg)
	}
	return out
}

func describe(fe validator.FieldError) (string, string) {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required", "required_if", "required_without":
		return CodeRequired, "can't be blank"
	case "email":
		return CodeInvalid, "must be a valid email address"
	case "phone":
		return CodeInvalid, "is not a valid phone number"
	case "http_url", "url":
		return CodeInvalid, "must be a valid http or https URL"
	case "oneof":
		return CodeInvalid, "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "min", "gte":
		if isString {
			return CodeTooShort, fmt.Sprintf("is too short (minimum is %s characters)", fe.Param())
		}
		return CodeRange, "must be greater than or equal to " + fe.Param()
	case "max", "lte":
		if isString {
			return CodeTooLong, fmt.Sprintf("is too long (maximum is %s characters)", fe.Param())
		}
		return CodeRange, "must be less than or equal to " + fe.Param()
	case "nefield":
		return CodeInvalid, "must be different from " + fe.Param()
	default:
		return CodeInvalid, "is invalid"
	}
}
