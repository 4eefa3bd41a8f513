package user

import (
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError carries one message per offending field, keyed by the
// JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return "invalid registration: " + strings.Join(names, ", ")
}

// basicEmail only requires something@something.something.
var basicEmail = regexp.MustCompile(`^\S+@\S+\.\S+$`)

var fieldMessages = map[string]string{
	"firstName.required":     "First name is required",
	"lastName.required":      "Last name is required",
	"email.required":         "Email is required",
	"email.basic_email":      "Enter a valid email address",
	"phone.required":         "Phone number is required",
	"address.required":       "Address is required",
	"nicNumber.required":     "NIC/Passport is required",
	"userType.oneof":         "User type must be user or agent",
	"occupation.required_if": "Occupation is required",
	"company.required_if":    "Company is required",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("basic_email", func(fl validator.FieldLevel) bool {
		return basicEmail.MatchString(fl.Field().String())
	})
	return v
}

func toValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		if _, seen := out.Fields[fe.Field()]; !seen {
			out.Fields[fe.Field()] = msg
		}
	}
	return out
}
