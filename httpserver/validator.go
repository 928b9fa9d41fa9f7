package httpserver

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RequestError collects the request fields that failed validation. It
// is served as a 400 with one InvalidParam per field.
type RequestError struct {
	Params []InvalidParam
}

// Error lists the names of the fields that failed validation.
func (e *RequestError) Error() string {
	names := make([]string, 0, len(e.Params))
	for _, p := range e.Params {
		names = append(names, p.Name)
	}

	return "invalid request: " + strings.Join(names, ", ")
}

// requestValidator adapts go-playground/validator to echo's Validator
// seam, reporting failures field by field under their json names.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]

		if name == "-" {
			return ""
		}

		return name
	})

	return &requestValidator{v: v}
}

// Validate implements echo.Validator.
func (rv *requestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}

	reqErr := &RequestError{Params: make([]InvalidParam, 0, len(vErrs))}

	for _, vErr := range vErrs {
		reqErr.Params = append(reqErr.Params, InvalidParam{
			Name:   vErr.Field(),
			Reason: fmt.Sprintf("failed '%s' check", vErr.Tag()),
		})
	}

	return reqErr
}
