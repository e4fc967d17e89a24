package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind decodes the JSON body into dst and validates it. On failure it writes
// the error response itself and reports false so handlers can bail early.
func Bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			Error(w, http.StatusBadRequest, "Invalid request body")
			return false
		}

		fields := make(map[string]string)
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, fe := range validationErrs {
				fields[fieldName(fe)] = fieldMessage(fe)
			}
		}
		ValidationFailed(w, fields)
		return false
	}

	return true
}

func fieldName(fe validator.FieldError) string {
	// Field() reports the Go name; request bodies use snake_case json tags.
	return toSnake(fe.Field())
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", toSnake(fe.Field()))
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", toSnake(fe.Field()), fe.Param())
	case "len":
		return fmt.Sprintf("The %s must be %s characters.", toSnake(fe.Field()), fe.Param())
	case "oneof":
		return fmt.Sprintf("The %s must be one of: %s.", toSnake(fe.Field()), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", toSnake(fe.Field()))
	case "min":
		return fmt.Sprintf("The %s must be at least %s characters.", toSnake(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("The %s field is invalid.", toSnake(fe.Field()))
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
