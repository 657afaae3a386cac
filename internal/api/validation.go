package api

import (
	"errors" // Error inspection
	"fmt"    // Message formatting

	"github.com/go-playground/validator/v10" // Binding validation errors
)

// formatValidationError turns binding errors into readable messages
func formatValidationError(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{"malformed JSON body"}
	}
	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			errs = append(errs, fmt.Sprintf("%s is required", field))
		case "email":
			errs = append(errs, fmt.Sprintf("%s must be a valid email", field))
		case "min":
			errs = append(errs, fmt.Sprintf("%s must have minimum length %s", field, e.Param()))
		case "max":
			errs = append(errs, fmt.Sprintf("%s must have maximum length %s", field, e.Param()))
		default:
			errs = append(errs, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
		}
	}
	return errs
}
