package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// StructValidator is a singleton instance of the validator. Field names in messages
// come from json tags when present.
var StructValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}()

// ErrorResponse represents a validation error message.
type ErrorResponse struct {
	FailedField string `json:"failed_field"`
	Tag         string `json:"tag"`
	Value       string `json:"value"`
	Message     string `json:"message"`
}

// ValidateStruct performs validation on a struct.
// It returns a slice of ErrorResponse if validation fails, or nil otherwise.
func ValidateStruct(payload interface{}) []*ErrorResponse {
	err := StructValidator.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []*ErrorResponse{{Tag: "invalid", Message: err.Error()}}
	}
	out := make([]*ErrorResponse, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &ErrorResponse{
			FailedField: fe.StructNamespace(),
			Tag:         fe.Tag(),
			Value:       fmt.Sprintf("%v", fe.Value()),
			Message:     generateValidationMessage(fe),
		})
	}
	return out
}

// generateValidationMessage creates a user-friendly message for a validation error.
func generateValidationMessage(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()
	sized := false
	switch err.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		sized = true
	}

	switch err.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("The %s field is required.", field)
	case "min":
		if sized {
			return fmt.Sprintf("The %s field must have at least %s items/characters.", field, param)
		}
		return fmt.Sprintf("The %s field must be at least %s.", field, param)
	case "max":
		if sized {
			return fmt.Sprintf("The %s field must have at most %s items/characters.", field, param)
		}
		return fmt.Sprintf("The %s field must be at most %s.", field, param)
	case "oneof":
		return fmt.Sprintf("The %s field must be one of: %s.", field, strings.ReplaceAll(param, " ", ", "))
	case "alphanum":
		return fmt.Sprintf("The %s field may only contain alpha-numeric characters.", field)
	case "url":
		return fmt.Sprintf("The %s field must be a valid URL.", field)
	default:
		return fmt.Sprintf("The %s field is not valid (tag: %s).", field, err.Tag())
	}
}

// RespondValidationErrors writes the standard 400 response for failed validation.
func RespondValidationErrors(c *fiber.Ctx, errs []*ErrorResponse) error {
	messages := make([]string, len(errs))
	for i, ve := range errs {
		messages[i] = ve.Message
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":    "Validation failed",
		"details":  errs,
		"messages": messages,
	})
}

// ParseAndValidate is a utility function for Fiber handlers to parse the body and validate it.
// It returns true if parsing and validation are successful, false otherwise.
// If false, it sends the appropriate error response.
func ParseAndValidate(c *fiber.Ctx, payload interface{}) bool {
	if err := c.BodyParser(payload); err != nil {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	if errs := ValidateStruct(payload); errs != nil {
		RespondValidationErrors(c, errs)
		return false
	}
	return true
}
