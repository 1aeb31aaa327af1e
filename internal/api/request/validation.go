// Package request decodes and validates API request bodies.
package request

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/scheduler"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := scheduler.ParseSchedule(fl.Field().String())
		return err == nil
	})
}

// Decode reads a JSON body into v and validates it. Validation failures are
// returned as *models.ValidationError naming the offending field.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.NewValidationError("body", "invalid JSON: %v", err)
	}
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func fieldError(fe validator.FieldError) *models.ValidationError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return models.NewValidationError(field, "is required")
	case "min":
		return models.NewValidationError(field, "must be at least %s", fe.Param())
	case "max":
		return models.NewValidationError(field, "must be at most %s", fe.Param())
	case "oneof":
		return models.NewValidationError(field, "must be one of: %s", fe.Param())
	case "cron":
		return models.NewValidationError(field, "must be a 5-field cron expression (minute hour day-of-month month day-of-week)")
	default:
		return models.NewValidationError(field, "failed %s validation", fe.Tag())
	}
}
