package handler

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/airsense/aqiforecast/internal/api/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their query parameter name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// parseFloatParam reads an optional float query parameter. Non-finite
// values are rejected.
func parseFloatParam(q url.Values, name string) (*float64, *models.FieldError) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, &models.FieldError{
			Field:   name,
			Message: fmt.Sprintf("%s must be a valid number", name),
			Code:    "ERR_NUMBER",
		}
	}
	return &v, nil
}

// fieldErrors converts validator output into problem field errors.
func fieldErrors(err error) []models.FieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []models.FieldError{{Message: err.Error(), Code: "ERR_UNKNOWN"}}
	}

	out := make([]models.FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		out = append(out, models.FieldError{
			Field:   fe.Field(),
			Message: errorMessage(fe),
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
		})
	}
	return out
}

func errorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
