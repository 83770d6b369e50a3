package domain

import (
	"math"
	"strings"
)

// ValidateString rejects empty or whitespace-only values and returns the
// trimmed string.
func ValidateString(value, field string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", FieldError{Field: field, Reason: "must be a non-empty string"}
	}
	return trimmed, nil
}

// ValidatePositiveNumber rejects non-finite or non-positive values.
func ValidatePositiveNumber(value float64, field string) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, FieldError{Field: field, Reason: "must be a finite number"}
	}
	if value <= 0 {
		return 0, FieldError{Field: field, Reason: "must be a positive number"}
	}
	return value, nil
}

// ValidateDate parses an optional YYYY-MM-DD date. An empty value is not an
// error: dates are optional, and the zero Date is returned.
func ValidateDate(value, field string) (Date, error) {
	if strings.TrimSpace(value) == "" {
		return Date{}, nil
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return Date{}, FieldError{Field: field, Reason: "must use the YYYY-MM-DD format (example: 2023-12-31)"}
	}
	return parsed, nil
}
