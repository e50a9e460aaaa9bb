// Package validation holds small per-field checks for hand-parsed forms and query strings.
package validation

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Validator is a function that validates a string value and returns an error message if invalid.
type Validator func(v string) string

// Required validates that a field is not empty and does not exceed maxLen characters.
// Uses rune count for proper Unicode support.
func Required(fieldName string, maxLen int) Validator {
	return func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return fieldName + " is required."
		}
		if utf8.RuneCountInString(v) > maxLen {
			return fmt.Sprintf("%s cannot exceed %d characters.", fieldName, maxLen)
		}
		return ""
	}
}

// IntRange validates that a field is a valid integer between minVal and maxVal.
func IntRange(fieldName string, minVal, maxVal int) Validator {
	return func(v string) string {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fieldName + " must be a number."
		}
		if i < minVal || i > maxVal {
			return fmt.Sprintf("%s must be between %d and %d.", fieldName, minVal, maxVal)
		}
		return ""
	}
}

// NonNegative validates a decimal number that is zero or more.
func NonNegative(fieldName string) Validator {
	return func(v string) string {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fieldName + " must be a number."
		}
		if f < 0 {
			return fieldName + " cannot be negative."
		}
		return ""
	}
}

// Email validates a bare email address.
func Email() Validator {
	return func(v string) string {
		v = strings.TrimSpace(v)
		addr, err := mail.ParseAddress(v)
		if err != nil || addr.Address != v {
			return "Enter a valid email address."
		}
		return ""
	}
}

// Date validates a date in the given layout.
func Date(fieldName, layout string) Validator {
	return func(v string) string {
		if _, err := time.Parse(layout, strings.TrimSpace(v)); err != nil {
			return fieldName + " must be a date like " + layout + "."
		}
		return ""
	}
}

// Optional skips the wrapped validators when the value is blank.
func Optional(validators ...Validator) Validator {
	return func(v string) string {
		if strings.TrimSpace(v) == "" {
			return ""
		}
		for _, fn := range validators {
			if msg := fn(v); msg != "" {
				return msg
			}
		}
		return ""
	}
}

// FieldValidator provides a fluent API for validating multiple fields.
type FieldValidator struct {
	errors map[string]string
}

// New creates a new FieldValidator instance.
func New() *FieldValidator {
	return &FieldValidator{errors: make(map[string]string)}
}

// Validate validates a field with one or more validators.
// It stops at the first error for each field.
func (fv *FieldValidator) Validate(field, value string, validators ...Validator) *FieldValidator {
	for _, v := range validators {
		if err := v(value); err != "" {
			fv.errors[field] = err
			break
		}
	}
	return fv
}

// Add records an error for field unless one is already present.
func (fv *FieldValidator) Add(field, msg string) *FieldValidator {
	if _, ok := fv.errors[field]; !ok && msg != "" {
		fv.errors[field] = msg
	}
	return fv
}

// Errors returns the accumulated validation errors.
func (fv *FieldValidator) Errors() map[string]string {
	return fv.errors
}

// Valid reports whether no errors were recorded.
func (fv *FieldValidator) Valid() bool {
	return len(fv.errors) == 0
}
