package common

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator provides validation utilities
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error returns a combined error wrapping ErrValidation, or nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return NewAppError(CodeInvalid, v.ErrorMessage(), ErrValidation)
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required - Common validation rules
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	}
	return nil
}

func stringValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v != nil {
			return *v, true
		}
	}
	return "", false
}

// LengthBetween checks the rune count of a string field.
func LengthBetween(min, max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		str, ok := stringValue(value)
		if !ok {
			return nil
		}
		n := utf8.RuneCountInString(str)
		if n < min || n > max {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("must be between %d and %d characters", min, max),
			}
		}
		return nil
	}
}

// Matches checks a string field against a pattern.
func Matches(re *regexp.Regexp, description string) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		str, ok := stringValue(value)
		if !ok {
			return &ValidationError{Field: fieldName, Value: value, Message: "must be a string"}
		}
		if !re.MatchString(str) {
			return &ValidationError{Field: fieldName, Value: value, Message: description}
		}
		return nil
	}
}

// FloatBetween checks a float64 field lies within [min, max].
func FloatBetween(min, max float64) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		f, ok := value.(float64)
		if !ok {
			return &ValidationError{Field: fieldName, Value: value, Message: "must be a number"}
		}
		if f < min || f > max {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("must be within [%g, %g]", min, max),
			}
		}
		return nil
	}
}

// MinItems checks the length of a slice-like field reported through a len func.
func MinItems(n int, length func(interface{}) int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		if length(value) < n {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must have at least %d items", n)}
		}
		return nil
	}
}

// IsValidation reports whether err came out of a Validator.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
