package validation

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"dday-scheduler/internal/common/errors"
)

// Validator accumulates validation errors
type Validator struct {
	errors []error
	prefix string
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]error, 0),
	}
}

// NewValidatorWithPrefix creates a new validator with a prefix for error messages
func NewValidatorWithPrefix(prefix string) *Validator {
	return &Validator{
		errors: make([]error, 0),
		prefix: prefix,
	}
}

// RequireString validates that a string is not empty
func (v *Validator) RequireString(value, name string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.addError("%s is required", name)
	}
	return v
}

// RequirePositive validates that an integer is positive
func (v *Validator) RequirePositive(value int, name string) *Validator {
	if value <= 0 {
		v.addError("%s must be positive", name)
	}
	return v
}

// RequirePositiveDuration validates that a duration is greater than zero
func (v *Validator) RequirePositiveDuration(value time.Duration, name string) *Validator {
	if value <= 0 {
		v.addError("%s must be a positive duration", name)
	}
	return v
}

// RequireOneOf validates that a value is one of the allowed values
func (v *Validator) RequireOneOf(value string, allowed []string, name string) *Validator {
	if value == "" {
		v.addError("%s is required", name)
		return v
	}

	for _, a := range allowed {
		if value == a {
			return v
		}
	}

	v.addError("%s must be one of: %s", name, strings.Join(allowed, ", "))
	return v
}

// RequireMaxLength validates that a string has a maximum length
func (v *Validator) RequireMaxLength(value string, maxLength int, name string) *Validator {
	if len(value) > maxLength {
		v.addError("%s must be at most %d characters long", name, maxLength)
	}
	return v
}

// RequireRange validates that a value is within a range
func (v *Validator) RequireRange(value, min, max int, name string) *Validator {
	if value < min || value > max {
		v.addError("%s must be between %d and %d", name, min, max)
	}
	return v
}

// RequireMatch validates that a string matches a regular expression
func (v *Validator) RequireMatch(value string, pattern *regexp.Regexp, name, description string) *Validator {
	if !pattern.MatchString(value) {
		v.addError("%s must be %s", name, description)
	}
	return v
}

// RequireUnique validates that no value appears twice
func (v *Validator) RequireUnique(values []string, name string) *Validator {
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		if _, dup := seen[value]; dup {
			v.addError("%s contains duplicate %q", name, value)
			continue
		}
		seen[value] = struct{}{}
	}
	return v
}

// Validate runs a custom validation function
func (v *Validator) Validate(fn func() error) *Validator {
	if err := fn(); err != nil {
		v.errors = append(v.errors, err)
	}
	return v
}

// ValidateIf runs a validation function if a condition is true
func (v *Validator) ValidateIf(condition bool, fn func() error) *Validator {
	if condition {
		return v.Validate(fn)
	}
	return v
}

// addError adds an error with optional prefix
func (v *Validator) addError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if v.prefix != "" {
		msg = fmt.Sprintf("%s: %s", v.prefix, msg)
	}
	v.errors = append(v.errors, stderrors.New(msg))
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []error {
	return v.errors
}

// Error returns a validation AppError wrapping every collected error, or nil
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}

	parts := make([]string, len(v.errors))
	for i, err := range v.errors {
		parts[i] = err.Error()
	}

	appErr := errors.ValidationError(strings.Join(parts, "; "))
	appErr.Cause = stderrors.Join(v.errors...)
	return appErr
}
