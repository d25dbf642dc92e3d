// Package validation checks user-supplied fields before they reach the store.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

const (
	maxNameLength        = 100
	maxCategoryLength    = 50
	maxDescriptionLength = 500
	dateLayout           = "2006-01-02"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateName checks if a person's name is valid
func ValidateName(name string) error {
	return validateLabel("name", name, 2)
}

// ValidateFamilyName checks a family display name
func ValidateFamilyName(name string) error {
	return validateLabel("familyName", name, 1)
}

// ValidateChildName checks a child's name
func ValidateChildName(name string) error {
	return validateLabel("childName", name, 1)
}

func validateLabel(field, value string, minLen int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ValidationError{Field: field, Message: field + " is required"}
	}
	n := utf8.RuneCountInString(value)
	if n < minLen {
		return ValidationError{Field: field, Message: fmt.Sprintf("%s must be at least %d characters", field, minLen)}
	}
	if n > maxNameLength {
		return ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, maxNameLength)}
	}
	return nil
}

// ValidateDate checks a calendar date in YYYY-MM-DD form
func ValidateDate(field, value string) error {
	if _, err := time.Parse(dateLayout, value); err != nil {
		return ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return nil
}

// ValidateOptionalDate is ValidateDate for a field that may be omitted
func ValidateOptionalDate(field string, value *string) error {
	if value == nil || *value == "" {
		return nil
	}
	return ValidateDate(field, *value)
}

// ValidateAmount checks an amount in minor currency units
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}
	return nil
}

// ValidateCurrency checks an ISO-4217 style three letter code
func ValidateCurrency(code string) error {
	if !currencyRegex.MatchString(code) {
		return ValidationError{Field: "currency", Message: "currency must be a three letter ISO code"}
	}
	return nil
}

// ValidateCategory checks an expense category
func ValidateCategory(category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return ValidationError{Field: "category", Message: "category is required"}
	}
	if utf8.RuneCountInString(category) > maxCategoryLength {
		return ValidationError{Field: "category", Message: fmt.Sprintf("category must be at most %d characters", maxCategoryLength)}
	}
	return nil
}

// ValidateDescription checks an optional expense description
func ValidateDescription(description *string) error {
	if description != nil && utf8.RuneCountInString(*description) > maxDescriptionLength {
		return ValidationError{Field: "description", Message: fmt.Sprintf("description must be at most %d characters", maxDescriptionLength)}
	}
	return nil
}
