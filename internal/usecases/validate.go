package usecases

import (
	"regexp"

	"waflow/internal/entities"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// E.164-like: optional +, no leading zero, up to 15 digits.
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// ValidCaptureInput applies a capture-data validation rule to raw user
// input. An unknown rule behaves like none.
func ValidCaptureInput(input string, rule entities.ValidationRule) bool {
	switch rule {
	case entities.ValidateEmail:
		return emailPattern.MatchString(input)
	case entities.ValidatePhone:
		return phonePattern.MatchString(input)
	default:
		return input != ""
	}
}
