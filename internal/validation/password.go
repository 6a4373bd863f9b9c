package validation

import (
	"unicode"

	"podshare/internal/models"
)

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return models.NewValidationError("password must be at least 12 characters long")
	}
	if len(password) > 72 {
		// bcrypt ignores everything past 72 bytes
		return models.NewValidationError("password must not exceed 72 bytes")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	switch {
	case !upper:
		return models.NewValidationError("password must contain at least one uppercase letter")
	case !lower:
		return models.NewValidationError("password must contain at least one lowercase letter")
	case !digit:
		return models.NewValidationError("password must contain at least one digit")
	case !special:
		return models.NewValidationError("password must contain at least one special character")
	}
	return nil
}
