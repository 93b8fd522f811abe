package validation

import (
	"errors"
	"strings"
)

var weakPatterns = []string{
	"password", "123456", "qwerty", "letmein", "welcome", "changeme",
}

// ValidatePassword enforces 12 to 72 bytes (bcrypt truncates beyond 72)
// and rejects a few well-known patterns.
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	if len(password) > 72 {
		return errors.New("password must not exceed 72 bytes")
	}

	lower := strings.ToLower(password)
	for _, p := range weakPatterns {
		if strings.Contains(lower, p) {
			return errors.New("password is too common, please choose a stronger one")
		}
	}
	return nil
}
