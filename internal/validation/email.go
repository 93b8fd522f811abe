package validation

import (
	"errors"
	"net/mail"
	"strings"
)

// ValidateEmail checks length and RFC 5322 syntax.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email address is required")
	}
	if len(email) > 254 {
		return errors.New("email address is too long (max 254 characters)")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email address format")
	}
	return nil
}

// ValidateEmpID accepts short alphanumeric employee identifiers with dashes.
func ValidateEmpID(id string) error {
	if id == "" {
		return errors.New("employee id is required")
	}
	if len(id) > 32 {
		return errors.New("employee id is too long (max 32 characters)")
	}
	if strings.IndexFunc(id, func(r rune) bool {
		return !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z')
	}) >= 0 {
		return errors.New("employee id may only contain letters, digits, dashes and underscores")
	}
	return nil
}
