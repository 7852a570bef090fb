package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Input length limits
const (
	MaxNameLength  = 255
	MaxEmailLength = 320 // RFC 5321: 64 (local) + 1 (@) + 255 (domain)
)

// ValidateName checks a resource name (list, source, field) before it is sent.
func ValidateName(name, label string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name is required", label)
	}
	if length := utf8.RuneCountInString(name); length > MaxNameLength {
		return fmt.Errorf("%s name exceeds maximum length of %d characters (got %d)", label, MaxNameLength, length)
	}
	return nil
}

// ValidateEmail checks that email is a single bare address.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email address is required")
	}
	if length := utf8.RuneCountInString(email); length > MaxEmailLength {
		return fmt.Errorf("email exceeds maximum length of %d characters (got %d)", MaxEmailLength, length)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email %q: %w", email, err)
	}
	// "Ada <ada@example.com>" parses too; recipient lists need the bare form
	if addr.Address != email {
		return fmt.Errorf("invalid email %q: must be a bare address like %s", email, addr.Address)
	}
	return nil
}

// ValidateRecipients checks every address and reports the first bad one.
func ValidateRecipients(emails []string) error {
	if len(emails) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, email := range emails {
		if err := ValidateEmail(email); err != nil {
			return err
		}
	}
	return nil
}
