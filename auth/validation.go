package auth

import (
	"regexp"
	"strings"
	"unicode/utf16"
)

const (
	MinIdentityKeyLength = 3
	MinSecretLength      = 6
)

// emailPattern is the loose local@domain.tld shape accepted at registration
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator holds the input rules shared by both backends
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProfileFields checks presence and lengths of a registration.
// requireKey is false for backends that identify users by email alone.
func (v *Validator) ValidateProfileFields(p Profile, requireKey bool) error {
	if (requireKey && p.IdentityKey == "") || p.Secret == "" || p.Email == "" || p.DisplayName == "" {
		return ValidationFailed("profile", "all fields are required")
	}
	if requireKey && length(p.IdentityKey) < MinIdentityKeyLength {
		return ValidationFailed("identityKey", "username must be at least 3 characters")
	}
	if length(p.Secret) < MinSecretLength {
		return ValidationFailed("secret", "password must be at least 6 characters")
	}
	return nil
}

// ValidateEmail checks the loose local@domain.tld shape
func (v *Validator) ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ValidationFailed("email", "invalid email")
	}
	return nil
}

// ValidateNewSecret checks a replacement secret
func (v *Validator) ValidateNewSecret(secret string) error {
	if length(secret) < MinSecretLength {
		return ValidationFailed("newSecret", "new password must be at least 6 characters")
	}
	return nil
}

// ValidateCredentials rejects blank login submissions
func (v *Validator) ValidateCredentials(c Credentials) error {
	if strings.TrimSpace(c.Key) == "" || c.Secret == "" {
		return ValidationFailed("credentials", "username and password are required")
	}
	return nil
}

// length counts UTF-16 code units, which is how the browser front end
// measures the same strings.
func length(s string) int {
	return len(utf16.Encode([]rune(s)))
}
