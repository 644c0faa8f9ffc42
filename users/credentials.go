package users

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/crypto/bcrypt"
)

// CredentialFormat identifies how a stored secret was produced
type CredentialFormat string

const (
	// FormatLegacy is the 32-bit folding hash written by every earlier
	// version of the application. It is not a cryptographic hash and is kept
	// only so existing records continue to verify.
	FormatLegacy CredentialFormat = "legacy"

	// FormatBcrypt stores a bcrypt hash. Opt-in for new secrets only.
	FormatBcrypt CredentialFormat = "bcrypt"
)

// Valid reports whether f is a known format
func (f CredentialFormat) Valid() bool {
	return f == FormatLegacy || f == FormatBcrypt
}

// LegacyHash folds the UTF-16 code units of secret into a signed 32-bit
// integer (h = h*31 + c, wrapping at every step) and returns its base-10
// representation.
func LegacyHash(secret string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(secret)) {
		h = (h << 5) - h + int32(c)
	}
	return strconv.FormatInt(int64(h), 10)
}

// FormatOf reports the format of a stored secret
func FormatOf(stored string) CredentialFormat {
	if strings.HasPrefix(stored, "$2") {
		return FormatBcrypt
	}
	return FormatLegacy
}

// HashSecret produces the stored form of secret using format
func HashSecret(format CredentialFormat, secret string) (string, error) {
	switch format {
	case FormatBcrypt:
		bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		return string(bytes), err
	default:
		return LegacyHash(secret), nil
	}
}

// CheckSecret verifies secret against a stored value of either format
func CheckSecret(secret, stored string) bool {
	if stored == "" {
		return false
	}
	if FormatOf(stored) == FormatBcrypt {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
	}
	return LegacyHash(secret) == stored
}
