package auth

import (
	"errors"
	"sync"
	"unicode"

	"github.com/finsec-io/finsec-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var ErrWeakPassword = errors.New("password must be at least 8 characters and mix upper case, lower case, digits and symbols")

// dummyHash is compared against when no user matches, so a lookup miss costs
// the same as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("finsec-timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
})

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword reports whether plaintext matches the user's stored hash.
// A nil user still performs a full comparison.
func VerifyPassword(user *models.User, plaintext string) bool {
	if user == nil || user.PasswordHash == "" {
		bcrypt.CompareHashAndPassword(dummyHash(), []byte(plaintext))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext)) == nil
}

// CheckPasswordStrength enforces the password policy for new credentials.
func CheckPasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !(hasUpper && hasLower && hasDigit && hasSymbol) {
		return ErrWeakPassword
	}
	return nil
}
