package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLen is the shortest admin password accepted.
const MinPasswordLen = 8

// ErrWeakPassword is returned for passwords shorter than MinPasswordLen or
// longer than bcrypt can hash.
var ErrWeakPassword = errors.New("password must be 8 to 72 bytes")

// CheckPassword enforces the admin password policy.
func CheckPassword(plain string) error {
	// bcrypt only reads the first 72 bytes
	if len(plain) < MinPasswordLen || len(plain) > 72 {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword validates plain and returns its bcrypt hash at cost.
func HashPassword(plain string, cost int) (string, error) {
	if err := CheckPassword(plain); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NeedsRehash reports whether hash was made with a cost other than cost,
// so a successful login can upgrade it.
func NeedsRehash(hash string, cost int) bool {
	c, err := bcrypt.Cost([]byte(hash))
	return err != nil || c != cost
}
