package hash

import (
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var ErrWeakPassword = errors.New("minimum eight characters, at least one letter and one number")

var (
	hasLetter = regexp.MustCompile(`[A-Za-z]`)
	hasDigit  = regexp.MustCompile(`\d`)
)

// HashedPassword wraps a bcrypt hash. The raw password never leaves this
// package and the hash itself is only reachable for persistence.
type HashedPassword string

// FromPlaintext enforces the password policy and hashes the raw password.
func FromPlaintext(raw string) (HashedPassword, error) {
	if len(raw) < 8 || !hasLetter.MatchString(raw) || !hasDigit.MatchString(raw) {
		return "", ErrWeakPassword
	}
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return HashedPassword(hashBytes), nil
}

// Verify reports whether raw matches the stored hash.
func (h HashedPassword) Verify(raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(h), []byte(raw)) == nil
}

func (h HashedPassword) String() string { return string(h) }
