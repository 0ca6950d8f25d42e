package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password. Federated
// credentials have no hash and never match.
func CheckPassword(hash, plain string) error {
	if hash == "" {
		return errors.New("credential has no password")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
