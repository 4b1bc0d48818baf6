package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// CompareSecret reports whether plain matches the stored bcrypt hash.
func CompareSecret(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// HashSecret generates a bcrypt hash for a shared secret.
func HashSecret(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
