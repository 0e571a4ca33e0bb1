package security

import (
	"crypto/rand"
	"errors"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes the plain password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plain password with a hashed password.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// RandomDigits returns n cryptographically random decimal digits. The first
// digit is never zero.
func RandomDigits(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("digit count must be positive")
	}
	out := make([]byte, n)
	for i := range out {
		lo, span := int64(0), int64(10)
		if i == 0 {
			lo, span = 1, 9
		}
		d, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + lo + d.Int64())
	}
	return string(out), nil
}
