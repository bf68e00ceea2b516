package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hashIterations = 64_000
	hashKeyLength  = 32
)

// HashPassword derives the stored hash from a plaintext password and
// salt. The same inputs always produce the same hash.
func HashPassword(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, hashIterations, hashKeyLength, sha256.New)
}

// VerifyPassword reports whether the password matches the stored hash.
// The comparison is constant time.
func VerifyPassword(password string, salt, hash []byte) bool {
	derived := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(derived, hash) == 1
}
