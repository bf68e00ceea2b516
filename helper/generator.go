package helper

import (
	"crypto/rand"
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/base62"
	"github.com/hashicorp/go-uuid"
	"github.com/oklog/ulid"
)

// TokenValueLength is the length of generated bearer token values.
const TokenValueLength = 32

// GenerateTokenValue mints a random base62 bearer token value.
func GenerateTokenValue() (string, error) {
	value, err := base62.Random(TokenValueLength)
	if err != nil {
		return "", fmt.Errorf("generating token value: %w", err)
	}
	return value, nil
}

// GenerateSalt returns 16 cryptographically random bytes for password
// hashing.
func GenerateSalt() ([]byte, error) {
	salt, err := uuid.GenerateRandomBytes(16)
	if err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

func GenerateRequestID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
