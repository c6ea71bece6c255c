package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// BcryptEncoder is the credential encoder used in production.
type BcryptEncoder struct {
	cost int
}

func NewBcryptEncoder(cost int) *BcryptEncoder {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptEncoder{cost: cost}
}

// Encode creates a bcrypt hash of the password
func (e *BcryptEncoder) Encode(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), e.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (e *BcryptEncoder) Matches(raw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}

// GenerateRandomToken generates a cryptographically secure random token
func GenerateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
