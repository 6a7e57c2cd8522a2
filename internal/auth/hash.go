// Package auth provides password hashing and session token services.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher wraps bcrypt password hashing with a configurable cost factor.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with the given bcrypt cost. Costs below
// bcrypt.DefaultCost are rejected at config validation; this clamps as a
// second line of defense so a zero value never produces weak digests.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash creates a bcrypt digest of the password.
func (h *Hasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether the password matches the digest. Malformed digests
// verify false; bcrypt's comparison is constant-time on the hash output.
func (h *Hasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
