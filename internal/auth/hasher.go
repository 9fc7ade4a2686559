// Package auth provides password hashing for the account store.
package auth

import (
	"fmt"
	"hash/fnv"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns plaintext passwords into stored digests and verifies them.
// The account store takes a Hasher at construction, so swapping algorithms is
// a single-point change.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hashed, password string) bool
}

// BcryptHasher is the default Hasher.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a BcryptHasher with the default cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

// Hash generates a bcrypt digest of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches the stored digest.
func (h *BcryptHasher) Verify(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// legacySalt matches the digest scheme of the pre-rewrite server so existing
// database files keep authenticating.
const legacySalt = "chat_salt_2024"

// LegacyHasher reproduces the original salted FNV digest. It is not a secure
// password hash and exists only for compatibility with old store files.
type LegacyHasher struct{}

// Hash digests the password with the legacy scheme.
func (LegacyHasher) Hash(password string) (string, error) {
	h := fnv.New64a()
	// fnv writes never fail
	_, _ = h.Write([]byte(password + legacySalt))
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// Verify reports whether password matches the stored legacy digest.
func (l LegacyHasher) Verify(hashed, password string) bool {
	digest, _ := l.Hash(password)
	return digest == hashed
}
