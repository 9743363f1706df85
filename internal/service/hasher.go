package service

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const (
	// lookupHashLength is how many hex characters of the SHA-256 digest are
	// kept for indexed retrieval. The truncation keeps the column short; the
	// digest is an index, not a secret.
	lookupHashLength = 16

	// bcryptCost is the work factor for the verification hash.
	bcryptCost = 10
)

// LookupDigest returns the deterministic lookup hash for a raw API key: the
// first 16 hex characters of its SHA-256 digest. Used only to locate the
// stored record, never to prove possession.
func LookupDigest(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])[:lookupHashLength]
}

// VerificationHash returns a salted bcrypt hash of the raw key. Each call
// produces a different output for the same input, so the result can only be
// checked through CompareKey, never by equality.
func VerificationHash(rawKey string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CompareKey reports whether rawKey matches the stored bcrypt hash.
func CompareKey(rawKey, hashedKey string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(rawKey)) == nil
}
