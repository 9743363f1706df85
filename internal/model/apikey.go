package model

import "time"

// APIKey represents an issued API key record. The raw key is never stored;
// only a truncated SHA-256 lookup hash (for indexed retrieval) and a bcrypt
// hash (for proof-of-possession comparison) are persisted.
type APIKey struct {
	ID         int64      `json:"id" db:"id"`
	LookupHash string     `json:"-" db:"lookup_hash"` // first 16 hex chars of SHA-256, unique index
	HashedKey  string     `json:"-" db:"hashed_key"`  // bcrypt hash, never expose
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Expired reports whether the key record has passed its expiry. The boundary
// is inclusive: a record whose expiry equals now is already expired. A nil
// ExpiresAt means the key never expires.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}
