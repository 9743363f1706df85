package model

import "time"

// User is an account that can hold an API key. The UUID is the public
// identifier embedded in session tokens; the numeric ID never leaves the
// backend.
type User struct {
	ID          int64     `json:"id" db:"id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	UUID        string    `json:"uuid" db:"uuid"`
	APIKeyID    *int64    `json:"apikey_id,omitempty" db:"apikey_id"`
	IsSuspended bool      `json:"is_suspended" db:"is_suspended"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Role is a named grant assigned to users. Permissions attach to roles, not
// to users directly.
type Role struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"role_name" db:"role_name"`
}

// Permission is a single named capability, reachable only through a role.
type Permission struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"permission_name" db:"permission_name"`
}
