package store

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	// Column types differ between the two supported drivers; everything else
	// in the DDL is shared.
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "DATETIME"
	boolean := "INTEGER"
	if s.driver == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ"
		boolean = "BOOLEAN"
	}

	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS apikeys (
			id %s,
			lookup_hash TEXT UNIQUE NOT NULL,
			hashed_key TEXT NOT NULL,
			expires_at %s,
			created_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, pk, ts, ts),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			display_name TEXT NOT NULL,
			uuid TEXT UNIQUE NOT NULL,
			apikey_id INTEGER REFERENCES apikeys(id),
			is_suspended %s NOT NULL DEFAULT FALSE,
			created_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, pk, boolean, ts),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS roles (
			id %s,
			role_name TEXT UNIQUE NOT NULL
		)`, pk),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS permissions (
			id %s,
			permission_name TEXT UNIQUE NOT NULL
		)`, pk),

		`CREATE TABLE IF NOT EXISTS user_roles (
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, role_id)
		)`,

		`CREATE TABLE IF NOT EXISTS role_permissions (
			role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			permission_id INTEGER NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
			PRIMARY KEY (role_id, permission_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_apikey_id ON users(apikey_id)`,
	}

	for i, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			name := strings.Fields(strings.TrimSpace(m))
			return fmt.Errorf("migration %d (%s): %w", i+1, strings.Join(name[:min(5, len(name))], " "), err)
		}
	}
	return nil
}
