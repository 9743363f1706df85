// Package store persists API key records and the user/role/permission graph.
// It backs both repositories the token exchange consumes: the key repository
// (lookup-hash indexed records) and the identity repository (user resolution
// and transitive role/permission queries).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/arcadelocator/arcade-api/internal/model"

	"github.com/google/uuid"
)

// Store manages the application database. It supports SQLite (default, used
// for local data dirs and in-memory tests) and Postgres via the pgx stdlib
// driver.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the database named by driver ("sqlite" or "postgres") and
// applies migrations. For sqlite an empty dsn means in-memory; a non-empty
// dsn is treated as a data directory holding arcade.db.
func Open(driver, dsn string) (*Store, error) {
	var db *sqlx.DB
	var err error

	switch driver {
	case "", "sqlite":
		driver = "sqlite"
		path := ":memory:?_journal_mode=WAL"
		if dsn != "" {
			if err := os.MkdirAll(dsn, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			path = filepath.Join(dsn, "arcade.db") + "?_journal_mode=WAL&_busy_timeout=5000"
		}
		db, err = sqlx.Connect("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	case "postgres":
		db, err = sqlx.Connect("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind converts ?-style placeholders to the driver's bindvar format.
func (s *Store) rebind(q string) string {
	return s.db.Rebind(q)
}

// ---------------------------------------------------------------------------
// Key repository
// ---------------------------------------------------------------------------

// CreateAPIKey inserts a new API key record. LookupHash and HashedKey must
// already be set. The ID and CreatedAt fields are populated after insert.
// A collision on the unique lookup_hash index surfaces as the driver's
// constraint error; callers never retry silently.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC()

	q := s.rebind(`INSERT INTO apikeys (lookup_hash, hashed_key, expires_at, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, q,
		key.LookupHash, key.HashedKey, key.ExpiresAt, key.CreatedAt).Scan(&key.ID); err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// CreateAPIKeyForUser inserts a new API key record and links it to the given
// user in one transaction. If the user does not exist the whole operation
// rolls back and ErrNotFound is returned, so a key record can never exist
// with an unconfirmed owner linkage.
func (s *Store) CreateAPIKeyForUser(ctx context.Context, key *model.APIKey, userID int64) error {
	key.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertQ := s.rebind(`INSERT INTO apikeys (lookup_hash, hashed_key, expires_at, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`)
	if err := tx.QueryRowxContext(ctx, insertQ,
		key.LookupHash, key.HashedKey, key.ExpiresAt, key.CreatedAt).Scan(&key.ID); err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}

	linkQ := s.rebind(`UPDATE users SET apikey_id = ? WHERE id = ?`)
	result, err := tx.ExecContext(ctx, linkQ, key.ID, userID)
	if err != nil {
		return fmt.Errorf("link api key to user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("link api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// GetAPIKeyByLookupHash looks up an API key record by its lookup hash. The
// hash column is unique, so at most one record can match.
func (s *Store) GetAPIKeyByLookupHash(ctx context.Context, lookupHash string) (*model.APIKey, error) {
	var key model.APIKey
	q := s.rebind("SELECT * FROM apikeys WHERE lookup_hash = ?")
	if err := s.db.GetContext(ctx, &key, q, lookupHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by lookup hash: %w", err)
	}
	return &key, nil
}

// ---------------------------------------------------------------------------
// Identity repository
// ---------------------------------------------------------------------------

// CreateUser inserts a new user. A public UUID is assigned if none is set.
// The ID and CreatedAt fields are populated after insert.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if user.UUID == "" {
		user.UUID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()

	q := s.rebind(`INSERT INTO users (display_name, uuid, is_suspended, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, q,
		user.DisplayName, user.UUID, user.IsSuspended, user.CreatedAt).Scan(&user.ID); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID returns a user by internal ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	q := s.rebind("SELECT * FROM users WHERE id = ?")
	if err := s.db.GetContext(ctx, &user, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetUserByAPIKeyID returns the non-suspended user holding the given API key.
func (s *Store) GetUserByAPIKeyID(ctx context.Context, apikeyID int64) (*model.User, error) {
	var user model.User
	q := s.rebind("SELECT * FROM users WHERE apikey_id = ? AND is_suspended = ?")
	if err := s.db.GetContext(ctx, &user, q, apikeyID, false); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by api key: %w", err)
	}
	return &user, nil
}

// GetUserRolesByID returns the user's role names in assignment order. An
// empty slice is not an error here; the exchange layer decides what zero
// roles means.
func (s *Store) GetUserRolesByID(ctx context.Context, userID int64) ([]string, error) {
	var roles []string
	q := s.rebind(`SELECT r.role_name
		FROM user_roles ur
		JOIN roles r ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY ur.role_id`)
	if err := s.db.SelectContext(ctx, &roles, q, userID); err != nil {
		return nil, fmt.Errorf("get user roles: %w", err)
	}
	return roles, nil
}

// GetUserPermissionsByID returns the user's permission names, derived
// transitively through their roles, sorted and de-duplicated.
func (s *Store) GetUserPermissionsByID(ctx context.Context, userID int64) ([]string, error) {
	var perms []string
	q := s.rebind(`SELECT DISTINCT p.permission_name
		FROM users u
		JOIN user_roles ur ON u.id = ur.user_id
		JOIN roles r ON ur.role_id = r.id
		JOIN role_permissions rp ON r.id = rp.role_id
		JOIN permissions p ON rp.permission_id = p.id
		WHERE u.id = ?
		ORDER BY p.permission_name ASC`)
	if err := s.db.SelectContext(ctx, &perms, q, userID); err != nil {
		return nil, fmt.Errorf("get user permissions: %w", err)
	}
	return perms, nil
}

// ---------------------------------------------------------------------------
// Role / permission management
// ---------------------------------------------------------------------------

// EnsureRole creates a role if it does not exist and returns its ID.
func (s *Store) EnsureRole(ctx context.Context, name string) (int64, error) {
	insertQ := s.rebind("INSERT INTO roles (role_name) VALUES (?) ON CONFLICT (role_name) DO NOTHING")
	if _, err := s.db.ExecContext(ctx, insertQ, name); err != nil {
		return 0, fmt.Errorf("ensure role: %w", err)
	}
	var id int64
	selectQ := s.rebind("SELECT id FROM roles WHERE role_name = ?")
	if err := s.db.GetContext(ctx, &id, selectQ, name); err != nil {
		return 0, fmt.Errorf("get role id: %w", err)
	}
	return id, nil
}

// EnsurePermission creates a permission if it does not exist and returns its ID.
func (s *Store) EnsurePermission(ctx context.Context, name string) (int64, error) {
	insertQ := s.rebind("INSERT INTO permissions (permission_name) VALUES (?) ON CONFLICT (permission_name) DO NOTHING")
	if _, err := s.db.ExecContext(ctx, insertQ, name); err != nil {
		return 0, fmt.Errorf("ensure permission: %w", err)
	}
	var id int64
	selectQ := s.rebind("SELECT id FROM permissions WHERE permission_name = ?")
	if err := s.db.GetContext(ctx, &id, selectQ, name); err != nil {
		return 0, fmt.Errorf("get permission id: %w", err)
	}
	return id, nil
}

// GrantPermission attaches a permission to a role. Idempotent.
func (s *Store) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	q := s.rebind(`INSERT INTO role_permissions (role_id, permission_id)
		VALUES (?, ?) ON CONFLICT (role_id, permission_id) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, q, roleID, permissionID); err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}
	return nil
}

// AssignRole attaches a role to a user. Idempotent.
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) error {
	q := s.rebind(`INSERT INTO user_roles (user_id, role_id)
		VALUES (?, ?) ON CONFLICT (user_id, role_id) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, q, userID, roleID); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}
