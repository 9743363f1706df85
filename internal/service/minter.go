package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/arcadelocator/arcade-api/internal/model"
)

// DefaultTokenLifetime is how long a minted session token stays valid.
// Tokens are not refreshable; a new API-key exchange is required after expiry.
const DefaultTokenLifetime = 3600 * time.Second

// ErrEmptySigningSecret is returned when a Minter is constructed without a
// signing secret. This is a process-level configuration fault, not a
// per-request condition.
var ErrEmptySigningSecret = errors.New("jwt signing secret is empty")

// Claims is the session token payload. AccessLevel is a coarse single-value
// role summary: the first assigned role, lowercased.
type Claims struct {
	IP            string   `json:"ip,omitempty"`
	UUID          string   `json:"uuid"`
	Roles         []string `json:"roles"`
	AccessLevel   string   `json:"accessLevel"`
	ApplicationID string   `json:"applicationId"`
	Permissions   []string `json:"permissions"`
	jwt.RegisteredClaims
}

// MinterConfig holds the settings a Minter needs.
type MinterConfig struct {
	Secret        string
	Lifetime      time.Duration // defaults to DefaultTokenLifetime
	Issuer        string
	Audience      string
	ApplicationID string
}

// Minter builds and signs bounded-lifetime session tokens from an identity
// and its resolved roles and permissions.
type Minter struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	audience string
	appID    string

	now func() time.Time
}

// NewMinter validates the signing configuration and returns a Minter. An
// empty secret is rejected here so the process fails at startup rather than
// on the first request.
func NewMinter(cfg MinterConfig) (*Minter, error) {
	if cfg.Secret == "" {
		return nil, ErrEmptySigningSecret
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultTokenLifetime
	}
	return &Minter{
		secret:   []byte(cfg.Secret),
		lifetime: cfg.Lifetime,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		appID:    cfg.ApplicationID,
		now:      time.Now,
	}, nil
}

// Lifetime returns the fixed token lifetime.
func (m *Minter) Lifetime() time.Duration {
	return m.lifetime
}

// Mint signs a session token for the user. The roles slice must be non-empty;
// the exchange guarantees that before calling.
func (m *Minter) Mint(user *model.User, roles, permissions []string, ip string) (token string, issuedAt, expiresAt time.Time, err error) {
	if len(roles) == 0 {
		return "", time.Time{}, time.Time{}, errors.New("mint: roles must be non-empty")
	}

	issuedAt = m.now()
	expiresAt = issuedAt.Add(m.lifetime)

	claims := Claims{
		IP:            ip,
		UUID:          user.UUID,
		Roles:         roles,
		AccessLevel:   strings.ToLower(roles[0]),
		ApplicationID: m.appID,
		Permissions:   permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.DisplayName,
			Audience:  jwt.ClaimStrings{m.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, issuedAt, expiresAt, nil
}

// Verify parses and validates a signed session token, returning its claims.
func (m *Minter) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
