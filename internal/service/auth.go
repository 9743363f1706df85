// Package service implements the access-token exchange pipeline: hashing,
// caching, minting, and the orchestration that turns a raw API key into a
// signed session token or a precise failure.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arcadelocator/arcade-api/internal/apierr"
	"github.com/arcadelocator/arcade-api/internal/model"
	"github.com/arcadelocator/arcade-api/internal/store"
)

// KeyStore is the API key repository the exchange consumes.
type KeyStore interface {
	GetAPIKeyByLookupHash(ctx context.Context, lookupHash string) (*model.APIKey, error)
	CreateAPIKeyForUser(ctx context.Context, key *model.APIKey, userID int64) error
}

// IdentityStore resolves an API key record to a user and the user to their
// roles and permissions.
type IdentityStore interface {
	GetUserByAPIKeyID(ctx context.Context, apikeyID int64) (*model.User, error)
	GetUserRolesByID(ctx context.Context, userID int64) ([]string, error)
	GetUserPermissionsByID(ctx context.Context, userID int64) ([]string, error)
}

// AuthService orchestrates the API-key-to-JWT exchange and privileged key
// issuance. The token cache is injected, not ambient, so tests get isolation
// and shutdown is clean.
type AuthService struct {
	keys       KeyStore
	identities IdentityStore
	minter     *Minter
	cache      *TokenCache
	scope      string
	logger     *slog.Logger

	now func() time.Time
}

// NewAuthService wires the exchange pipeline. scope is the application name
// reported in the token bundle.
func NewAuthService(keys KeyStore, identities IdentityStore, minter *Minter, cache *TokenCache, scope string, logger *slog.Logger) *AuthService {
	return &AuthService{
		keys:       keys,
		identities: identities,
		minter:     minter,
		cache:      cache,
		scope:      scope,
		logger:     logger,
		now:        time.Now,
	}
}

// FetchAccessToken exchanges a raw API key for a session token bundle. On a
// cache hit the stored bundle is returned with ExpiresIn recomputed against
// now; otherwise the full pipeline runs: lookup digest, record fetch, expiry
// check, bcrypt comparison, identity resolution, minting, cache fill.
func (s *AuthService) FetchAccessToken(ctx context.Context, rawKey, clientIP string) (*model.TokenBundle, *apierr.Error) {
	if rawKey == "" {
		return nil, apierr.MissingAPIKey()
	}

	if bundle, ok := s.cache.Get(rawKey); ok {
		bundle.ExpiresIn = bundle.Expiration - s.now().Unix()
		s.logger.Debug("token cache hit", "expires_in", bundle.ExpiresIn)
		return &bundle, nil
	}

	record, aerr := s.validateKey(ctx, rawKey)
	if aerr != nil {
		return nil, aerr
	}

	user, err := s.identities.GetUserByAPIKeyID(ctx, record.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apierr.UserNotFound()
		}
		return nil, apierr.Repository("user lookup", err)
	}

	roles, err := s.identities.GetUserRolesByID(ctx, user.ID)
	if err != nil {
		return nil, apierr.Repository("roles lookup", err)
	}
	// A keyholder with zero roles is a data-integrity fault, never a valid
	// "no access" state.
	if len(roles) == 0 {
		return nil, apierr.IdentityIntegrity(user.ID)
	}

	permissions, err := s.identities.GetUserPermissionsByID(ctx, user.ID)
	if err != nil {
		return nil, apierr.Repository("permissions lookup", err)
	}

	token, issuedAt, expiresAt, err := s.minter.Mint(user, roles, permissions, clientIP)
	if err != nil {
		return nil, apierr.SigningConfiguration(err)
	}

	bundle := model.TokenBundle{
		AccessToken:  token,
		RefreshToken: "Not Supported",
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.minter.Lifetime().Seconds()),
		Expiration:   expiresAt.Unix(),
		Scope:        s.scope,
	}
	s.cache.Set(rawKey, bundle)

	s.logger.Debug("token minted",
		"user_uuid", user.UUID,
		"issued_at", issuedAt.UTC().Format(time.RFC3339),
		"expires_at", expiresAt.UTC().Format(time.RFC3339),
	)
	return &bundle, nil
}

// ValidateKey runs the key-verification half of the exchange (digest lookup,
// expiry check, bcrypt comparison) and returns the matching record's ID.
// The admin issuance endpoint uses it to vet the keymaster key through the
// same pipeline as any other key.
func (s *AuthService) ValidateKey(ctx context.Context, rawKey string) (int64, *apierr.Error) {
	if rawKey == "" {
		return 0, apierr.MissingAPIKey()
	}
	record, aerr := s.validateKey(ctx, rawKey)
	if aerr != nil {
		return 0, aerr
	}
	return record.ID, nil
}

// validateKey resolves and verifies the key record. "Not found" and
// "comparison failed" both come back as InvalidAPIKey so the two cases are
// indistinguishable to a caller probing for valid digests.
func (s *AuthService) validateKey(ctx context.Context, rawKey string) (*model.APIKey, *apierr.Error) {
	lookupHash := LookupDigest(rawKey)

	record, err := s.keys.GetAPIKeyByLookupHash(ctx, lookupHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apierr.InvalidAPIKey()
		}
		return nil, apierr.Repository("apikey lookup", err)
	}

	if record.Expired(s.now()) {
		return nil, apierr.APIKeyExpired(fmt.Sprintf("%d.%s", record.ID, lookupHash), *record.ExpiresAt)
	}

	if !CompareKey(rawKey, record.HashedKey) {
		return nil, apierr.InvalidAPIKey()
	}
	return record, nil
}

// IssueAPIKey mints a brand-new API key for the given user: generate a random
// secret, compute both hashes, persist the record and the owner linkage in
// one transaction. The raw key is returned exactly once; only its hashes are
// ever stored.
func (s *AuthService) IssueAPIKey(ctx context.Context, userID int64) (string, *apierr.Error) {
	raw, key, err := GenerateAPIKey()
	if err != nil {
		return "", apierr.Repository("generate api key", err)
	}

	if err := s.keys.CreateAPIKeyForUser(ctx, key, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apierr.UserNotFound()
		}
		return "", apierr.Repository("create api key", err)
	}

	s.logger.Debug("api key issued", "apikey_id", key.ID, "user_id", userID)
	return raw, nil
}

// GenerateAPIKey produces a fresh random key secret (32 bytes, hex-encoded)
// together with an unpersisted record carrying its two hashes.
func GenerateAPIKey() (rawKey string, key *model.APIKey, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate random key: %w", err)
	}
	raw := hex.EncodeToString(buf)

	hashed, err := VerificationHash(raw)
	if err != nil {
		return "", nil, fmt.Errorf("hash api key: %w", err)
	}

	return raw, &model.APIKey{
		LookupHash: LookupDigest(raw),
		HashedKey:  hashed,
	}, nil
}
