package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/arcadelocator/arcade-api/internal/apierr"
	"github.com/arcadelocator/arcade-api/internal/model"
	"github.com/arcadelocator/arcade-api/internal/store"
)

func newTestAuth(t *testing.T) (*AuthService, *store.Store) {
	t.Helper()

	st, err := store.Open("sqlite", "")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	minter, err := NewMinter(MinterConfig{
		Secret:        "test-secret-key-for-jwt",
		Issuer:        "https://api.arcadelocator.com",
		Audience:      "https://api.arcadelocator.com",
		ApplicationID: "arcade-test-app",
	})
	if err != nil {
		t.Fatalf("NewMinter: %v", err)
	}

	cache := NewTokenCache(16, time.Hour, minter.Lifetime())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := NewAuthService(st, st, minter, cache, "arcade-test-app", logger)
	return auth, st
}

// seedUser creates a user with the given roles (each carrying one
// "<role>:read" permission) and returns its ID.
func seedUser(t *testing.T, st *store.Store, name string, roles ...string) int64 {
	t.Helper()
	ctx := context.Background()

	user := &model.User{DisplayName: name}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	for _, r := range roles {
		roleID, err := st.EnsureRole(ctx, r)
		if err != nil {
			t.Fatalf("EnsureRole: %v", err)
		}
		permID, err := st.EnsurePermission(ctx, r+":read")
		if err != nil {
			t.Fatalf("EnsurePermission: %v", err)
		}
		if err := st.GrantPermission(ctx, roleID, permID); err != nil {
			t.Fatalf("GrantPermission: %v", err)
		}
		if err := st.AssignRole(ctx, user.ID, roleID); err != nil {
			t.Fatalf("AssignRole: %v", err)
		}
	}
	return user.ID
}

func TestFetchAccessTokenMissingKey(t *testing.T) {
	auth, _ := newTestAuth(t)

	_, aerr := auth.FetchAccessToken(context.Background(), "", "127.0.0.1")
	if aerr == nil {
		t.Fatal("expected error for missing key")
	}
	if aerr.Code != apierr.CodeMissingAPIKey || aerr.HTTPStatus != 400 {
		t.Errorf("got code=%d status=%d", aerr.Code, aerr.HTTPStatus)
	}
}

func TestFetchAccessTokenUnknownKey(t *testing.T) {
	auth, _ := newTestAuth(t)

	_, aerr := auth.FetchAccessToken(context.Background(), "no-such-key", "127.0.0.1")
	if aerr == nil {
		t.Fatal("expected error for unknown key")
	}
	if aerr.Code != apierr.CodeInvalidAPIKey || aerr.HTTPStatus != 401 {
		t.Errorf("got code=%d status=%d", aerr.Code, aerr.HTTPStatus)
	}
}

func TestIssueThenExchange(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	userID := seedUser(t, st, "brandon", "Admin", "Member")

	rawKey, aerr := auth.IssueAPIKey(ctx, userID)
	if aerr != nil {
		t.Fatalf("IssueAPIKey: %v", aerr)
	}
	if len(rawKey) != 64 {
		t.Fatalf("raw key length = %d, want 64 hex chars", len(rawKey))
	}

	bundle, aerr := auth.FetchAccessToken(ctx, rawKey, "203.0.113.7")
	if aerr != nil {
		t.Fatalf("FetchAccessToken: %v", aerr)
	}

	if bundle.TokenType != "Bearer" {
		t.Errorf("token_type = %q", bundle.TokenType)
	}
	if bundle.RefreshToken != "Not Supported" {
		t.Errorf("refresh_token = %q", bundle.RefreshToken)
	}
	if bundle.Scope != "arcade-test-app" {
		t.Errorf("scope = %q", bundle.Scope)
	}
	if bundle.ExpiresIn != 3600 {
		t.Errorf("expires_in = %d", bundle.ExpiresIn)
	}

	claims, err := auth.minter.Verify(bundle.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.AccessLevel != "admin" {
		t.Errorf("accessLevel = %q, want lowercased first role", claims.AccessLevel)
	}
	if len(claims.Roles) != 2 {
		t.Errorf("roles = %v", claims.Roles)
	}
	if len(claims.Permissions) != 2 {
		t.Errorf("permissions = %v", claims.Permissions)
	}
	if claims.Subject != "brandon" {
		t.Errorf("sub = %q", claims.Subject)
	}
	if claims.IP != "203.0.113.7" {
		t.Errorf("ip = %q", claims.IP)
	}
}

func TestExchangeCacheIdempotence(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	userID := seedUser(t, st, "cacheuser", "Member")
	rawKey, aerr := auth.IssueAPIKey(ctx, userID)
	if aerr != nil {
		t.Fatalf("IssueAPIKey: %v", aerr)
	}

	first, aerr := auth.FetchAccessToken(ctx, rawKey, "127.0.0.1")
	if aerr != nil {
		t.Fatalf("first exchange: %v", aerr)
	}
	second, aerr := auth.FetchAccessToken(ctx, rawKey, "127.0.0.1")
	if aerr != nil {
		t.Fatalf("second exchange: %v", aerr)
	}

	if first.AccessToken != second.AccessToken {
		t.Error("expected identical access_token on cache hit")
	}
	if second.ExpiresIn > first.ExpiresIn {
		t.Errorf("expires_in increased between calls: %d -> %d", first.ExpiresIn, second.ExpiresIn)
	}
	if auth.cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", auth.cache.Len())
	}
}

func TestExchangeExpiredKey(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	userID := seedUser(t, st, "expired", "Member")
	raw, key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	past := time.Now().Add(-1 * time.Second).UTC()
	key.ExpiresAt = &past
	if err := st.CreateAPIKeyForUser(ctx, key, userID); err != nil {
		t.Fatalf("CreateAPIKeyForUser: %v", err)
	}

	_, aerr := auth.FetchAccessToken(ctx, raw, "127.0.0.1")
	if aerr == nil {
		t.Fatal("expected error for expired key")
	}
	if aerr.Code != apierr.CodeAPIKeyExpired || aerr.HTTPStatus != 401 {
		t.Fatalf("got code=%d status=%d", aerr.Code, aerr.HTTPStatus)
	}
	trace, ok := aerr.Details["trace"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected details.trace, got %#v", aerr.Details)
	}
	if trace["expired_at"] == "" || trace["expired_at"] == nil {
		t.Error("expected details.trace.expired_at to be populated")
	}
}

func TestExchangeExpiryBoundaryInclusive(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	userID := seedUser(t, st, "boundary", "Member")
	raw, key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	instant := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key.ExpiresAt = &instant
	if err := st.CreateAPIKeyForUser(ctx, key, userID); err != nil {
		t.Fatalf("CreateAPIKeyForUser: %v", err)
	}

	// Clock reads exactly the expiry instant: the key counts as expired.
	auth.now = func() time.Time { return instant }

	_, aerr := auth.FetchAccessToken(ctx, raw, "127.0.0.1")
	if aerr == nil || aerr.Code != apierr.CodeAPIKeyExpired {
		t.Fatalf("expected ApiKeyExpired at the boundary, got %v", aerr)
	}
}

func TestExchangeComparisonFailureIsInvalidKey(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	userID := seedUser(t, st, "mismatch", "Member")

	// Store a record whose lookup hash matches the presented key but whose
	// verification hash belongs to a different secret.
	presented, _, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	otherHash, err := VerificationHash("a-completely-different-secret")
	if err != nil {
		t.Fatalf("VerificationHash: %v", err)
	}
	key := &model.APIKey{LookupHash: LookupDigest(presented), HashedKey: otherHash}
	if err := st.CreateAPIKeyForUser(ctx, key, userID); err != nil {
		t.Fatalf("CreateAPIKeyForUser: %v", err)
	}

	_, aerr := auth.FetchAccessToken(ctx, presented, "127.0.0.1")
	if aerr == nil {
		t.Fatal("expected error")
	}
	if aerr.Code != apierr.CodeInvalidAPIKey {
		t.Errorf("comparison failure must map to InvalidApiKey, got code=%d", aerr.Code)
	}
}

func TestExchangeUserNotFound(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	// Record exists but is linked to nobody.
	raw, key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if err := st.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	_, aerr := auth.FetchAccessToken(ctx, raw, "127.0.0.1")
	if aerr == nil || aerr.Code != apierr.CodeUserNotFound {
		t.Fatalf("expected UserNotFound, got %v", aerr)
	}
}

func TestExchangeZeroRolesIsIntegrityError(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	userID := seedUser(t, st, "roleless") // no roles at all
	rawKey, aerr := auth.IssueAPIKey(ctx, userID)
	if aerr != nil {
		t.Fatalf("IssueAPIKey: %v", aerr)
	}

	_, aerr = auth.FetchAccessToken(ctx, rawKey, "127.0.0.1")
	if aerr == nil {
		t.Fatal("expected error for zero-role identity")
	}
	if aerr.Code != apierr.CodeIdentityIntegrity || aerr.HTTPStatus != 500 {
		t.Errorf("got code=%d status=%d, want integrity error with 500", aerr.Code, aerr.HTTPStatus)
	}
}

func TestExchangeSuspendedUser(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	user := &model.User{DisplayName: "banned", IsSuspended: true}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	rawKey, aerr := auth.IssueAPIKey(ctx, user.ID)
	if aerr != nil {
		t.Fatalf("IssueAPIKey: %v", aerr)
	}

	_, aerr = auth.FetchAccessToken(ctx, rawKey, "127.0.0.1")
	if aerr == nil || aerr.Code != apierr.CodeUserNotFound {
		t.Fatalf("expected UserNotFound for suspended user, got %v", aerr)
	}
}

func TestConcurrentExchangesSameKey(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	userID := seedUser(t, st, "racer", "Member")
	rawKey, aerr := auth.IssueAPIKey(ctx, userID)
	if aerr != nil {
		t.Fatalf("IssueAPIKey: %v", aerr)
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]*apierr.Error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = auth.FetchAccessToken(ctx, rawKey, "127.0.0.1")
		}(i)
	}
	wg.Wait()

	for i, e := range errs {
		if e != nil {
			t.Fatalf("goroutine %d: %v", i, e)
		}
	}

	// A later call must be served from the cache.
	before := auth.cache.Len()
	if before != 1 {
		t.Fatalf("cache entries = %d, want 1", before)
	}
	if _, aerr := auth.FetchAccessToken(ctx, rawKey, "127.0.0.1"); aerr != nil {
		t.Fatalf("post-race exchange: %v", aerr)
	}
}

func TestIssueAPIKeyUnknownUser(t *testing.T) {
	auth, _ := newTestAuth(t)

	_, aerr := auth.IssueAPIKey(context.Background(), 99999)
	if aerr == nil || aerr.Code != apierr.CodeUserNotFound {
		t.Fatalf("expected UserNotFound for unknown owner, got %v", aerr)
	}
}

func TestValidateKey(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	userID := seedUser(t, st, "validator", "Admin")
	rawKey, aerr := auth.IssueAPIKey(ctx, userID)
	if aerr != nil {
		t.Fatalf("IssueAPIKey: %v", aerr)
	}

	id, aerr := auth.ValidateKey(ctx, rawKey)
	if aerr != nil {
		t.Fatalf("ValidateKey: %v", aerr)
	}
	if id == 0 {
		t.Error("expected non-zero key id")
	}

	if _, aerr := auth.ValidateKey(ctx, "bogus"); aerr == nil {
		t.Error("expected error for bogus key")
	}
	if _, aerr := auth.ValidateKey(ctx, ""); aerr == nil || aerr.Code != apierr.CodeMissingAPIKey {
		t.Error("expected MissingApiKey for empty key")
	}
}
